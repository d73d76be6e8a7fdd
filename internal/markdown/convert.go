package markdown

import (
	"strings"

	"github.com/charmbracelet/glamour"
	gm "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	gmparser "github.com/gomarkdown/markdown/parser"
)

func parse(src string) ast.Node {
	return gm.Parse([]byte(src), gmparser.NewWithExtensions(
		gmparser.CommonExtensions|gmparser.Autolink,
	))
}

// ToHTML renders Markdown as an HTML fragment. Raw HTML in the source is
// dropped.
func ToHTML(src string) []byte {
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.SkipHTML | html.HrefTargetBlank,
	})
	return gm.Render(parse(src), renderer)
}

// PlainText flattens Markdown to its text content on one line, for list
// views where formatting would get in the way.
func PlainText(src string) string {
	var parts []string
	ast.WalkFunc(parse(src), func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			parts = append(parts, string(n.Literal))
		case *ast.Code:
			parts = append(parts, string(n.Literal))
		case *ast.CodeBlock:
			parts = append(parts, string(n.Literal))
		}
		return ast.GoToNext
	})
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// Terminal renders Markdown for a terminal of the given width.
func Terminal(src string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(src)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n ") + "\n", nil
}
