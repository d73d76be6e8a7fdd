package mcp

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/jcdickinson/faultbook/internal/daemon"
	"github.com/jcdickinson/faultbook/internal/kb"
	md "github.com/jcdickinson/faultbook/internal/markdown"
	"github.com/jcdickinson/faultbook/internal/nav"
	"github.com/jcdickinson/faultbook/internal/rpc"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

//go:embed instructions.md
var instructions string

const categoryScheme = "faultbook://category/"

type Server struct {
	mcpServer *server.MCPServer
	client    *daemon.Client

	// The browse tools share one daemon session, created on first use.
	mu        sync.Mutex
	sessionID string
}

// Connect attaches to the daemon, spawning it if needed.
func Connect(socketPath, version string) (*Server, error) {
	client, err := daemon.ConnectOrSpawn(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to daemon: %w", err)
	}
	return NewServer(client, version), nil
}

func NewServer(client *daemon.Client, version string) *Server {
	s := &Server{client: client}

	mcpServer := server.NewMCPServer(
		"faultbook",
		version,
		server.WithInstructions(instructions),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("search_faults",
			mcp.WithDescription("Search the fault knowledge base. Case-insensitive substring match over category names, notices and fault codes, titles, descriptions, symptoms and causes. Only documents opened so far are searched."),
			mcp.WithString("query",
				mcp.Description("Text to look for, e.g. an error code or a symptom"),
				mcp.Required(),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results (default: all)"),
			),
		),
		s.handleSearchFaults,
	)

	mcpServer.AddTool(
		mcp.NewTool("show_category",
			mcp.WithDescription("Show a category as Markdown: its notice, its fault table and the first fault in full. The path is the list of category names from the top level down, as returned by search_faults."),
			mcp.WithArray("path",
				mcp.Description("Category names, one per level"),
				mcp.Items(map[string]interface{}{"type": "string"}),
				mcp.Required(),
			),
		),
		s.handleShowCategory,
	)

	mcpServer.AddTool(
		mcp.NewTool("list_categories",
			mcp.WithDescription("List the category tree. Categories stored in documents that were never opened are marked as unloaded unless fetch is set."),
			mcp.WithBoolean("fetch",
				mcp.Description("Load every referenced document first (slower, makes everything searchable)"),
			),
		),
		s.handleListCategories,
	)

	mcpServer.AddTool(
		mcp.NewTool("browse_select",
			mcp.WithDescription("Open a category in the browsing session. Level 1 is the top level; level N picks a child of the category open at level N-1 and closes anything deeper."),
			mcp.WithNumber("level",
				mcp.Description("1-based level"),
				mcp.Required(),
			),
			mcp.WithString("name",
				mcp.Description("Category name at that level"),
				mcp.Required(),
			),
		),
		s.handleBrowseSelect,
	)

	mcpServer.AddTool(
		mcp.NewTool("browse_fault",
			mcp.WithDescription("Show another fault of the open category in full. Index is the 0-based row of the fault table."),
			mcp.WithNumber("index",
				mcp.Description("0-based fault row"),
				mcp.Required(),
			),
		),
		s.handleBrowseFault,
	)

	mcpServer.AddTool(
		mcp.NewTool("browse_back",
			mcp.WithDescription("Go back up the breadcrumb. Index -1 returns to the top level, 0 keeps only the first category, and so on."),
			mcp.WithNumber("index",
				mcp.Description("Breadcrumb index to keep as the last entry"),
				mcp.Required(),
			),
		),
		s.handleBrowseBack,
	)
}

func (s *Server) registerResources(mcpServer *server.MCPServer) {
	mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			categoryScheme+"{+path}",
			"Fault category",
			mcp.WithTemplateDescription("A category's notice, fault table and first fault. Path segments are URL-escaped category names."),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.handleReadResource,
	)
}

func (s *Server) handleSearchFaults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	searchReq := rpc.SearchRequest{Query: query}
	if limit, ok := args["limit"].(float64); ok {
		searchReq.Limit = int(limit)
	}

	resp, err := s.client.Search(ctx, searchReq)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(resp.Results) == 0 {
		return mcp.NewToolResultText("No matches. Only opened documents are searched; try list_categories with fetch: true first."), nil
	}

	resultJSON, _ := json.MarshalIndent(resp.Results, "", "  ")
	return mcp.NewToolResultText(string(resultJSON)), nil
}

func (s *Server) handleShowCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := stringSlice(req.GetArguments()["path"])
	if err != nil || len(path) == 0 {
		return mcp.NewToolResultError("missing required parameter: path"), nil
	}

	resp, err := s.client.Show(ctx, rpc.ShowRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("show failed: %v", err)), nil
	}
	return mcp.NewToolResultText(resp.Markdown), nil
}

func (s *Server) handleListCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fetch, _ := req.GetArguments()["fetch"].(bool)

	resp, err := s.client.Tree(ctx, rpc.TreeRequest{Fetch: fetch})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}

	var b strings.Builder
	for _, c := range resp.Root.Children {
		writeOutline(&b, c, 0)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// writeOutline renders a category subtree as a nested Markdown list.
func writeOutline(b *strings.Builder, n *kb.Node, depth int) {
	fmt.Fprintf(b, "%s- %s", strings.Repeat("  ", depth), n.Name)
	if len(n.Faults) > 0 {
		fmt.Fprintf(b, " (%d faults)", len(n.Faults))
	}
	if n.ExternalRef != "" {
		b.WriteString(" [not loaded]")
	}
	b.WriteString("\n")
	for _, c := range n.Children {
		writeOutline(b, c, depth+1)
	}
}

func (s *Server) handleBrowseSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	level, ok := args["level"].(float64)
	if !ok {
		return mcp.NewToolResultError("missing required parameter: level"), nil
	}
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}
	return s.browse(ctx, func(id string) (*rpc.SessionResponse, error) {
		return s.client.SelectChild(ctx, id, rpc.SelectChildRequest{Level: int(level), Name: name})
	})
}

func (s *Server) handleBrowseFault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, ok := req.GetArguments()["index"].(float64)
	if !ok {
		return mcp.NewToolResultError("missing required parameter: index"), nil
	}
	return s.browse(ctx, func(id string) (*rpc.SessionResponse, error) {
		return s.client.SelectFault(ctx, id, int(index))
	})
}

func (s *Server) handleBrowseBack(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, ok := req.GetArguments()["index"].(float64)
	if !ok {
		return mcp.NewToolResultError("missing required parameter: index"), nil
	}
	return s.browse(ctx, func(id string) (*rpc.SessionResponse, error) {
		return s.client.SelectBreadcrumb(ctx, id, int(index))
	})
}

// browse runs op against the shared session and renders the resulting view.
// A session the daemon no longer knows, e.g. after it restarted, is replaced
// once.
func (s *Server) browse(ctx context.Context, op func(id string) (*rpc.SessionResponse, error)) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; ; attempt++ {
		if s.sessionID == "" {
			created, err := s.client.CreateSession(ctx)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("starting session: %v", err)), nil
			}
			s.sessionID = created.ID
		}

		resp, err := op(s.sessionID)
		var statusErr *daemon.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound && attempt == 0 {
			s.sessionID = ""
			continue
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(browseText(resp.View)), nil
	}
}

// browseText renders a session view followed by the deepest column, which
// lists what browse_select can open next.
func browseText(v *nav.View) string {
	var b strings.Builder
	b.WriteString(md.View(v))
	if len(v.Levels) == 0 {
		return b.String()
	}
	level := v.Levels[len(v.Levels)-1]
	if level.Depth <= len(v.Breadcrumb) {
		return b.String()
	}
	fmt.Fprintf(&b, "\n## %s (level %d)\n\n", level.Title, level.Depth)
	if len(level.Items) == 0 {
		b.WriteString("No subcategories.\n")
	}
	for _, item := range level.Items {
		fmt.Fprintf(&b, "- %s", item.Name)
		if item.HasChildren {
			b.WriteString(" ›")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	path, err := parseCategoryURI(uri)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Show(ctx, rpc.ShowRequest{Path: path})
	if err != nil {
		return nil, fmt.Errorf("showing category: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     resp.Markdown,
		},
	}, nil
}

// CategoryURI builds the resource URI for a category path.
func CategoryURI(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = url.PathEscape(p)
	}
	return categoryScheme + strings.Join(parts, "/")
}

func parseCategoryURI(uri string) ([]string, error) {
	rest, ok := strings.CutPrefix(uri, categoryScheme)
	if !ok || rest == "" {
		return nil, fmt.Errorf("invalid resource URI: %s", uri)
	}
	parts := strings.Split(rest, "/")
	for i, p := range parts {
		name, err := url.PathUnescape(p)
		if err != nil {
			return nil, fmt.Errorf("invalid resource URI %s: %w", uri, err)
		}
		parts[i] = name
	}
	return parts, nil
}

func stringSlice(v interface{}) ([]string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// Shutdown drops the browse session.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" {
		return nil
	}
	err := s.client.DeleteSession(ctx, s.sessionID)
	s.sessionID = ""
	return err
}
