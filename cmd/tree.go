package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/disiqueira/gotree/v3"
	json "github.com/goccy/go-json"
	"github.com/jcdickinson/faultbook/internal/kb"
	"github.com/jcdickinson/faultbook/internal/rpc"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the category tree",
	Example: `  faultbook tree
  faultbook tree --fetch`,
	Args: cobra.NoArgs,
	Run:  runTree,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the knowledge base as a single document",
	Long: `Export the category tree with every external document inlined. Without
--fetch, only documents that were already opened are inlined and the rest
keep their file reference.`,
	Example: `  faultbook export --fetch > kb.json
  faultbook export --fetch --format yaml -o kb.yaml`,
	Args: cobra.NoArgs,
	Run:  runExport,
}

var (
	treeFetch    bool
	exportFetch  bool
	exportFormat string
	exportOutput string
)

func init() {
	treeCmd.Flags().BoolVar(&treeFetch, "fetch", false, "load every referenced document first")

	exportCmd.Flags().BoolVar(&exportFetch, "fetch", false, "load every referenced document first")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format: json or yaml")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to a file instead of stdout")
}

func fetchTree(fetch bool) *kb.Node {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}
	resp, err := client.Tree(context.Background(), rpc.TreeRequest{Fetch: fetch})
	if err != nil {
		log.Fatalf("tree failed: %v", err)
	}
	return resp.Root
}

func runTree(cmd *cobra.Command, args []string) {
	root := gotree.New("Home")
	addBranches(root, fetchTree(treeFetch))
	fmt.Print(root.Print())
}

func addBranches(t gotree.Tree, n *kb.Node) {
	for _, c := range n.Children {
		label := c.Name
		if len(c.Faults) > 0 {
			label += fmt.Sprintf(" (%d faults)", len(c.Faults))
		}
		if c.ExternalRef != "" {
			label += " → " + c.ExternalRef
		}
		addBranches(t.Add(label), c)
	}
}

func runExport(cmd *cobra.Command, args []string) {
	root := fetchTree(exportFetch)
	doc := struct {
		Categories []*kb.Node `json:"categories" yaml:"categories"`
	}{root.Children}

	var (
		out []byte
		err error
	)
	switch exportFormat {
	case "json":
		out, err = json.MarshalIndent(doc, "", "  ")
		out = append(out, '\n')
	case "yaml":
		out, err = yaml.Marshal(doc)
	default:
		log.Fatalf("unknown format %q (want json or yaml)", exportFormat)
	}
	if err != nil {
		log.Fatalf("encoding failed: %v", err)
	}

	if exportOutput == "" {
		os.Stdout.Write(out)
		return
	}
	if err := os.WriteFile(exportOutput, out, 0644); err != nil {
		log.Fatalf("writing %s: %v", exportOutput, err)
	}
}
