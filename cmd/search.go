package cmd

import (
	"context"
	"fmt"
	"log"

	json "github.com/goccy/go-json"
	"github.com/jcdickinson/faultbook/internal/rpc"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search categories and faults",
	Long: `Case-insensitive substring search over category names, notices and fault
codes, titles, descriptions, symptoms and causes. Only documents that were
opened are searched; use --all to load every document first.`,
	Example: `  faultbook search timeout
  faultbook search --all E1042
  faultbook search --limit 5 --json "disk full"`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

var (
	searchLimit int
	searchAll   bool
	searchJSON  bool
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "max results (0 for all)")
	searchCmd.Flags().BoolVar(&searchAll, "all", false, "load every document before searching")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
}

func runSearch(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}
	ctx := context.Background()

	if searchAll {
		if _, err := client.Preload(ctx, rpc.PreloadRequest{}, nil); err != nil {
			log.Fatalf("preload failed: %v", err)
		}
	}

	resp, err := client.Search(ctx, rpc.SearchRequest{
		Query: args[0],
		Limit: searchLimit,
	})
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	if searchJSON {
		out, _ := json.MarshalIndent(resp.Results, "", "  ")
		fmt.Println(string(out))
		return
	}

	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return
	}

	for i, r := range resp.Results {
		fmt.Printf("%d. %s\n", i+1, r.Trail)
	}
}
