package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/jcdickinson/faultbook/internal/rpc"
	"github.com/spf13/cobra"
)

var preloadCmd = &cobra.Command{
	Use:   "preload",
	Short: "Load every referenced document so that search covers everything",
	Example: `  faultbook preload
  faultbook preload --concurrency 8`,
	Args: cobra.NoArgs,
	Run:  runPreload,
}

var preloadConcurrency int

func init() {
	preloadCmd.Flags().IntVar(&preloadConcurrency, "concurrency", 0, "parallel fetches (default from config)")
}

func runPreload(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	report, err := client.Preload(context.Background(), rpc.PreloadRequest{Concurrency: preloadConcurrency}, func(msg string) {
		fmt.Printf("  %s\n", msg)
	})
	if err != nil {
		log.Fatalf("preload failed: %v", err)
	}

	fmt.Printf("%d documents loaded", len(report.Loaded))
	if len(report.Failed) > 0 {
		fmt.Printf(", %d failed:", len(report.Failed))
		for _, ref := range report.Failed {
			fmt.Printf(" %s", ref)
		}
	}
	fmt.Println()
}
