package cmd

import (
	"context"
	"fmt"
	"log"

	json "github.com/goccy/go-json"
	"github.com/jcdickinson/faultbook/internal/config"
	"github.com/jcdickinson/faultbook/internal/daemon"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show loaded documents and daemon state",
	Run:   runStatus,
}

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background())
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("source:   %s\n", resp.Source)
	fmt.Printf("root:     %s\n", resp.Root)
	fmt.Printf("sessions: %d\n", resp.Sessions)
	if !resp.Loaded {
		if resp.Error != "" {
			fmt.Printf("root document unavailable: %s\n", resp.Error)
		} else {
			fmt.Println("root document not loaded yet")
		}
		return
	}
	fmt.Printf("cached documents (%d):\n", len(resp.Cached))
	for _, key := range resp.Cached {
		fmt.Printf("  %s\n", key)
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// The daemon may drop the connection as it exits; either way it is going.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}
