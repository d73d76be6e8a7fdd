package cmd

import (
	"context"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jcdickinson/faultbook/internal/config"
	"github.com/jcdickinson/faultbook/internal/tui"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Open the interactive browser (the default command)",
	Run:   runBrowse,
}

var browseLocal bool

func init() {
	browseCmd.Flags().BoolVar(&browseLocal, "local", false, "browse without the daemon")
}

func runBrowse(cmd *cobra.Command, args []string) {
	var backend tui.Backend
	if browseLocal {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		backend = tui.NewLocal(newStore(cfg))
	} else {
		client, err := connectDaemon()
		if err != nil {
			log.Fatalf("failed to connect to daemon: %v", err)
		}
		defer client.Close()
		backend = client
	}

	// The terminal belongs to the browser from here on.
	logFile, err := logToFile()
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer logFile.Close()

	final, err := tea.NewProgram(tui.New(backend), tea.WithAltScreen()).Run()
	if err != nil {
		log.Fatalf("browser failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if m, ok := final.(tui.Model); ok {
		m.Close(ctx)
	}
}
