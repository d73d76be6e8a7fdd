package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/jcdickinson/faultbook/internal/daemon"
	md "github.com/jcdickinson/faultbook/internal/markdown"
	"github.com/jcdickinson/faultbook/internal/rpc"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <category> [subcategory ...]",
	Short: "Show a category's faults",
	Long: `Print the notice and fault table of a category followed by one fault in
full. Each argument names the category at the next level down.`,
	Example: `  faultbook show Network
  faultbook show Network Wireless
  faultbook show --fault 2 Storage Disk
  faultbook show --raw Network > network.md`,
	Args: cobra.MinimumNArgs(1),
	Run:  runShow,
}

var (
	showFault int
	showRaw   bool
	showWidth int
)

func init() {
	showCmd.Flags().IntVar(&showFault, "fault", 0, "which fault to print in full (1-based)")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print Markdown instead of rendering it")
	showCmd.Flags().IntVar(&showWidth, "width", terminalWidth(), "wrap width for rendered output")
}

func runShow(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}
	ctx := context.Background()

	var markdown string
	if showFault <= 1 {
		resp, err := client.Show(ctx, rpc.ShowRequest{Path: args})
		if err != nil {
			log.Fatalf("show failed: %v", err)
		}
		markdown = resp.Markdown
	} else {
		markdown, err = showInSession(ctx, client, args, showFault-1)
		if err != nil {
			log.Fatalf("show failed: %v", err)
		}
	}

	if showRaw {
		fmt.Print(markdown)
		return
	}
	out, err := md.Terminal(markdown, showWidth)
	if err != nil {
		log.Fatalf("rendering failed: %v", err)
	}
	fmt.Print(out)
}

// showInSession walks to the category in a throwaway session so that a
// fault other than the first can be selected.
func showInSession(ctx context.Context, client *daemon.Client, path []string, fault int) (string, error) {
	sess, err := client.CreateSession(ctx)
	if err != nil {
		return "", err
	}
	defer client.DeleteSession(ctx, sess.ID)

	for i, name := range path {
		if _, err := client.SelectChild(ctx, sess.ID, rpc.SelectChildRequest{Level: i + 1, Name: name}); err != nil {
			return "", err
		}
	}
	sess, err = client.SelectFault(ctx, sess.ID, fault)
	if err != nil {
		return "", err
	}
	return md.View(sess.View), nil
}

func terminalWidth() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 20 {
		return n
	}
	return 100
}
