package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jcdickinson/faultbook/internal/config"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the shared daemon and browser log",
	Long: `Show the log written by the background daemon and by "faultbook browse".

Both append slog text lines to the same file, so a category that failed to
load in the browser sits next to the daemon request that fetched it.
--level hides lines below a severity; lines without a level are always shown.`,
	Args: cobra.NoArgs,
	Run:  runLogs,
}

var (
	logsFollow bool
	logsLines  int
	logsPath   bool
	logsLevel  string
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "keep printing new lines until interrupted")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of trailing lines to show")
	logsCmd.Flags().BoolVar(&logsPath, "path", false, "print the log file location and exit")
	logsCmd.Flags().StringVar(&logsLevel, "level", "debug", "minimum level to show (debug, info, warn, error)")
}

func runLogs(cmd *cobra.Command, args []string) {
	logPath := config.LogPath()
	if logsPath {
		fmt.Println(logPath)
		return
	}

	var minLevel slog.Level
	if err := minLevel.UnmarshalText([]byte(logsLevel)); err != nil {
		log.Fatalf("invalid --level %q: %v", logsLevel, err)
	}
	keep := func(line string) bool {
		level, ok := lineLevel(line)
		return !ok || level >= minLevel
	}

	f, err := os.Open(logPath)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("no log at %s yet (neither the daemon nor the browser has run)\n", logPath)
		return
	}
	if err != nil {
		log.Fatalf("opening log: %v", err)
	}
	defer f.Close()

	lines, err := lastLines(f, logsLines, keep)
	if err != nil {
		log.Fatalf("reading log: %v", err)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	if !logsFollow {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := followLog(ctx, f, os.Stdout, keep, 250*time.Millisecond); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("following log: %v", err)
	}
}

// lastLines reads r to the end and returns its final n lines that pass keep.
func lastLines(r io.Reader, n int, keep func(string) bool) ([]string, error) {
	if n <= 0 {
		_, err := io.Copy(io.Discard, r)
		return nil, err
	}
	ring := make([]string, 0, n)
	start := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !keep(line) {
			continue
		}
		if len(ring) < n {
			ring = append(ring, line)
			continue
		}
		ring[start] = line
		start = (start + 1) % n
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return append(ring[start:], ring[:start]...), nil
}

// followLog copies complete lines appended to r into w, polling at the given
// interval, until ctx is done. A line still being written is held back until
// its newline arrives.
func followLog(ctx context.Context, r io.Reader, w io.Writer, keep func(string) bool, poll time.Duration) error {
	br := bufio.NewReader(r)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var pending strings.Builder
	for {
		chunk, err := br.ReadString('\n')
		pending.WriteString(chunk)
		if err == nil {
			line := pending.String()
			pending.Reset()
			if keep(strings.TrimSuffix(line, "\n")) {
				if _, err := io.WriteString(w, line); err != nil {
					return err
				}
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// lineLevel extracts the level attribute of a slog text line.
func lineLevel(line string) (slog.Level, bool) {
	i := strings.Index(line, "level=")
	if i < 0 || (i > 0 && line[i-1] != ' ') {
		return 0, false
	}
	value := line[i+len("level="):]
	if end := strings.IndexByte(value, ' '); end >= 0 {
		value = value[:end]
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return 0, false
	}
	return level, true
}
