package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/papapumpkin/semverx/internal/config"
	"github.com/papapumpkin/semverx/internal/telemetry"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry",
	Short: "View the JSONL telemetry event stream",
	Long: `Reads and formats the registry's JSONL telemetry file (telemetry.path,
default <data-dir>/telemetry.jsonl).

  --kind       Show only events of these kinds
  --package    Show only events for this package
  --follow     Watch the file for new events (like tail -f)`,
	Args: cobra.NoArgs,
	RunE: runTelemetry,
}

func init() {
	telemetryCmd.Flags().StringSlice("kind", nil, "event kinds to show: "+strings.Join(telemetry.Kinds(), ", "))
	telemetryCmd.Flags().String("package", "", "only events for this package")
	telemetryCmd.Flags().BoolP("follow", "f", false, "follow the file for new events")
	rootCmd.AddCommand(telemetryCmd)
}

// eventFilter selects events by kind and package; empty fields match all.
type eventFilter struct {
	kinds map[string]bool
	pkg   string
}

func (f eventFilter) match(evt telemetry.Event) bool {
	if len(f.kinds) > 0 && !f.kinds[evt.Kind] {
		return false
	}
	return f.pkg == "" || evt.PackageID == f.pkg
}

func runTelemetry(cmd *cobra.Command, _ []string) error {
	follow, _ := cmd.Flags().GetBool("follow")
	kinds, _ := cmd.Flags().GetStringSlice("kind")
	pkg, _ := cmd.Flags().GetString("package")
	filter := eventFilter{pkg: pkg}
	if len(kinds) > 0 {
		filter.kinds = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			filter.kinds[k] = true
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	path := cfg.TelemetryPath()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	defer f.Close()

	// Print all existing events.
	tail := &lineTail{r: bufio.NewReader(f)}
	w := cmd.OutOrStdout()
	if err := tail.printLines(w, filter); err != nil {
		return fmt.Errorf("telemetry: read %s: %w", path, err)
	}

	if !follow {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return tailFollow(ctx, w, tail, path, filter)
}

// lineTail reads complete JSONL lines from a file that is still being
// appended to. A trailing partial line is held until its newline arrives.
type lineTail struct {
	r       *bufio.Reader
	partial strings.Builder
}

// printLines prints every complete line available.
func (t *lineTail) printLines(w io.Writer, filter eventFilter) error {
	for {
		chunk, err := t.r.ReadString('\n')
		t.partial.WriteString(chunk)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if line := strings.TrimSpace(t.partial.String()); line != "" {
			printEvent(w, line, filter)
		}
		t.partial.Reset()
	}
}

// tailFollow watches the file for new data using fsnotify and prints new events.
func tailFollow(ctx context.Context, w io.Writer, tail *lineTail, path string, filter eventFilter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("telemetry: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("telemetry: watch %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == 0 {
				continue
			}
			if err := tail.printLines(w, filter); err != nil {
				return fmt.Errorf("telemetry: read %s: %w", path, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("telemetry: watch %s: %w", path, err)
		}
	}
}

// printEvent decodes a JSONL line and prints a human-readable representation.
func printEvent(w io.Writer, line string, filter eventFilter) {
	var evt telemetry.Event
	if err := json.Unmarshal([]byte(line), &evt); err != nil {
		fmt.Fprintf(w, "??? %s\n", line)
		return
	}
	if !filter.match(evt) {
		return
	}

	ts := evt.Timestamp.Format(time.TimeOnly)
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", ts))
	parts = append(parts, evt.Kind)

	if evt.PackageID != "" {
		parts = append(parts, fmt.Sprintf("package=%s", evt.PackageID))
	}
	if evt.Level != "" {
		parts = append(parts, fmt.Sprintf("fault=%s", evt.Level))
	}
	if evt.Data != nil {
		if m, ok := evt.Data.(map[string]any); ok {
			parts = append(parts, formatDataMap(m))
		} else {
			data, _ := json.Marshal(evt.Data)
			parts = append(parts, string(data))
		}
	}

	fmt.Fprintln(w, strings.Join(parts, " "))
}

// formatDataMap formats a data map as key=value pairs sorted by key.
func formatDataMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, m[k])
	}
	return b.String()
}
