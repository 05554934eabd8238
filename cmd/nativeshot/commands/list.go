package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/nativeshot/internal/config"
	"github.com/bryanchriswhite/nativeshot/internal/xcap"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List visible top-level windows",
	Long: `List the visible top-level windows the capture backend can see, with
the numeric ids and titles the locator matches requests against.`,
	Example: `  # List windows in table format (default)
  nativeshot list

  # List windows in JSON format
  nativeshot list --format json`,
	RunE: runList,
}

var listFormat string

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
}

func runList(cmd *cobra.Command, args []string) error {
	configMgr, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configMgr.Get()

	var facility xcap.Facility
	if cfg.Backend == config.BackendVirtual {
		// Only the demo window exists in a virtual backend
		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.close()
		facility = rt.facility
	} else {
		f, err := xcap.New()
		if err != nil {
			return fmt.Errorf("failed to open capture backend: %w", err)
		}
		if c, ok := f.(io.Closer); ok {
			defer c.Close()
		}
		facility = f
	}

	windows, err := xcap.List(facility)
	if err != nil {
		return fmt.Errorf("failed to enumerate windows: %w", err)
	}

	switch listFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(windows)
	case "table":
		return printWindowsTable(os.Stdout, windows)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printWindowsTable(out io.Writer, windows []xcap.Info) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tSIZE\tTITLE")
	fmt.Fprintln(w, "--\t----\t-----")

	for _, win := range windows {
		size := "-"
		if win.Width > 0 && win.Height > 0 {
			size = fmt.Sprintf("%dx%d", win.Width, win.Height)
		}
		fmt.Fprintf(w, "0x%08x\t%s\t%s\n", win.ID, size, win.Title)
	}

	return nil
}
