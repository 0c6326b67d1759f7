package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/rfs/internal/storage"
	"github.com/berrythewa/rfs/pkg/format"
)

// newHistoryCmd creates the history command
func newHistoryCmd() *cobra.Command {
	var (
		limit    int
		useJSON  bool
		compact  bool
		noColors bool
		showIDs  bool
		prune    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show requests served by rfsd",
		Long: `Show the request journal, newest first.

Examples:
  rfsd history              # Show the last 10 requests
  rfsd history -n 50        # Show the last 50 requests
  rfsd history --json       # Machine-readable output
  rfsd history --prune 100  # Keep only the newest 100 entries`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Journal.Path == "" {
				return fmt.Errorf("journal path is not configured")
			}
			if _, err := os.Stat(cfg.Journal.Path); os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "No requests recorded.")
				return nil
			}

			journal, err := storage.NewJournal(storage.JournalConfig{
				DBPath: cfg.Journal.Path,
				Keep:   cfg.Journal.Keep,
				Logger: GetZapLogger(),
			})
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			GetZapLogger().Debug("Reading journal", zap.String("path", journal.Path()))

			if cmd.Flags().Changed("prune") {
				if err := journal.Prune(prune); err != nil {
					return fmt.Errorf("failed to prune journal: %w", err)
				}
				GetZapLogger().Info("Journal pruned", zap.Int("keep", prune))
			}

			entries, err := journal.List(limit)
			if err != nil {
				return fmt.Errorf("failed to read journal: %w", err)
			}

			out := cmd.OutOrStdout()
			if useJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if entries == nil {
					entries = []*storage.Entry{}
				}
				return enc.Encode(entries)
			}

			total, err := journal.Count()
			if err != nil {
				return fmt.Errorf("failed to count journal entries: %w", err)
			}

			opts := format.DefaultOptions()
			if compact {
				opts = format.CompactOptions()
			}
			opts.UseColors = !noColors
			opts.ShowIDs = showIDs

			fmt.Fprintln(out, format.FormatEntries(entries, total, opts, time.Now()))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to show (0 = all)")
	cmd.Flags().BoolVar(&useJSON, "json", false, "output entries as JSON")
	cmd.Flags().BoolVarP(&compact, "compact", "c", false, "one line per entry")
	cmd.Flags().BoolVar(&noColors, "no-colors", false, "disable colored output")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "show entry IDs")
	cmd.Flags().IntVar(&prune, "prune", 0, "keep only the newest N entries before listing")
	return cmd
}
