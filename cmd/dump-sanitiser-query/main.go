// Command dump-sanitiser-query reads the action history written by
// dump-sanitiser.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dump-sanitiser/internal/database"
	"dump-sanitiser/internal/exitcodes"
)

const defaultDBPath = "/var/lib/dump-sanitiser/history.db"

type queryOptions struct {
	dbPath     string
	jsonOutput bool
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	); err != nil {
		os.Exit(exitcodes.RuntimeError)
	}
}

func newRootCmd() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "dump-sanitiser-query",
		Short: "Inspect the dump-sanitiser action history",
		Example: `dump-sanitiser-query recent 20
dump-sanitiser-query actions --action MOVE
dump-sanitiser-query actions --path '/mnt/dump/Users/%'
dump-sanitiser-query actions --run 3f2a...
dump-sanitiser-query actions --since 2024-05-01 --until 2024-05-31
dump-sanitiser-query stats --days 7`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", defaultDBPath, "path to the action history database")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")

	cmd.AddCommand(
		newRecentCmd(opts),
		newActionsCmd(opts),
		newRunsCmd(opts),
		newStatsCmd(opts),
		newPruneCmd(opts),
	)
	return cmd
}

func withDB(opts *queryOptions, fn func(db *database.ActionDB) error) error {
	db, err := database.NewActionDB(opts.dbPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", opts.dbPath, err)
	}
	defer db.Close()
	return fn(db)
}

func newRecentCmd(opts *queryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recent [N]",
		Short: "Show the N most recent actions (default 20)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 20
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid count %q", args[0])
				}
				limit = n
			}
			return withDB(opts, func(db *database.ActionDB) error {
				records, err := db.GetRecentActions(limit)
				if err != nil {
					return fmt.Errorf("get recent actions: %w", err)
				}
				return output(cmd.OutOrStdout(), opts, records, printRecords)
			})
		},
	}
}

func newActionsCmd(opts *queryOptions) *cobra.Command {
	var action, pathPattern, runID, since, until string

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Filter actions by type, path pattern, run or time range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var start, end time.Time
			if since != "" || until != "" {
				var err error
				if start, end, err = timeRange(since, until, time.Now()); err != nil {
					return err
				}
			}
			return withDB(opts, func(db *database.ActionDB) error {
				var (
					records []database.ActionRecord
					err     error
				)
				switch {
				case runID != "":
					records, err = db.GetActionsByRun(runID)
				case action != "":
					records, err = db.GetActionsByType(action)
				case pathPattern != "":
					records, err = db.GetActionsByPath(pathPattern)
				case !end.IsZero():
					records, err = db.GetActionsByDateRange(start, end)
				default:
					return fmt.Errorf("one of --action, --path, --run, --since or --until is required")
				}
				if err != nil {
					return fmt.Errorf("query actions: %w", err)
				}
				return output(cmd.OutOrStdout(), opts, records, printRecords)
			})
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "action type: MOVE, DELETE_FILE, DELETE_DIR, PRUNE_DIR, ERROR")
	cmd.Flags().StringVar(&pathPattern, "path", "", "source or destination path pattern (SQL LIKE syntax)")
	cmd.Flags().StringVar(&runID, "run", "", "run id")
	cmd.Flags().StringVar(&since, "since", "", "earliest action time (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&until, "until", "", "latest action time, a bare date covers the whole day (default: now)")
	return cmd
}

const dateLayout = "2006-01-02"

// timeRange turns the --since/--until values into an inclusive range. An
// empty since means the beginning of time; an empty until means now.
func timeRange(since, until string, now time.Time) (time.Time, time.Time, error) {
	start := time.Unix(0, 0)
	end := now
	if since != "" {
		t, _, err := parseTime(since)
		if err != nil {
			return start, end, err
		}
		start = t
	}
	if until != "" {
		t, dateOnly, err := parseTime(until)
		if err != nil {
			return start, end, err
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		end = t
	}
	if end.Before(start) {
		return start, end, fmt.Errorf("--until %s is before --since %s", until, since)
	}
	return start, end, nil
}

func parseTime(s string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		// stored timestamps carry the local offset and compare as text
		return t.Local(), false, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC3339", s)
}

func newRunsCmd(opts *queryOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(opts, func(db *database.ActionDB) error {
				runs, err := db.GetRecentRuns(limit)
				if err != nil {
					return fmt.Errorf("get runs: %w", err)
				}
				return output(cmd.OutOrStdout(), opts, runs, printRuns)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func newStatsCmd(opts *queryOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregated statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(opts, func(db *database.ActionDB) error {
				stats, err := db.GetActionStats(days)
				if err != nil {
					return fmt.Errorf("get statistics: %w", err)
				}
				info, err := db.GetDatabaseStats()
				if err != nil {
					return fmt.Errorf("get database info: %w", err)
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), map[string]interface{}{"actions": stats, "database": info})
				}
				printStats(cmd.OutOrStdout(), days, stats, info)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "number of days to cover")
	return cmd
}

func newPruneCmd(opts *queryOptions) *cobra.Command {
	var olderThan int

	cmd := &cobra.Command{
		Use:   "prune-history",
		Short: "Delete history rows older than N days and compact the database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return withDB(opts, func(db *database.ActionDB) error {
				n, err := db.DeleteOldRecords(olderThan)
				if err != nil {
					return fmt.Errorf("delete old records: %w", err)
				}
				if err := db.Vacuum(); err != nil {
					return fmt.Errorf("vacuum: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d records older than %d days\n", n, olderThan)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&olderThan, "older-than", 90, "age in days")
	return cmd
}

func output[T any](w io.Writer, opts *queryOptions, v T, text func(io.Writer, T)) error {
	if opts.jsonOutput {
		return writeJSON(w, v)
	}
	text(w, v)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRecords(out io.Writer, records []database.ActionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTimestamp\tAction\tPhase\tSize\tPath\tDetail")
	_, _ = fmt.Fprintln(w, "--\t---------\t------\t-----\t----\t----\t------")

	for _, r := range records {
		detail := r.Destination
		if r.ErrorMessage != "" {
			detail = r.ErrorMessage
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Action, r.Phase,
			humanize.IBytes(uint64(r.Size)), r.Path, detail)
	}
	_ = w.Flush()
}

func printRuns(out io.Writer, runs []database.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "Run\tStarted\tActions\tErrors")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s (%s)\t%d\t%d\n",
			r.RunID, r.Started.Format("2006-01-02 15:04:05"), humanize.Time(r.Started), r.Actions, r.Errors)
	}
	_ = w.Flush()
}

func printStats(out io.Writer, days int, stats *database.ActionStats, info map[string]interface{}) {
	fmt.Fprintf(out, "Action Statistics (Last %d days)\n", days)
	fmt.Fprintf(out, "Period: %s to %s\n\n", stats.StartDate.Format("2006-01-02"), stats.EndDate.Format("2006-01-02"))
	fmt.Fprintf(out, "Runs:             %d\n", stats.TotalRuns)
	fmt.Fprintf(out, "Files Moved:      %d (%s)\n", stats.TotalMoves, humanize.IBytes(uint64(stats.TotalBytesMoved)))
	fmt.Fprintf(out, "Deletions:        %d\n", stats.TotalDeletions)
	fmt.Fprintf(out, "Dirs Pruned:      %d\n", stats.TotalPruned)
	fmt.Fprintf(out, "Errors:           %d\n\n", stats.TotalErrors)

	if len(stats.ByAction) > 0 {
		actions := make([]string, 0, len(stats.ByAction))
		for a := range stats.ByAction {
			actions = append(actions, a)
		}
		sort.Strings(actions)

		fmt.Fprintln(out, "By Action:")
		for _, a := range actions {
			fmt.Fprintf(out, "  %-15s %d\n", a, stats.ByAction[a])
		}
		fmt.Fprintln(out)
	}

	if size, ok := info["database_size_bytes"].(int64); ok {
		fmt.Fprintf(out, "Database: %d records, %s\n", info["total_records"], humanize.IBytes(uint64(size)))
	}
}
