package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	tripio "github.com/tripdraw/tripdraw/pkg/io"
	"github.com/tripdraw/tripdraw/pkg/lottery"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	at     string // execution time override (RFC 3339)
	roster string // roster file for a dry run against a memory store
	output string // run record JSON output path
	logDir string // per-run log directory override
}

// runCommand creates the run command for the weekly lottery.
func (c *CLI) runCommand() *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the weekly lottery",
		Long: `Run the weekly lottery over every pending signup.

Participants are ranked by seeded draw and placed one by one on the
best open trip they chose, honoring pairs, driver quotas, and
separation requests. Afterwards all remaining lottery trips convert to
first-come, first-serve.

With --roster the run happens against an in-memory copy loaded from
the file and nothing is saved. Combined with --at this previews a
future run: draws are seeded per participant, key, and date, so the
real run at that time reproduces the same ranks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWeekly(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.at, "at", "", "execution time override (RFC 3339)")
	cmd.Flags().StringVar(&opts.roster, "roster", "", "roster file to dry-run against instead of the configured store")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the run record JSON to a file")
	cmd.Flags().StringVar(&opts.logDir, "log-dir", "", "directory for the per-run log file")

	return cmd
}

// runWeekly executes the weekly lottery and prints a summary.
func (c *CLI) runWeekly(ctx context.Context, opts runOpts) error {
	execTime, err := parseAt(opts.at)
	if err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	st, err := c.newStore(ctx, opts.roster)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	if opts.roster != "" {
		printInfo("Dry run against %s: nothing will be saved", opts.roster)
	}

	logDir := opts.logDir
	if logDir == "" {
		logDir = cfg.Lottery.LogDir
	}

	runner := &lottery.WeeklyRunner{
		Store:         st,
		Key:           cfg.Lottery.Key,
		MinDrivers:    cfg.Lottery.MinDrivers,
		Secret:        cfg.Lottery.SeedSecret,
		LogDir:        logDir,
		LogWriter:     os.Stderr,
		ExecutionTime: execTime,
	}

	rec, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("weekly lottery: %w", err)
	}

	// A blank line separates the summary from the streamed run log.
	printNewline()
	handled, placed, waitlisted := summarize(rec)
	printSuccess("Lottery complete")
	printRunStats(handled, placed, waitlisted)
	printDetail("Run ID: %s", rec.ID)

	if opts.output != "" {
		if err := tripio.ExportResults(rec, opts.output); err != nil {
			return err
		}
		printFile(opts.output)
	}
	return nil
}

// parseAt parses the --at flag. Empty means now.
func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --at: %w", err)
	}
	return t, nil
}

// summarize tallies a run record for the one-line stats output.
func summarize(rec *store.RunRecord) (handled, placed, waitlisted int) {
	handled = len(rec.Results)
	for _, res := range rec.Results {
		if res.PlacedOnChoice > 0 {
			placed++
		}
		if res.Waitlisted {
			waitlisted++
		}
	}
	return handled, placed, waitlisted
}
