package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	tripio "github.com/tripdraw/tripdraw/pkg/io"
	"github.com/tripdraw/tripdraw/pkg/lottery"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// tripOpts holds the command-line flags for the trip command.
type tripOpts struct {
	roster string // roster file for a dry run against a memory store
	output string // run record JSON output path
}

// tripCommand creates the trip command for single-trip lotteries.
func (c *CLI) tripCommand() *cobra.Command {
	var opts tripOpts

	cmd := &cobra.Command{
		Use:   "trip [tripID]",
		Short: "Run a single trip's lottery",
		Long: `Run the lottery for one trip and convert it to first-come, first-serve.

Signups are ordered by seeded draw with preference to MIT affiliates,
pairs are placed together when the trip honors pairing, and separation
requests are respected. Whoever does not fit goes to the waitlist in
draw order.

Without a trip ID, an interactive picker lists the trips still in
lottery mode.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tripID int64
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid trip ID %q", args[0])
				}
				tripID = id
			}
			return c.runTrip(cmd.Context(), tripID, opts)
		},
	}

	cmd.Flags().StringVar(&opts.roster, "roster", "", "roster file to dry-run against instead of the configured store")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the run record JSON to a file")

	return cmd
}

// runTrip executes one trip's lottery, prompting for the trip when no
// ID was given.
func (c *CLI) runTrip(ctx context.Context, tripID int64, opts tripOpts) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	st, err := c.newStore(ctx, opts.roster)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	if tripID == 0 {
		picked, err := pickTrip(ctx, st)
		if err != nil {
			return err
		}
		if picked == nil {
			printDetail("No trip selected")
			return nil
		}
		printInfo("Running the lottery for %s", StyleHighlight.Render(picked.Name))
		tripID = picked.ID
	}

	runner := &lottery.TripRunner{
		Store:     st,
		Secret:    cfg.Lottery.SeedSecret,
		LogWriter: os.Stderr,
	}

	rec, err := runner.Run(ctx, tripID)
	if err != nil {
		return fmt.Errorf("trip lottery: %w", err)
	}
	if rec == nil {
		printWarning("Trip %d is already first-come, first-serve", tripID)
		return nil
	}

	handled, placed, waitlisted := summarize(rec)
	printSuccess("Trip lottery complete")
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

// pickTrip runs the interactive trip picker over the trips still in
// lottery mode. A nil trip means the user backed out.
func pickTrip(ctx context.Context, st store.Store) (*store.Trip, error) {
	trips, err := st.LotteryTrips(ctx, store.ProgramWinterSchool)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, fmt.Errorf("no trips in lottery mode")
	}

	items := make([]tripPickerItem, len(trips))
	for i, trip := range trips {
		signups, err := st.TripSignups(ctx, trip.ID)
		if err != nil {
			return nil, err
		}
		placed := 0
		for _, su := range signups {
			if su.OnTrip {
				placed++
			}
		}
		items[i] = tripPickerItem{Trip: trip, Placed: placed, Signups: len(signups)}
	}

	p := tea.NewProgram(NewTripListModel(items))
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("trip picker: %w", err)
	}

	m, ok := finalModel.(TripListModel)
	if !ok {
		return nil, nil
	}
	return m.Selected, nil
}
