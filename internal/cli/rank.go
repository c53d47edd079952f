package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/tripdraw/tripdraw/pkg/lottery"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// rankOpts holds the command-line flags for the rank command.
type rankOpts struct {
	at     string // execution time override (RFC 3339)
	roster string // roster file for a dry run against a memory store
}

// rankCommand creates the rank command for previewing the weekly order.
func (c *CLI) rankCommand() *cobra.Command {
	var opts rankOpts

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Preview the weekly ranked order",
		Long: `Print this week's ranked order without placing anyone.

The order is computed exactly as the weekly run computes it, so a
preview with --at set to the real run time is a faithful forecast.
Lower factors rank earlier; ties on one factor resolve by the next.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRank(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.at, "at", "", "execution time override (RFC 3339)")
	cmd.Flags().StringVar(&opts.roster, "roster", "", "roster file to rank instead of the configured store")

	return cmd
}

// runRank prints the ranked order as a table.
func (c *CLI) runRank(ctx context.Context, opts rankOpts) error {
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

	ranker := lottery.NewWinterRanker(st, store.ProgramWinterSchool, cfg.Lottery.Key, cfg.Lottery.SeedSecret, execTime)
	p := newProgress(c.Logger)
	ranked, err := ranker.RankedParticipants(ctx)
	if err != nil {
		return fmt.Errorf("rank participants: %w", err)
	}
	p.done(fmt.Sprintf("Ranked %d participants", len(ranked)))
	if len(ranked) == 0 {
		printInfo("Nobody has pending signups")
		return nil
	}

	rows := make([][]string, len(ranked))
	for i, r := range ranked {
		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%s (#%d)", r.Participant.Name, r.Participant.ID),
			lottery.AffiliationLabel(r.Participant.Affiliation),
			fmt.Sprintf("%d", r.Rank.Adjustment),
			fmt.Sprintf("%d", r.Rank.FlakeFactor),
			fmt.Sprintf("%d", r.Rank.LeaderBump),
			fmt.Sprintf("%.6f", r.Rank.AffiliationWeight),
		}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Participant", "Affiliation", "Adj", "Flake", "Lead", "Weight").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			return lipgloss.NewStyle()
		})

	fmt.Println(t.Render())
	printDetail("Ranked %d participants for %s", len(ranked), ranker.Today().Format("Jan 2, 2006"))
	return nil
}
