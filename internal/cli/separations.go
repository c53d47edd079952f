package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/tripdraw/tripdraw/pkg/cache"
	tderrors "github.com/tripdraw/tripdraw/pkg/errors"
	"github.com/tripdraw/tripdraw/pkg/lottery"
	"github.com/tripdraw/tripdraw/pkg/render"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// separationsCommand creates the separations command group.
func (c *CLI) separationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "separations",
		Short: "Manage and inspect separation requests",
		Long: `Manage and inspect separation requests.

A separation keeps two participants off the same trip. Requests are
recorded one-way but bind both directions at placement time: a request
from Alice against Bert also keeps Bert off Alice's trips. A loop of
requests that cannot resolve on its own shows up under "cycles".`,
	}

	cmd.AddCommand(c.separationsListCommand())
	cmd.AddCommand(c.separationsAddCommand())
	cmd.AddCommand(c.separationsRemoveCommand())
	cmd.AddCommand(c.separationsGraphCommand())
	cmd.AddCommand(c.separationsCyclesCommand())
	cmd.AddCommand(c.separationsRenderCommand())

	return cmd
}

// separationsListCommand creates the "separations list" subcommand.
func (c *CLI) separationsListCommand() *cobra.Command {
	var roster string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all separation requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSeparationsList(cmd.Context(), roster)
		},
	}

	cmd.Flags().StringVar(&roster, "roster", "", "roster file to inspect instead of the configured store")

	return cmd
}

func (c *CLI) runSeparationsList(ctx context.Context, roster string) error {
	st, err := c.newStore(ctx, roster)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	seps, err := st.Separations(ctx)
	if err != nil {
		return err
	}
	if len(seps) == 0 {
		printInfo("No separation requests")
		return nil
	}

	rows := make([][]string, len(seps))
	for i, s := range seps {
		rows[i] = []string{
			participantLabel(ctx, st, s.InitiatorID),
			participantLabel(ctx, st, s.RecipientID),
			s.CreatedAt.Format("Jan 2, 2006"),
		}
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Initiator", "Never With", "Since").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			return lipgloss.NewStyle()
		})

	fmt.Println(t.Render())
	return nil
}

// separationsAddCommand creates the "separations add" subcommand.
func (c *CLI) separationsAddCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "add [initiatorID] [recipientID]",
		Short: "Record a separation request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			initiator, recipient, err := parseSeparationArgs(args)
			if err != nil {
				return err
			}
			return c.runSeparationsAdd(cmd.Context(), initiator, recipient)
		},
	}
}

func (c *CLI) runSeparationsAdd(ctx context.Context, initiator, recipient int64) error {
	if initiator == recipient {
		return tderrors.New(tderrors.ErrCodeSelfSeparation, "a participant cannot be separated from themselves")
	}

	st, err := c.newStore(ctx, "")
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	sep := store.Separation{
		InitiatorID: initiator,
		RecipientID: recipient,
		CreatedAt:   time.Now(),
	}
	if err := st.AddSeparation(ctx, &sep); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			printWarning("Separation already exists")
			return nil
		}
		return err
	}

	printSuccess("%s will never share a trip with %s",
		participantLabel(ctx, st, initiator), participantLabel(ctx, st, recipient))
	printNextStep("Inspect the graph", "tripdraw separations graph")
	return nil
}

// separationsRemoveCommand creates the "separations remove" subcommand.
func (c *CLI) separationsRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [initiatorID] [recipientID]",
		Short: "Delete a separation request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			initiator, recipient, err := parseSeparationArgs(args)
			if err != nil {
				return err
			}
			return c.runSeparationsRemove(cmd.Context(), initiator, recipient)
		},
	}
}

func (c *CLI) runSeparationsRemove(ctx context.Context, initiator, recipient int64) error {
	st, err := c.newStore(ctx, "")
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	if err := st.RemoveSeparation(ctx, initiator, recipient); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			printInfo("No separation from %d to %d", initiator, recipient)
			return nil
		}
		return err
	}

	printSuccess("Removed separation from %s to %s",
		participantLabel(ctx, st, initiator), participantLabel(ctx, st, recipient))
	return nil
}

// separationsGraphCommand creates the "separations graph" subcommand.
func (c *CLI) separationsGraphCommand() *cobra.Command {
	var (
		roster  string
		output  string
		rankDir string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the separation graph as DOT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSeparationsGraph(cmd.Context(), roster, output, rankDir)
		},
	}

	cmd.Flags().StringVar(&roster, "roster", "", "roster file to inspect instead of the configured store")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the DOT text to a file instead of stdout")
	cmd.Flags().StringVar(&rankDir, "rankdir", "", "graphviz rank direction: LR (default), TB, RL, BT")

	return cmd
}

func (c *CLI) runSeparationsGraph(ctx context.Context, roster, output, rankDir string) error {
	st, err := c.newStore(ctx, roster)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	g, err := lottery.SeparationGraph(ctx, st)
	if err != nil {
		return err
	}

	dot := render.ToDOT(g, render.Options{RankDir: rankDir})
	if output == "" {
		fmt.Print(dot)
		return nil
	}
	if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}
	printFile(output)
	return nil
}

// separationsCyclesCommand creates the "separations cycles" subcommand.
func (c *CLI) separationsCyclesCommand() *cobra.Command {
	var roster string

	cmd := &cobra.Command{
		Use:   "cycles [participantID]",
		Short: "Show unresolvable separation loops for a participant",
		Long: `Show the separation loops the participant is inescapably part of.

A loop only counts when every participant reachable from the given one
blocks somebody: if anyone reachable blocks nobody, handling them first
unwinds the rest and no loop needs breaking.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid participant ID %q", args[0])
			}
			return c.runSeparationsCycles(cmd.Context(), roster, id)
		},
	}

	cmd.Flags().StringVar(&roster, "roster", "", "roster file to inspect instead of the configured store")

	return cmd
}

func (c *CLI) runSeparationsCycles(ctx context.Context, roster string, participantID int64) error {
	st, err := c.newStore(ctx, roster)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	g, err := lottery.SeparationGraph(ctx, st)
	if err != nil {
		return err
	}

	label := participantLabel(ctx, st, participantID)
	cycles := g.IsolatedCyclesID(participantID)
	if len(cycles) == 0 {
		printSuccess("No unresolvable separation loops involve %s", label)
		return nil
	}

	printWarning("Found %d unresolvable separation loops involving %s", len(cycles), label)
	for _, cycle := range cycles {
		printDetail("%s", cycle)
	}
	return nil
}

// separationsRenderCommand creates the "separations render" subcommand.
func (c *CLI) separationsRenderCommand() *cobra.Command {
	var (
		roster  string
		output  string
		format  string
		rankDir string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the separation graph to SVG",
		Long: `Render the separation graph via graphviz.

Rendered SVGs are cached locally keyed by the graph content, so
re-rendering an unchanged graph is instant. Participants belonging to
an unresolvable loop are drawn filled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "svg" && format != "dot" {
				return fmt.Errorf("invalid format: %s (must be 'svg' or 'dot')", format)
			}
			return c.runSeparationsRender(cmd.Context(), separationsRenderOpts{
				roster:  roster,
				output:  output,
				format:  format,
				rankDir: rankDir,
				noCache: noCache,
			})
		},
	}

	cmd.Flags().StringVar(&roster, "roster", "", "roster file to inspect instead of the configured store")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default separations.svg)")
	cmd.Flags().StringVarP(&format, "format", "f", "svg", "output format: svg (default), dot")
	cmd.Flags().StringVar(&rankDir, "rankdir", "", "graphviz rank direction: LR (default), TB, RL, BT")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// separationsRenderOpts holds the flags for "separations render".
type separationsRenderOpts struct {
	roster  string
	output  string
	format  string
	rankDir string
	noCache bool
}

func (c *CLI) runSeparationsRender(ctx context.Context, opts separationsRenderOpts) error {
	st, err := c.newStore(ctx, opts.roster)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	g, err := lottery.SeparationGraph(ctx, st)
	if err != nil {
		return err
	}

	// Fill everyone caught in a loop that cannot resolve on its own.
	highlight := make(map[int64]bool)
	for _, p := range g.Affected() {
		for _, cycle := range g.IsolatedCyclesID(p.ID) {
			for _, member := range cycle.Participants() {
				highlight[member.ID] = true
			}
		}
	}

	dot := render.ToDOT(g, render.Options{RankDir: opts.rankDir, Highlight: highlight})

	output := opts.output
	if output == "" {
		output = "separations." + opts.format
	}

	if opts.format == "dot" {
		if err := os.WriteFile(output, []byte(dot), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		printSuccess("Rendered separation graph")
		printFile(output)
		return nil
	}

	artifactCache, err := c.newCache(opts.noCache)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer artifactCache.Close()

	relations := 0
	for _, recipients := range g.Current() {
		relations += len(recipients)
	}

	keys := cache.NewDefaultKeyer()
	graphKey := keys.GraphKey(cache.Hash([]byte(dot)), cache.GraphKeyOpts{
		Participants: len(g.Affected()),
		Relations:    relations,
	})
	artifactKey := keys.ArtifactKey(graphKey, cache.ArtifactKeyOpts{
		Format: opts.format,
		Layout: opts.rankDir,
	})

	spinner := newSpinnerWithContext(ctx, "Rendering separation graph...")
	spinner.Start()

	svg, hit, err := artifactCache.Get(ctx, artifactKey)
	if err != nil || !hit {
		svg, err = render.RenderSVG(ctx, dot)
		if err != nil {
			spinner.StopWithError("Rendering failed")
			return fmt.Errorf("render svg: %w", err)
		}
		ttl := time.Duration(0)
		if cfg, cfgErr := c.loadConfig(); cfgErr == nil {
			ttl = cfg.CacheTTL()
		}
		if err := artifactCache.Set(ctx, artifactKey, svg, ttl); err != nil {
			c.Logger.Debugf("cache set failed: %v", err)
		}
	}
	if err := os.WriteFile(output, svg, 0o644); err != nil {
		spinner.StopWithError("Rendering failed")
		return fmt.Errorf("write %s: %w", output, err)
	}

	spinner.StopWithSuccess("Rendered separation graph")
	printArtifact(output, hit)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// parseSeparationArgs parses the two participant IDs add/remove take.
func parseSeparationArgs(args []string) (initiator, recipient int64, err error) {
	initiator, err = strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid initiator ID %q", args[0])
	}
	recipient, err = strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid recipient ID %q", args[1])
	}
	return initiator, recipient, nil
}

// participantLabel renders "Name (#id)", falling back to the bare ID
// when the participant is unknown.
func participantLabel(ctx context.Context, st store.Store, id int64) string {
	p, err := st.Participant(ctx, id)
	if err != nil {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("%s (#%d)", p.Name, p.ID)
}
