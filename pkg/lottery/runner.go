package lottery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/tripdraw/tripdraw/pkg/observability"
	"github.com/tripdraw/tripdraw/pkg/separation"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// separationIndex answers "must a and b stay apart?" in O(1). Requests
// are recorded one-way but bind both directions at placement time.
type separationIndex map[int64]map[int64]bool

func newSeparationIndex(seps []store.Separation) separationIndex {
	ix := make(separationIndex)
	add := func(a, b int64) {
		set := ix[a]
		if set == nil {
			set = make(map[int64]bool)
			ix[a] = set
		}
		set[b] = true
	}
	for _, s := range seps {
		add(s.InitiatorID, s.RecipientID)
		add(s.RecipientID, s.InitiatorID)
	}
	return ix
}

func (ix separationIndex) conflict(a, b int64) bool { return ix[a][b] }

// runState is the bookkeeping shared by one lottery execution: who has
// come up, who is fully handled, and which separation requests still
// matter for the deadlock report.
type runState struct {
	st     store.Store
	logger *log.Logger

	seen    map[int64]bool
	handled map[int64]bool

	// requests keeps the raw one-way records: the deadlock graph needs
	// their direction, while placement treats them symmetrically
	// through the index.
	requests    []store.Separation
	separations separationIndex
	graph       *separation.Graph
}

func newRunState(ctx context.Context, st store.Store, logger *log.Logger) (*runState, error) {
	seps, err := st.Separations(ctx)
	if err != nil {
		return nil, err
	}
	return &runState{
		st:          st,
		logger:      logger,
		seen:        make(map[int64]bool),
		handled:     make(map[int64]bool),
		requests:    seps,
		separations: newSeparationIndex(seps),
	}, nil
}

func (r *runState) seenID(id int64) bool    { return r.seen[id] }
func (r *runState) handledID(id int64) bool { return r.handled[id] }
func (r *runState) markSeen(id int64)       { r.seen[id] = true }

// markHandled also retires the participant from the deadlock graph:
// somebody already placed or waitlisted can no longer be part of an
// unresolvable loop.
func (r *runState) markHandled(id int64) {
	r.handled[id] = true
	if r.graph != nil {
		r.graph.RemoveID(id)
	}
}

// separationClash names the first separation broken by adding the
// group to the trip, or "" when none would be. Leaders count as being
// on the trip.
func (r *runState) separationClash(ctx context.Context, tripID int64, group ...store.Participant) (string, error) {
	if len(r.separations) == 0 {
		return "", nil
	}
	signups, err := r.st.TripSignups(ctx, tripID)
	if err != nil {
		return "", err
	}
	aboard := make([]int64, 0, len(signups))
	for _, su := range signups {
		if su.OnTrip {
			aboard = append(aboard, su.ParticipantID)
		}
	}
	leaders, err := r.st.Leaders(ctx, tripID)
	if err != nil {
		return "", err
	}
	aboard = append(aboard, leaders...)
	for _, p := range group {
		for _, id := range aboard {
			if !r.separations.conflict(p.ID, id) {
				continue
			}
			other, err := r.st.Participant(ctx, id)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s must stay separated from %s", p.Name, other.Name), nil
		}
	}
	return "", nil
}

// reportDeadlocks builds the separation graph over the unhandled
// working set and logs every loop that cannot resolve on its own.
// Cycles reachable from several members are reported once.
func (r *runState) reportDeadlocks(ctx context.Context, working []store.Participant) {
	members := make([]separation.Participant, len(working))
	byID := make(map[int64]separation.Participant, len(working))
	for i, p := range working {
		sp := separation.Participant{ID: p.ID, Name: p.Name}
		members[i] = sp
		byID[p.ID] = sp
	}
	var relations []separation.Relation
	for _, s := range r.requests {
		ip, ok := byID[s.InitiatorID]
		if !ok {
			continue
		}
		rp, ok := byID[s.RecipientID]
		if !ok {
			continue
		}
		relations = append(relations, separation.Relation{Initiator: ip, Recipient: rp})
	}
	r.graph = separation.NewGraph(members, relations)
	if r.graph.Empty() {
		return
	}

	affected := r.graph.Affected()
	names := make([]string, len(affected))
	for i, p := range affected {
		names[i] = p.String()
	}
	r.logger.Infof("Separation requests involve: %s", strings.Join(names, ", "))

	var reported []*separation.Cycle
	for _, p := range affected {
		cycles := r.graph.IsolatedCycles(p)
		if len(cycles) == 0 {
			continue
		}
		observability.Lottery().OnDeadlock(ctx, p.ID, len(cycles))
		for _, c := range cycles {
			fresh := true
			for _, seen := range reported {
				if c.Equal(seen) {
					fresh = false
					break
				}
			}
			if fresh {
				reported = append(reported, c)
				r.logger.Warnf("Unresolvable separation loop: %s", c)
			}
		}
	}
}

// newRunLogger returns a debug-level logger writing to every given
// writer. Nil writers are skipped.
func newRunLogger(writers ...io.Writer) *log.Logger {
	out := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			out = append(out, w)
		}
	}
	return log.NewWithOptions(io.MultiWriter(out...), log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           log.DebugLevel,
	})
}

// WeeklyRunner executes the weekly lottery: every participant with
// pending signups is ranked and placed, then the program's remaining
// lottery trips convert to first-come, first-serve.
//
// The index of separation requests is symmetric at placement time, and
// the ranking consequences of a clash land on whichever side is
// handled later.
type WeeklyRunner struct {
	// Store backs all reads and writes of the run.
	Store store.Store

	// Program scopes the run; empty means the winter program.
	Program string

	// Key prefixes the run's rank seeds; empty means DefaultKey.
	Key string

	// MinDrivers is the per-trip driver quota.
	MinDrivers int

	// Secret feeds the per-participant ranking seeds.
	Secret string

	// LogDir receives the per-run log file. Empty skips the file.
	LogDir string

	// LogWriter receives log output as the run progresses, usually
	// stderr for CLI runs. Nil keeps the log in the run record only.
	LogWriter io.Writer

	// ExecutionTime fixes the effective run time; zero means now. Test
	// runs fix a future time so the later real run reproduces their
	// ranks exactly.
	ExecutionTime time.Time
}

// Run executes the lottery and returns the persisted run record.
func (w *WeeklyRunner) Run(ctx context.Context) (rec *store.RunRecord, err error) {
	program := w.Program
	if program == "" {
		program = store.ProgramWinterSchool
	}
	started := time.Now()
	runID := uuid.NewString()
	defer func() {
		observability.Lottery().OnRunComplete(ctx, store.RunKindWeekly, runID, time.Since(started), err)
	}()

	ranker := NewWinterRanker(w.Store, program, w.Key, w.Secret, w.ExecutionTime)

	var buf bytes.Buffer
	writers := []io.Writer{&buf, w.LogWriter}
	if w.LogDir != "" {
		if err := os.MkdirAll(w.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		name := fmt.Sprintf("ws_%s.log", started.Format("2006-01-02T15-04-05"))
		f, err := os.Create(filepath.Join(w.LogDir, name))
		if err != nil {
			return nil, fmt.Errorf("create run log: %w", err)
		}
		defer f.Close()
		writers = append(writers, f)
	}
	logger := newRunLogger(writers...)

	run, err := newRunState(ctx, w.Store, logger)
	if err != nil {
		return nil, err
	}

	logger.Infof("Running the weekly lottery for %s", ranker.Runtime.Format(time.RFC3339))
	ranked, err := ranker.RankedParticipants(ctx)
	if err != nil {
		return nil, err
	}
	observability.Lottery().OnRunStart(ctx, store.RunKindWeekly, len(ranked))
	logger.Infof("%d participants signed up for trips this week", len(ranked))

	working := make([]store.Participant, len(ranked))
	for i, rp := range ranked {
		working[i] = rp.Participant
	}
	run.reportDeadlocks(ctx, working)

	results, err := w.assignTrips(ctx, run, ranker, ranked)
	if err != nil {
		return nil, err
	}
	if err := w.freeForAll(ctx, logger, program, ranker.Runtime); err != nil {
		return nil, err
	}

	logger.Info("Lottery complete", "participants", len(ranked), "duration", time.Since(started))

	rec = &store.RunRecord{
		ID:         runID,
		Kind:       store.RunKindWeekly,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Log:        buf.String(),
		Results:    results,
	}
	if err := w.Store.SaveRun(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (w *WeeklyRunner) assignTrips(ctx context.Context, run *runState, ranker *WinterRanker, ranked []Ranked) ([]store.RunResult, error) {
	results := make([]store.RunResult, 0, len(ranked))
	for i, rp := range ranked {
		header := fmt.Sprintf("Handling %s (%s, %s)",
			rp.Participant.Name, AffiliationLabel(rp.Participant.Affiliation), rp.Rank)
		run.logger.Debug(header)
		run.logger.Debug(strings.Repeat("-", len(header)))

		h, err := newWeeklyHandler(ctx, run, ranker, w.MinDrivers, rp.Participant)
		if err != nil {
			return nil, err
		}
		info, err := h.place(ctx)
		if err != nil {
			return nil, err
		}
		if info == nil {
			continue // deferred until the partner's number comes up
		}
		info.GlobalRank = i + 1
		info.HasFlaked = rp.Rank.FlakeFactor > 0
		payload, err := json.Marshal(info)
		if err != nil {
			return nil, err
		}
		run.logger.Debugf("RESULT: %s", payload)
		results = append(results, *info)
	}
	return results, nil
}

// freeForAll converts the program's remaining lottery trips to
// first-come, first-serve, reopening signups Wednesday at noon.
func (w *WeeklyRunner) freeForAll(ctx context.Context, logger *log.Logger, program string, runtime time.Time) error {
	logger.Info("Making all lottery trips first-come, first-serve")
	trips, err := w.Store.LotteryTrips(ctx, program)
	if err != nil {
		return err
	}
	noon := closestWedAtNoon(runtime)
	for i := range trips {
		t := &trips[i]
		t.MakeFCFS(noon)
		if err := w.Store.UpsertTrip(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// TripRunner executes the lottery for a single trip, then converts it
// to first-come, first-serve with the captured log stored on the trip.
type TripRunner struct {
	// Store backs all reads and writes of the run.
	Store store.Store

	// Secret feeds the per-participant draw seeds.
	Secret string

	// LogWriter receives log output as the run progresses. Nil keeps
	// the log on the trip record only.
	LogWriter io.Writer
}

// Run executes the trip's lottery and returns the persisted run
// record. Trips already in first-come mode are left alone and yield a
// nil record.
func (r *TripRunner) Run(ctx context.Context, tripID int64) (rec *store.RunRecord, err error) {
	trip, err := r.Store.Trip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Algorithm != store.AlgorithmLottery {
		return nil, nil
	}

	started := time.Now()
	runID := uuid.NewString()
	defer func() {
		observability.Lottery().OnRunComplete(ctx, store.RunKindTrip, runID, time.Since(started), err)
	}()

	var buf bytes.Buffer
	logger := newRunLogger(&buf, r.LogWriter)

	run, err := newRunState(ctx, r.Store, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Randomly ordering (preference to MIT affiliates)...")
	ranker := NewTripRanker(r.Store, r.Secret, trip)
	ranked, err := ranker.RankedParticipants(ctx)
	if err != nil {
		return nil, err
	}
	observability.Lottery().OnRunStart(ctx, store.RunKindTrip, len(ranked))

	results := make([]store.RunResult, 0, len(ranked))
	if len(ranked) == 0 {
		logger.Info("No participants signed up.")
		logger.Info("Converting trip to first-come, first-serve.")
	} else {
		logger.Info("Participants will be handled in the following order:")
		width := 0
		for _, tr := range ranked {
			width = max(width, len(tr.Participant.Name))
		}
		for i, tr := range ranked {
			logger.Infof("%3d. %-*s (%s, %.6f)", i+1, width+3, tr.Participant.Name,
				AffiliationLabel(tr.Participant.Affiliation), tr.Key)
		}
		logger.Info(strings.Repeat("-", 50))

		for i, tr := range ranked {
			h, err := newTripHandler(ctx, run, trip, tr.Participant)
			if err != nil {
				return nil, err
			}
			info, err := h.place(ctx)
			if err != nil {
				return nil, err
			}
			if info == nil {
				continue
			}
			info.GlobalRank = i + 1
			results = append(results, *info)
		}
	}

	trip.MakeFCFS(time.Time{})
	trip.LotteryLog = buf.String()
	if err := r.Store.UpsertTrip(ctx, trip); err != nil {
		return nil, err
	}

	rec = &store.RunRecord{
		ID:         runID,
		Kind:       store.RunKindTrip,
		TripID:     &trip.ID,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Log:        trip.LotteryLog,
		Results:    results,
	}
	if err := r.Store.SaveRun(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// closestWedAtNoon returns noon on the Wednesday nearest to t, looking
// both forward and back. Weekly trips reopen for first-come signups at
// Wednesday noon.
func closestWedAtNoon(t time.Time) time.Time {
	daysAhead := (int(time.Wednesday) - int(t.Weekday()) + 7) % 7
	next := t.AddDate(0, 0, daysAhead)
	prev := next.AddDate(0, 0, -7)
	wed := next
	if t.Sub(prev) < next.Sub(t) {
		wed = prev
	}
	return time.Date(wed.Year(), wed.Month(), wed.Day(), 12, 0, 0, 0, t.Location())
}
