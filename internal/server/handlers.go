package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tripdraw/tripdraw/pkg/cache"
	tderrors "github.com/tripdraw/tripdraw/pkg/errors"
	"github.com/tripdraw/tripdraw/pkg/lottery"
	"github.com/tripdraw/tripdraw/pkg/observability"
	"github.com/tripdraw/tripdraw/pkg/render"
	"github.com/tripdraw/tripdraw/pkg/separation"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// =============================================================================
// Health
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// Lottery Runs
// =============================================================================

// handleRunTripLottery executes the lottery for a single trip and
// returns the run record. Trips already in first-come mode are a
// client error, not a silent no-op: the caller should know nothing
// ran.
func (s *Server) handleRunTripLottery(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "tripID")
	if err != nil {
		s.respondError(w, err)
		return
	}

	runner := lottery.TripRunner{Store: s.store, Secret: s.secret}
	rec, err := runner.Run(r.Context(), tripID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if rec == nil {
		s.respondError(w, tderrors.New(tderrors.ErrCodeInvalidTrip,
			"trip %d is not in lottery mode", tripID))
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

// handleGetRun returns a stored run record by UUID.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

// =============================================================================
// Separations
// =============================================================================

func (s *Server) handleListSeparations(w http.ResponseWriter, r *http.Request) {
	seps, err := s.store.Separations(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if seps == nil {
		seps = []store.Separation{}
	}
	s.respondJSON(w, http.StatusOK, seps)
}

// separationRequest is the POST /separations body.
type separationRequest struct {
	InitiatorID int64 `json:"initiator_id"`
	RecipientID int64 `json:"recipient_id"`
	CreatorID   int64 `json:"creator_id,omitempty"`
}

func (s *Server) handleAddSeparation(w http.ResponseWriter, r *http.Request) {
	var req separationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, tderrors.Wrap(tderrors.ErrCodeInvalidInput, err, "invalid request body"))
		return
	}
	if req.InitiatorID == 0 || req.RecipientID == 0 {
		s.respondError(w, tderrors.New(tderrors.ErrCodeInvalidInput,
			"initiator_id and recipient_id are required"))
		return
	}
	if req.InitiatorID == req.RecipientID {
		s.respondError(w, tderrors.New(tderrors.ErrCodeSelfSeparation,
			"a participant cannot be separated from themselves"))
		return
	}

	sep := store.Separation{
		InitiatorID: req.InitiatorID,
		RecipientID: req.RecipientID,
		CreatorID:   req.CreatorID,
		CreatedAt:   time.Now(),
	}
	if err := s.store.AddSeparation(r.Context(), &sep); err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, sep)
}

func (s *Server) handleRemoveSeparation(w http.ResponseWriter, r *http.Request) {
	initiator, err := pathID(r, "initiatorID")
	if err != nil {
		s.respondError(w, err)
		return
	}
	recipient, err := pathID(r, "recipientID")
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.store.RemoveSeparation(r.Context(), initiator, recipient); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Graph Inspection
// =============================================================================

// handleGraphJSON returns the live adjacency as initiator → sorted
// recipient IDs.
func (s *Server) handleGraphJSON(w http.ResponseWriter, r *http.Request) {
	g, err := lottery.SeparationGraph(r.Context(), s.store)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, g.Current())
}

func (s *Server) handleGraphDOT(w http.ResponseWriter, r *http.Request) {
	g, err := lottery.SeparationGraph(r.Context(), s.store)
	if err != nil {
		s.respondError(w, err)
		return
	}
	dot := render.ToDOT(g, render.Options{RankDir: r.URL.Query().Get("rankdir")})
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(dot))
}

// handleGraphSVG renders the separation graph, drawing members of
// unresolvable loops filled. Renders are cached keyed by the DOT text,
// so repeated requests for an unchanged graph skip Graphviz entirely.
func (s *Server) handleGraphSVG(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	g, err := lottery.SeparationGraph(ctx, s.store)
	if err != nil {
		s.respondError(w, err)
		return
	}

	highlight := make(map[int64]bool)
	for _, p := range g.Affected() {
		for _, cycle := range g.IsolatedCyclesID(p.ID) {
			for _, member := range cycle.Participants() {
				highlight[member.ID] = true
			}
		}
	}
	rankDir := r.URL.Query().Get("rankdir")
	dot := render.ToDOT(g, render.Options{RankDir: rankDir, Highlight: highlight})

	relations := 0
	for _, recipients := range g.Current() {
		relations += len(recipients)
	}
	graphKey := s.keys.GraphKey(cache.Hash([]byte(dot)), cache.GraphKeyOpts{
		Participants: len(g.Affected()),
		Relations:    relations,
	})
	artifactKey := s.keys.ArtifactKey(graphKey, cache.ArtifactKeyOpts{
		Format: "svg",
		Layout: rankDir,
	})

	svg, hit, err := s.cache.Get(ctx, artifactKey)
	if err != nil {
		s.logger.Debugf("cache get failed: %v", err)
	}
	if hit {
		observability.Cache().OnCacheHit(ctx, "artifact")
	} else {
		observability.Cache().OnCacheMiss(ctx, "artifact")
		svg, err = render.RenderSVG(ctx, dot)
		if err != nil {
			s.respondError(w, err)
			return
		}
		if err := s.cache.Set(ctx, artifactKey, svg, s.ttl); err != nil {
			s.logger.Debugf("cache set failed: %v", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "artifact", len(svg))
		}
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}

// =============================================================================
// Cycles
// =============================================================================

// cycleView is the JSON rendering of one unresolvable loop.
type cycleView struct {
	Participants []participantView `json:"participants"`
	Description  string            `json:"description"`
}

type participantView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// handleCycles returns the separation loops the start participant is
// inescapably part of. An uninvolved participant yields an empty list,
// not an error.
func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	start, err := strconv.ParseInt(r.URL.Query().Get("start"), 10, 64)
	if err != nil {
		s.respondError(w, tderrors.New(tderrors.ErrCodeInvalidInput,
			"start must be a participant ID"))
		return
	}

	g, err := lottery.SeparationGraph(r.Context(), s.store)
	if err != nil {
		s.respondError(w, err)
		return
	}

	cycles := g.IsolatedCyclesID(start)
	views := make([]cycleView, 0, len(cycles))
	for _, c := range cycles {
		views = append(views, newCycleView(c))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"start":  start,
		"cycles": views,
	})
}

func newCycleView(c *separation.Cycle) cycleView {
	members := c.Participants()
	view := cycleView{
		Participants: make([]participantView, len(members)),
		Description:  c.String(),
	}
	for i, m := range members {
		view.Participants[i] = participantView{ID: m.ID, Name: m.Name}
	}
	return view
}

// =============================================================================
// Helpers
// =============================================================================

// pathID parses an int64 route parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, tderrors.New(tderrors.ErrCodeInvalidInput, "invalid %s %q", name, raw)
	}
	return id, nil
}
