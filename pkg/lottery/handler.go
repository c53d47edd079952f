package lottery

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tripdraw/tripdraw/pkg/observability"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// openSlots counts the seats remaining on a trip.
func openSlots(ctx context.Context, st store.Store, trip *store.Trip) (int, error) {
	signups, err := st.TripSignups(ctx, trip.ID)
	if err != nil {
		return 0, err
	}
	taken := 0
	for _, su := range signups {
		if su.OnTrip {
			taken++
		}
	}
	return max(trip.MaxParticipants-taken, 0), nil
}

// placeOne puts a single signup on its trip, logging the seats that
// were open right before.
func placeOne(ctx context.Context, st store.Store, logger *log.Logger, su *store.SignUp) error {
	trip, err := st.Trip(ctx, su.TripID)
	if err != nil {
		return err
	}
	open, err := openSlots(ctx, st, trip)
	if err != nil {
		return err
	}
	p, err := st.Participant(ctx, su.ParticipantID)
	if err != nil {
		return err
	}
	word := "slots"
	if open == 1 {
		word = "slot"
	}
	logger.Infof("%s has %d %s, adding %s", trip.Name, open, word, p.Name)
	su.OnTrip = true
	return st.UpsertSignUp(ctx, su)
}

// weeklyHandler places one participant, or one reciprocal pair, when
// their number comes up in the weekly ranked order.
type weeklyHandler struct {
	run        *runState
	ranker     *WinterRanker
	minDrivers int

	participant store.Participant
	partner     *store.Participant // requested partner, nil when none
	paired      bool               // partner reciprocated
}

func newWeeklyHandler(ctx context.Context, run *runState, ranker *WinterRanker, minDrivers int, p store.Participant) (*weeklyHandler, error) {
	h := &weeklyHandler{
		run:         run,
		ranker:      ranker,
		minDrivers:  minDrivers,
		participant: p,
	}
	li, err := run.st.LotteryInfo(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if li == nil || li.PairedWith == nil {
		return h, nil
	}
	partner, err := run.st.Participant(ctx, *li.PairedWith)
	if err != nil {
		return nil, err
	}
	h.partner = partner
	mutual, err := run.st.ReciprocalPair(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	h.paired = mutual != nil
	return h, nil
}

func (h *weeklyHandler) toBePlaced() []store.Participant {
	if h.paired {
		return []store.Participant{h.participant, *h.partner}
	}
	return []store.Participant{h.participant}
}

func (h *weeklyHandler) parText() string {
	group := h.toBePlaced()
	names := make([]string, len(group))
	for i, p := range group {
		names[i] = p.Name
	}
	return strings.Join(names, " + ")
}

func (h *weeklyHandler) isDriver(ctx context.Context) (bool, error) {
	for _, p := range h.toBePlaced() {
		li, err := h.run.st.LotteryInfo(ctx, p.ID)
		if err != nil {
			return false, err
		}
		if li.IsDriver() {
			return true, nil
		}
	}
	return false, nil
}

// driversNeeded counts how many more drivers the trip wants. Leaders
// with lottery info count toward the quota alongside placed signups.
func (h *weeklyHandler) driversNeeded(ctx context.Context, trip *store.Trip) (int, error) {
	st := h.run.st
	signups, err := st.TripSignups(ctx, trip.ID)
	if err != nil {
		return 0, err
	}
	drivers := 0
	for _, su := range signups {
		if !su.OnTrip {
			continue
		}
		li, err := st.LotteryInfo(ctx, su.ParticipantID)
		if err != nil {
			return 0, err
		}
		if li.IsDriver() {
			drivers++
		}
	}
	leaders, err := st.Leaders(ctx, trip.ID)
	if err != nil {
		return 0, err
	}
	for _, id := range leaders {
		li, err := st.LotteryInfo(ctx, id)
		if err != nil {
			return 0, err
		}
		if li.IsDriver() {
			drivers++
		}
	}
	return max(h.minDrivers-drivers, 0), nil
}

func (h *weeklyHandler) placeAll(ctx context.Context, trip *store.Trip) error {
	for _, p := range h.toBePlaced() {
		su, err := h.run.st.SignUpFor(ctx, p.ID, trip.ID)
		if err != nil {
			return err
		}
		if err := placeOne(ctx, h.run.st, h.run.logger, su); err != nil {
			return err
		}
	}
	return nil
}

// tryToPlace attempts to seat the group on the signup's trip.
func (h *weeklyHandler) tryToPlace(ctx context.Context, su *store.SignUp) (bool, error) {
	trip, err := h.run.st.Trip(ctx, su.TripID)
	if err != nil {
		return false, err
	}
	open, err := openSlots(ctx, h.run.st, trip)
	if err != nil {
		return false, err
	}
	if open >= len(h.toBePlaced()) {
		if err := h.placeAll(ctx, trip); err != nil {
			return false, err
		}
		return true, nil
	}

	driver, err := h.isDriver(ctx)
	if err != nil {
		return false, err
	}
	// A lone driver may displace somebody else. Pairs containing a
	// driver cannot displace two people.
	if driver && open == 0 && !h.paired {
		lacks, err := h.driversNeeded(ctx, trip)
		if err != nil {
			return false, err
		}
		if lacks > 0 {
			h.run.logger.Infof("%q is full, but lacks %d drivers", trip.Name, lacks)
			target, err := h.ranker.LowestNonDriver(ctx, trip.ID)
			if err != nil {
				return false, err
			}
			if target == nil {
				h.run.logger.Info("Trip does not have a non-driver to bump")
				return false, nil
			}
			if err := h.bump(ctx, target); err != nil {
				return false, err
			}
			h.run.logger.Infof("Adding driver %s to %q", h.participant.Name, trip.Name)
			su.OnTrip = true
			if err := h.run.st.UpsertSignUp(ctx, su); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// bump frees a seat by moving its occupant elsewhere. Bumped
// participants would rather have a sure spot on another ranked trip
// than wait, so relocation is tried before the prioritized waitlist.
// Reciprocally paired occupants wait instead, in hopes of rejoining
// their partner.
func (h *weeklyHandler) bump(ctx context.Context, su *store.SignUp) error {
	st, logger := h.run.st, h.run.logger

	par, err := st.Participant(ctx, su.ParticipantID)
	if err != nil {
		return err
	}
	trip, err := st.Trip(ctx, su.TripID)
	if err != nil {
		return err
	}
	logger.Infof("Bumping %s off %s", par.Name, trip.Name)
	observability.Lottery().OnBumped(ctx, store.RunKindWeekly, par.ID, trip.ID)

	mutual, err := st.ReciprocalPair(ctx, par.ID)
	if err != nil {
		return err
	}
	if mutual != nil {
		return h.waitlistTop(ctx, su, par.Name)
	}

	logger.Debug("Searching all signups for a potentially open trip.")
	others, err := st.RankedSignups(ctx, par.ID, h.ranker.program, h.ranker.today)
	if err != nil {
		return err
	}
	for i := range others {
		other := &others[i]
		if other.ID == su.ID {
			continue
		}
		otherTrip, err := st.Trip(ctx, other.TripID)
		if err != nil {
			return err
		}
		open, err := openSlots(ctx, st, otherTrip)
		if err != nil {
			return err
		}
		if open == 0 {
			logger.Debugf("%q is full", otherTrip.Name)
			continue
		}
		clash, err := h.run.separationClash(ctx, otherTrip.ID, *par)
		if err != nil {
			return err
		}
		if clash != "" {
			logger.Debugf("Skipping %q: %s", otherTrip.Name, clash)
			continue
		}
		if err := placeOne(ctx, st, logger, other); err != nil {
			return err
		}
		logger.Debugf("Placed on %q", otherTrip.Name)
		su.OnTrip = false
		return st.UpsertSignUp(ctx, su)
	}

	// No slots are open anywhere; waitlist them on their top trip.
	return h.waitlistTop(ctx, su, par.Name)
}

func (h *weeklyHandler) waitlistTop(ctx context.Context, su *store.SignUp, name string) error {
	if err := h.run.st.AddToWaitlist(ctx, su.ID, true); err != nil {
		return err
	}
	h.run.logger.Infof("Moved %s to the top of the waitlist", name)
	return nil
}

// jeopardizesDriverBump reports whether taking one of the trip's last
// seats risks the group later being bumped to make room for a driver.
// Invoked for every signup, so the cheap exits come first.
func (h *weeklyHandler) jeopardizesDriverBump(ctx context.Context, su store.SignUp) (bool, error) {
	st := h.run.st
	trip, err := st.Trip(ctx, su.TripID)
	if err != nil {
		return false, err
	}
	open, err := openSlots(ctx, st, trip)
	if err != nil {
		return false, err
	}
	needed := len(h.toBePlaced())
	if open < needed {
		return false, nil // cannot place anyway
	}
	remaining := open - needed
	if remaining > h.minDrivers {
		return false, nil // enough seats stay open for drivers
	}
	driver, err := h.isDriver(ctx)
	if err != nil {
		return false, err
	}
	if driver {
		return false, nil // a driver bumping a driver never makes sense
	}
	lacks, err := h.driversNeeded(ctx, trip)
	if err != nil {
		return false, err
	}
	if lacks == 0 {
		return false, nil
	}
	// Use case: 2 seats left, 1 driver wanted. Taking the
	// second-to-last seat is safe.
	if lacks <= remaining {
		return false, nil
	}

	// Potential drivers could still claim the last seats. If any
	// unhandled driver signed up for this trip, consider it risky.
	signups, err := st.TripSignups(ctx, trip.ID)
	if err != nil {
		return false, err
	}
	group := h.toBePlaced()
	for _, other := range signups {
		if other.OnTrip {
			continue
		}
		if slices.ContainsFunc(group, func(p store.Participant) bool { return p.ID == other.ParticipantID }) {
			continue
		}
		li, err := st.LotteryInfo(ctx, other.ParticipantID)
		if err != nil {
			return false, err
		}
		if !li.IsDriver() {
			continue
		}
		if !h.run.handledID(other.ParticipantID) {
			return true, nil
		}
	}
	return false, nil
}

// desired filters ranked signups down to trips the group still wants.
// Paired participants only want trips both signed up for, and nobody
// wants a trip holding somebody they asked to stay separated from.
func (h *weeklyHandler) desired(ctx context.Context, future []store.SignUp) ([]store.SignUp, error) {
	out := make([]store.SignUp, 0, len(future))
	for _, su := range future {
		if h.paired {
			_, err := h.run.st.SignUpFor(ctx, h.partner.ID, su.TripID)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		clash, err := h.run.separationClash(ctx, su.TripID, h.toBePlaced()...)
		if err != nil {
			return nil, err
		}
		if clash != "" {
			trip, err := h.run.st.Trip(ctx, su.TripID)
			if err != nil {
				return nil, err
			}
			h.run.logger.Infof("Skipping %q: %s", trip.Name, clash)
			continue
		}
		out = append(out, su)
	}
	return out, nil
}

// place attempts to put the participant (and partner, if any) on the
// best trip available. Returns nil when placement must wait for the
// partner's number to come up.
func (h *weeklyHandler) place(ctx context.Context) (*store.RunResult, error) {
	logger := h.run.logger
	h.run.markSeen(h.participant.ID)

	if h.paired {
		logger.Infof("%s is paired with %s", h.participant.Name, h.partner.Name)
		if !h.run.seenID(h.partner.ID) {
			logger.Infof("Will handle signups when %s comes", h.partner.Name)
			return nil, nil
		}
	} else if h.partner != nil {
		logger.Infof("%s requested pairing with %s, but not reciprocated", h.participant.Name, h.partner.Name)
	}

	future, err := h.run.st.RankedSignups(ctx, h.participant.ID, h.ranker.program, h.ranker.today)
	if err != nil {
		return nil, err
	}
	desired, err := h.desired(ctx, future)
	if err != nil {
		return nil, err
	}

	info, err := h.placeOrWaitlist(ctx, future, desired)
	if err != nil {
		return nil, err
	}
	h.run.markHandled(h.participant.ID)
	if h.paired {
		h.run.markHandled(h.partner.ID)
	}
	return info, nil
}

func (h *weeklyHandler) placeOrWaitlist(ctx context.Context, future, desired []store.SignUp) (*store.RunResult, error) {
	st, logger := h.run.st, h.run.logger

	info := &store.RunResult{
		ParticipantID: h.participant.ID,
		IsPaired:      h.paired,
		Affiliation:   h.participant.Affiliation,
		RankedTrips:   make([]int64, 0, len(future)),
	}
	if h.partner != nil {
		info.PairedWithID = &h.partner.ID
	}
	for _, su := range future {
		info.RankedTrips = append(info.RankedTrips, su.TripID)
	}

	if len(future) == 0 {
		logger.Infof("%s did not choose any trips this week", h.parText())
		return info, nil
	}
	if len(desired) == 0 {
		// Happens when a paired partner ranked no shared trips.
		logger.Infof("%s has no remaining desired trips", h.parText())
		return info, nil
	}

	desiredIDs := make(map[int64]bool, len(desired))
	for _, su := range desired {
		desiredIDs[su.ID] = true
	}

	// Walk choices in ranked order, skipping trips where taking one of
	// the last seats risks a later bump from a driver.
	type rankedSignup struct {
		rank   int
		signup store.SignUp
	}
	var skipped []rankedSignup
	for i, su := range future {
		rank := i + 1
		if !desiredIDs[su.ID] {
			logger.Debugf("Ignoring undesired signup for trip %d", su.TripID)
			continue
		}
		trip, err := st.Trip(ctx, su.TripID)
		if err != nil {
			return nil, err
		}
		risky, err := h.jeopardizesDriverBump(ctx, su)
		if err != nil {
			return nil, err
		}
		if risky {
			logger.Debugf("Placing on %q risks bump from a driver", trip.Name)
			skipped = append(skipped, rankedSignup{rank, su})
			continue
		}
		placed, err := h.tryToPlace(ctx, &su)
		if err != nil {
			return nil, err
		}
		if placed {
			logger.Debugf("Placed on trip #%d of %d", rank, len(future))
			info.PlacedOnChoice = rank
			observability.Lottery().OnPlaced(ctx, store.RunKindWeekly, h.participant.ID, su.TripID, rank)
			return info, nil
		}
		logger.Infof("Can't place %s on %q", h.parText(), trip.Name)
	}

	// Nothing could take the group outright. Retry the trips skipped
	// over bump risk and accept a possible future bump.
	for _, rs := range skipped {
		placed, err := h.tryToPlace(ctx, &rs.signup)
		if err != nil {
			return nil, err
		}
		if placed {
			logger.Debugf("Placed on trip #%d of %d", rs.rank, len(future))
			info.PlacedOnChoice = rs.rank
			observability.Lottery().OnPlaced(ctx, store.RunKindWeekly, h.participant.ID, rs.signup.TripID, rs.rank)
			return info, nil
		}
	}

	logger.Infof("None of %s's desired trips are open.", h.parText())
	favorite, err := st.Trip(ctx, desired[0].TripID)
	if err != nil {
		return nil, err
	}
	for _, p := range h.toBePlaced() {
		su, err := st.SignUpFor(ctx, p.ID, favorite.ID)
		if err != nil {
			return nil, err
		}
		if err := st.AddToWaitlist(ctx, su.ID, false); err != nil {
			return nil, err
		}
		logger.Infof("Waitlisted %s (%s) on %s", h.parText(), p.Email, favorite.Name)
		observability.Lottery().OnWaitlisted(ctx, store.RunKindWeekly, p.ID, favorite.ID)
	}
	info.Waitlisted = true
	return info, nil
}

// tripHandler places one participant from a single trip's ranked order.
type tripHandler struct {
	run  *runState
	trip *store.Trip

	participant store.Participant
	partner     *store.Participant
	paired      bool
}

func newTripHandler(ctx context.Context, run *runState, trip *store.Trip, p store.Participant) (*tripHandler, error) {
	h := &tripHandler{run: run, trip: trip, participant: p}
	li, err := run.st.LotteryInfo(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if li == nil || li.PairedWith == nil {
		return h, nil
	}
	partner, err := run.st.Participant(ctx, *li.PairedWith)
	if err != nil {
		return nil, err
	}
	h.partner = partner
	if !trip.HonorPairing {
		return h, nil
	}
	mutual, err := run.st.ReciprocalPair(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if mutual == nil {
		return h, nil
	}
	// The pair only holds when the partner wants this trip too.
	_, err = run.st.SignUpFor(ctx, partner.ID, trip.ID)
	if errors.Is(err, store.ErrNotFound) {
		return h, nil
	}
	if err != nil {
		return nil, err
	}
	h.paired = true
	return h, nil
}

func (h *tripHandler) toBePlaced() []store.Participant {
	if h.paired {
		return []store.Participant{h.participant, *h.partner}
	}
	return []store.Participant{h.participant}
}

// tryToPlace seats the group when enough seats remain. Single-trip
// lotteries have no driver quota, so nobody is ever bumped here.
func (h *tripHandler) tryToPlace(ctx context.Context) (bool, error) {
	open, err := openSlots(ctx, h.run.st, h.trip)
	if err != nil {
		return false, err
	}
	group := h.toBePlaced()
	if open < len(group) {
		return false, nil
	}
	clash, err := h.run.separationClash(ctx, h.trip.ID, group...)
	if err != nil {
		return false, err
	}
	if clash != "" {
		h.run.logger.Infof("Not placing %s: %s", h.participant.Name, clash)
		return false, nil
	}
	for _, p := range group {
		su, err := h.run.st.SignUpFor(ctx, p.ID, h.trip.ID)
		if err != nil {
			return false, err
		}
		if err := placeOne(ctx, h.run.st, h.run.logger, su); err != nil {
			return false, err
		}
	}
	observability.Lottery().OnPlaced(ctx, store.RunKindTrip, h.participant.ID, h.trip.ID, 1)
	return true, nil
}

// place seats the participant or sends them to the waitlist. Returns
// nil when placement must wait for the partner's number to come up.
func (h *tripHandler) place(ctx context.Context) (*store.RunResult, error) {
	st, logger := h.run.st, h.run.logger
	h.run.markSeen(h.participant.ID)

	if h.paired {
		logger.Infof("%s is paired with %s", h.participant.Name, h.partner.Name)
		if !h.run.seenID(h.partner.ID) {
			logger.Infof("Will handle signups when %s comes", h.partner.Name)
			return nil, nil
		}
	}

	info := &store.RunResult{
		ParticipantID: h.participant.ID,
		IsPaired:      h.paired,
		Affiliation:   h.participant.Affiliation,
		RankedTrips:   []int64{h.trip.ID},
	}
	if h.partner != nil {
		info.PairedWithID = &h.partner.ID
	}

	placed, err := h.tryToPlace(ctx)
	if err != nil {
		return nil, err
	}
	if placed {
		info.PlacedOnChoice = 1
	} else {
		for _, p := range h.toBePlaced() {
			logger.Infof("Adding %s to the waitlist", p.Name)
			su, err := st.SignUpFor(ctx, p.ID, h.trip.ID)
			if err != nil {
				return nil, err
			}
			if err := st.AddToWaitlist(ctx, su.ID, false); err != nil {
				return nil, err
			}
			observability.Lottery().OnWaitlisted(ctx, store.RunKindTrip, p.ID, h.trip.ID)
		}
		info.Waitlisted = true
	}
	h.run.markHandled(h.participant.ID)
	if h.paired {
		h.run.markHandled(h.partner.ID)
	}
	return info, nil
}
