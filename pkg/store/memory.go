package store

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store backed by mutex-guarded maps.
// It serves tests, dry runs, and runs against roster files.
type MemoryStore struct {
	mu           sync.RWMutex
	participants map[int64]Participant
	lotteryInfo  map[int64]LotteryInfo
	trips        map[int64]Trip
	signups      map[int64]SignUp
	waitlist     map[int64]WaitlistEntry
	separations  map[int64]Separation
	adjustments  map[int64]Adjustment
	feedback     map[int64]Feedback
	leaders      []TripLeader
	runs         map[string]RunRecord
	idSeq        int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		participants: make(map[int64]Participant),
		lotteryInfo:  make(map[int64]LotteryInfo),
		trips:        make(map[int64]Trip),
		signups:      make(map[int64]SignUp),
		waitlist:     make(map[int64]WaitlistEntry),
		separations:  make(map[int64]Separation),
		adjustments:  make(map[int64]Adjustment),
		feedback:     make(map[int64]Feedback),
		runs:         make(map[string]RunRecord),
	}
}

// nextID assigns a fresh ID. Callers must hold mu.
func (s *MemoryStore) nextID() int64 {
	s.idSeq++
	return s.idSeq
}

// claimID keeps the sequence ahead of explicitly assigned IDs.
// Callers must hold mu.
func (s *MemoryStore) claimID(id int64) {
	if id > s.idSeq {
		s.idSeq = id
	}
}

// Participant returns one participant by ID.
func (s *MemoryStore) Participant(ctx context.Context, id int64) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Participants returns all participants ordered by ID.
func (s *MemoryStore) Participants(ctx context.Context) ([]Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Participant, 0, len(s.participants))
	for _, id := range slices.Sorted(maps.Keys(s.participants)) {
		out = append(out, s.participants[id])
	}
	return out, nil
}

// UpsertParticipant creates or replaces a participant.
func (s *MemoryStore) UpsertParticipant(ctx context.Context, p *Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.nextID()
	}
	s.claimID(p.ID)
	s.participants[p.ID] = *p
	return nil
}

// LotteryInfo returns a participant's lottery preferences, or nil.
func (s *MemoryStore) LotteryInfo(ctx context.Context, participantID int64) (*LotteryInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	li, ok := s.lotteryInfo[participantID]
	if !ok {
		return nil, nil
	}
	return &li, nil
}

// UpsertLotteryInfo creates or replaces lottery preferences.
func (s *MemoryStore) UpsertLotteryInfo(ctx context.Context, li *LotteryInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lotteryInfo[li.ParticipantID] = *li
	return nil
}

// ReciprocalPair returns the mutually requested partner, or nil.
func (s *MemoryStore) ReciprocalPair(ctx context.Context, participantID int64) (*Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	li, ok := s.lotteryInfo[participantID]
	if !ok || li.PairedWith == nil {
		return nil, nil
	}
	other, ok := s.lotteryInfo[*li.PairedWith]
	if !ok || other.PairedWith == nil || *other.PairedWith != participantID {
		return nil, nil
	}
	partner, ok := s.participants[*li.PairedWith]
	if !ok {
		return nil, nil
	}
	return &partner, nil
}

// Trip returns one trip by ID.
func (s *MemoryStore) Trip(ctx context.Context, id int64) (*Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

// LotteryTrips returns the program's lottery-mode trips ordered by ID.
func (s *MemoryStore) LotteryTrips(ctx context.Context, program string) ([]Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Trip
	for _, id := range slices.Sorted(maps.Keys(s.trips)) {
		t := s.trips[id]
		if t.Program == program && t.Algorithm == AlgorithmLottery {
			out = append(out, t)
		}
	}
	return out, nil
}

// UpsertTrip creates or replaces a trip.
func (s *MemoryStore) UpsertTrip(ctx context.Context, t *Trip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID()
	}
	s.claimID(t.ID)
	s.trips[t.ID] = *t
	return nil
}

// SignUpFor returns a participant's signup for one trip.
func (s *MemoryStore) SignUpFor(ctx context.Context, participantID, tripID int64) (*SignUp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range slices.Sorted(maps.Keys(s.signups)) {
		su := s.signups[id]
		if su.ParticipantID == participantID && su.TripID == tripID {
			return &su, nil
		}
	}
	return nil, ErrNotFound
}

// RankedSignups returns pending lottery signups in preference order.
func (s *MemoryStore) RankedSignups(ctx context.Context, participantID int64, program string, after time.Time) ([]SignUp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SignUp
	for _, su := range s.signups {
		if su.ParticipantID != participantID || su.OnTrip {
			continue
		}
		trip, ok := s.trips[su.TripID]
		if !ok || trip.Algorithm != AlgorithmLottery || trip.Program != program {
			continue
		}
		if !trip.TripDate.After(after) {
			continue
		}
		out = append(out, su)
	}
	slices.SortFunc(out, compareSignups)
	return out, nil
}

// compareSignups orders by participant ranking (nil last), creation
// time, then ID, mirroring how signups are stored in the database.
func compareSignups(a, b SignUp) int {
	switch {
	case a.Order != nil && b.Order == nil:
		return -1
	case a.Order == nil && b.Order != nil:
		return 1
	case a.Order != nil && b.Order != nil && *a.Order != *b.Order:
		return cmp.Compare(*a.Order, *b.Order)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.ID, b.ID)
}

// TripSignups returns all signups for a trip ordered by ID.
func (s *MemoryStore) TripSignups(ctx context.Context, tripID int64) ([]SignUp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SignUp
	for _, id := range slices.Sorted(maps.Keys(s.signups)) {
		if su := s.signups[id]; su.TripID == tripID {
			out = append(out, su)
		}
	}
	return out, nil
}

// UpsertSignUp creates or replaces a signup.
func (s *MemoryStore) UpsertSignUp(ctx context.Context, su *SignUp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if su.ID == 0 {
		su.ID = s.nextID()
	}
	s.claimID(su.ID)
	if su.CreatedAt.IsZero() {
		su.CreatedAt = time.Now()
	}
	s.signups[su.ID] = *su
	return nil
}

// ParticipantsWithSignups returns participants with future lottery
// signups in the program, ordered by ID.
func (s *MemoryStore) ParticipantsWithSignups(ctx context.Context, program string, after time.Time) ([]Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[int64]struct{})
	for _, su := range s.signups {
		trip, ok := s.trips[su.TripID]
		if !ok || trip.Algorithm != AlgorithmLottery || trip.Program != program {
			continue
		}
		if !trip.TripDate.After(after) {
			continue
		}
		ids[su.ParticipantID] = struct{}{}
	}
	out := make([]Participant, 0, len(ids))
	for _, id := range slices.Sorted(maps.Keys(ids)) {
		if p, ok := s.participants[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// AddToWaitlist moves a signup onto its trip's waitlist.
func (s *MemoryStore) AddToWaitlist(ctx context.Context, signUpID int64, prioritize bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	su, ok := s.signups[signUpID]
	if !ok {
		return ErrNotFound
	}
	su.OnTrip = false
	s.signups[signUpID] = su

	entry, ok := s.waitlist[signUpID]
	if !ok {
		entry = WaitlistEntry{SignUpID: signUpID, TripID: su.TripID, AddedAt: time.Now()}
	}
	if prioritize {
		order := s.lastOfPriority(su.TripID)
		entry.ManualOrder = &order
	}
	s.waitlist[signUpID] = entry
	return nil
}

// lastOfPriority returns the ManualOrder that slots below all current
// prioritized entries but above first-come ones. Callers must hold mu.
func (s *MemoryStore) lastOfPriority(tripID int64) int64 {
	lowest := int64(0)
	found := false
	for _, e := range s.waitlist {
		if e.TripID != tripID || e.ManualOrder == nil {
			continue
		}
		if !found || *e.ManualOrder < lowest {
			lowest = *e.ManualOrder
			found = true
		}
	}
	if !found {
		return 10
	}
	return lowest - 1
}

// Waitlist returns a trip's waitlisted signups in slot order.
func (s *MemoryStore) Waitlist(ctx context.Context, tripID int64) ([]SignUp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []WaitlistEntry
	for _, e := range s.waitlist {
		if e.TripID == tripID {
			entries = append(entries, e)
		}
	}
	slices.SortFunc(entries, func(a, b WaitlistEntry) int {
		switch {
		case a.ManualOrder != nil && b.ManualOrder == nil:
			return -1
		case a.ManualOrder == nil && b.ManualOrder != nil:
			return 1
		case a.ManualOrder != nil && b.ManualOrder != nil && *a.ManualOrder != *b.ManualOrder:
			return cmp.Compare(*b.ManualOrder, *a.ManualOrder)
		}
		if !a.AddedAt.Equal(b.AddedAt) {
			if a.AddedAt.Before(b.AddedAt) {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.SignUpID, b.SignUpID)
	})
	out := make([]SignUp, 0, len(entries))
	for _, e := range entries {
		if su, ok := s.signups[e.SignUpID]; ok {
			out = append(out, su)
		}
	}
	return out, nil
}

// Leaders returns the participant IDs leading a trip, ordered.
func (s *MemoryStore) Leaders(ctx context.Context, tripID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for _, tl := range s.leaders {
		if tl.TripID == tripID {
			out = append(out, tl.ParticipantID)
		}
	}
	slices.Sort(out)
	return out, nil
}

// AddLeader assigns a leader to a trip.
func (s *MemoryStore) AddLeader(ctx context.Context, tl *TripLeader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(s.leaders, *tl) {
		return nil
	}
	s.leaders = append(s.leaders, *tl)
	return nil
}

// TripsLedCount counts trips led with a date in (after, before).
func (s *MemoryStore) TripsLedCount(ctx context.Context, participantID int64, after, before time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, tl := range s.leaders {
		if tl.ParticipantID != participantID {
			continue
		}
		trip, ok := s.trips[tl.TripID]
		if !ok {
			continue
		}
		if trip.TripDate.After(after) && trip.TripDate.Before(before) {
			count++
		}
	}
	return count, nil
}

// OnTripTripIDs returns the program's trips the participant is placed
// on with a date in (after, before).
func (s *MemoryStore) OnTripTripIDs(ctx context.Context, participantID int64, program string, after, before time.Time) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []int64
	for _, su := range s.signups {
		if su.ParticipantID != participantID || !su.OnTrip {
			continue
		}
		trip, ok := s.trips[su.TripID]
		if !ok || trip.Program != program {
			continue
		}
		if trip.TripDate.After(after) && trip.TripDate.Before(before) {
			out = append(out, su.TripID)
		}
	}
	slices.Sort(out)
	return out, nil
}

// FlakedTripIDs returns the program's trips the participant has
// showed-up=false feedback for.
func (s *MemoryStore) FlakedTripIDs(ctx context.Context, participantID int64, program string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[int64]struct{})
	for _, f := range s.feedback {
		if f.ParticipantID != participantID || f.ShowedUp {
			continue
		}
		if trip, ok := s.trips[f.TripID]; ok && trip.Program == program {
			ids[f.TripID] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(ids)), nil
}

// AddFeedback records post-trip feedback.
func (s *MemoryStore) AddFeedback(ctx context.Context, f *Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		f.ID = s.nextID()
	}
	s.claimID(f.ID)
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	s.feedback[f.ID] = *f
	return nil
}

// Separations returns all separations ordered by initiator then
// recipient.
func (s *MemoryStore) Separations(ctx context.Context) ([]Separation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Separation, 0, len(s.separations))
	for _, sep := range s.separations {
		out = append(out, sep)
	}
	slices.SortFunc(out, func(a, b Separation) int {
		if a.InitiatorID != b.InitiatorID {
			return cmp.Compare(a.InitiatorID, b.InitiatorID)
		}
		return cmp.Compare(a.RecipientID, b.RecipientID)
	})
	return out, nil
}

// AddSeparation records a separation request.
func (s *MemoryStore) AddSeparation(ctx context.Context, sep *Separation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.separations {
		if existing.InitiatorID == sep.InitiatorID && existing.RecipientID == sep.RecipientID {
			return ErrDuplicate
		}
	}
	if sep.ID == 0 {
		sep.ID = s.nextID()
	}
	s.claimID(sep.ID)
	if sep.CreatedAt.IsZero() {
		sep.CreatedAt = time.Now()
	}
	s.separations[sep.ID] = *sep
	return nil
}

// RemoveSeparation deletes a separation by its endpoints.
func (s *MemoryStore) RemoveSeparation(ctx context.Context, initiatorID, recipientID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sep := range s.separations {
		if sep.InitiatorID == initiatorID && sep.RecipientID == recipientID {
			delete(s.separations, id)
			return nil
		}
	}
	return ErrNotFound
}

// Adjustments returns adjustments expiring after activeAt.
func (s *MemoryStore) Adjustments(ctx context.Context, activeAt time.Time) ([]Adjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Adjustment
	for _, id := range slices.Sorted(maps.Keys(s.adjustments)) {
		if a := s.adjustments[id]; a.ExpiresAt.After(activeAt) {
			out = append(out, a)
		}
	}
	return out, nil
}

// UpsertAdjustment creates or replaces an adjustment.
func (s *MemoryStore) UpsertAdjustment(ctx context.Context, a *Adjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.nextID()
	}
	s.claimID(a.ID)
	s.adjustments[a.ID] = *a
	return nil
}

// SaveRun stores a completed run record.
func (s *MemoryStore) SaveRun(ctx context.Context, r *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = *r
	return nil
}

// Run returns a stored run record by UUID.
func (s *MemoryStore) Run(ctx context.Context, id string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// Close does nothing for the in-memory store.
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
