package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

var today = time.Date(2026, 1, 14, 9, 0, 0, 0, time.UTC)

func i64(v int64) *int64 { return &v }

func seedParticipant(t *testing.T, s *MemoryStore, id int64, name string) {
	t.Helper()
	err := s.UpsertParticipant(context.Background(), &Participant{ID: id, Name: name, Affiliation: "MU"})
	if err != nil {
		t.Fatalf("UpsertParticipant: %v", err)
	}
}

func seedTrip(t *testing.T, s *MemoryStore, id int64, daysOut int) {
	t.Helper()
	trip := &Trip{
		ID:              id,
		Name:            "Trip",
		Program:         ProgramWinterSchool,
		Algorithm:       AlgorithmLottery,
		TripDate:        today.AddDate(0, 0, daysOut),
		MaxParticipants: 8,
	}
	if err := s.UpsertTrip(context.Background(), trip); err != nil {
		t.Fatalf("UpsertTrip: %v", err)
	}
}

func TestParticipantNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Participant(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Participant(42) error = %v, want ErrNotFound", err)
	}
}

func TestParticipantsOrderedByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedParticipant(t, s, 3, "Cary")
	seedParticipant(t, s, 1, "Ada")
	seedParticipant(t, s, 2, "Bert")

	got, err := s.Participants(ctx)
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Participants returned %d, want 3", len(got))
	}
	for i, want := range []int64{1, 2, 3} {
		if got[i].ID != want {
			t.Errorf("Participants[%d].ID = %d, want %d", i, got[i].ID, want)
		}
	}
}

func TestUpsertAssignsIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedParticipant(t, s, 7, "Ada")

	p := &Participant{Name: "Bert"}
	if err := s.UpsertParticipant(ctx, p); err != nil {
		t.Fatalf("UpsertParticipant: %v", err)
	}
	if p.ID <= 7 {
		t.Errorf("assigned ID = %d, want > 7", p.ID)
	}
}

func TestLotteryInfoAbsent(t *testing.T) {
	s := NewMemoryStore()
	li, err := s.LotteryInfo(context.Background(), 1)
	if err != nil {
		t.Fatalf("LotteryInfo: %v", err)
	}
	if li != nil {
		t.Errorf("LotteryInfo = %+v, want nil", li)
	}
	if li.IsDriver() {
		t.Error("nil LotteryInfo should not be a driver")
	}
}

func TestReciprocalPair(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedParticipant(t, s, 1, "Ada")
	seedParticipant(t, s, 2, "Bert")
	seedParticipant(t, s, 3, "Cary")

	// Ada and Bert point at each other; Cary points at Ada unreciprocated.
	s.UpsertLotteryInfo(ctx, &LotteryInfo{ParticipantID: 1, CarStatus: CarNone, PairedWith: i64(2)})
	s.UpsertLotteryInfo(ctx, &LotteryInfo{ParticipantID: 2, CarStatus: CarOwn, PairedWith: i64(1)})
	s.UpsertLotteryInfo(ctx, &LotteryInfo{ParticipantID: 3, CarStatus: CarNone, PairedWith: i64(1)})

	partner, err := s.ReciprocalPair(ctx, 1)
	if err != nil {
		t.Fatalf("ReciprocalPair: %v", err)
	}
	if partner == nil || partner.ID != 2 {
		t.Errorf("ReciprocalPair(1) = %+v, want Bert", partner)
	}

	partner, _ = s.ReciprocalPair(ctx, 3)
	if partner != nil {
		t.Errorf("ReciprocalPair(3) = %+v, want nil for unreciprocated request", partner)
	}

	partner, _ = s.ReciprocalPair(ctx, 99)
	if partner != nil {
		t.Errorf("ReciprocalPair(99) = %+v, want nil without lottery info", partner)
	}
}

func TestRankedSignupsOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedParticipant(t, s, 1, "Ada")
	seedTrip(t, s, 10, 3)
	seedTrip(t, s, 11, 4)
	seedTrip(t, s, 12, 5)
	seedTrip(t, s, 13, 6)

	base := today.Add(-time.Hour)
	s.UpsertSignUp(ctx, &SignUp{ID: 1, ParticipantID: 1, TripID: 12, CreatedAt: base})                // unranked
	s.UpsertSignUp(ctx, &SignUp{ID: 2, ParticipantID: 1, TripID: 10, Order: i64(2), CreatedAt: base}) // second choice
	s.UpsertSignUp(ctx, &SignUp{ID: 3, ParticipantID: 1, TripID: 11, Order: i64(1), CreatedAt: base}) // first choice
	s.UpsertSignUp(ctx, &SignUp{ID: 4, ParticipantID: 1, TripID: 13, CreatedAt: base.Add(time.Minute)})

	got, err := s.RankedSignups(ctx, 1, ProgramWinterSchool, today)
	if err != nil {
		t.Fatalf("RankedSignups: %v", err)
	}
	wantTrips := []int64{11, 10, 12, 13}
	if len(got) != len(wantTrips) {
		t.Fatalf("RankedSignups returned %d signups, want %d", len(got), len(wantTrips))
	}
	for i, want := range wantTrips {
		if got[i].TripID != want {
			t.Errorf("RankedSignups[%d].TripID = %d, want %d", i, got[i].TripID, want)
		}
	}
}

func TestRankedSignupsFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedParticipant(t, s, 1, "Ada")
	seedTrip(t, s, 10, 3)
	seedTrip(t, s, 11, -1) // already happened
	seedTrip(t, s, 12, 3)

	// Trip 12 is no longer in lottery mode.
	trip, _ := s.Trip(ctx, 12)
	trip.Algorithm = AlgorithmFCFS
	s.UpsertTrip(ctx, trip)

	s.UpsertSignUp(ctx, &SignUp{ID: 1, ParticipantID: 1, TripID: 10, OnTrip: true})
	s.UpsertSignUp(ctx, &SignUp{ID: 2, ParticipantID: 1, TripID: 11})
	s.UpsertSignUp(ctx, &SignUp{ID: 3, ParticipantID: 1, TripID: 12})

	got, err := s.RankedSignups(ctx, 1, ProgramWinterSchool, today)
	if err != nil {
		t.Fatalf("RankedSignups: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("RankedSignups = %+v, want none (placed, past, and fcfs excluded)", got)
	}
}

func TestParticipantsWithSignupsIncludesPlaced(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedParticipant(t, s, 1, "Ada")
	seedParticipant(t, s, 2, "Bert")
	seedTrip(t, s, 10, 3)

	// Ada is already placed; she still enters the ranked order.
	s.UpsertSignUp(ctx, &SignUp{ID: 1, ParticipantID: 1, TripID: 10, OnTrip: true})
	s.UpsertSignUp(ctx, &SignUp{ID: 2, ParticipantID: 2, TripID: 10})

	got, err := s.ParticipantsWithSignups(ctx, ProgramWinterSchool, today)
	if err != nil {
		t.Fatalf("ParticipantsWithSignups: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ParticipantsWithSignups returned %d, want 2", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("ParticipantsWithSignups IDs = [%d %d], want [1 2]", got[0].ID, got[1].ID)
	}
}

func TestWaitlistOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedParticipant(t, s, 1, "Ada")
	seedParticipant(t, s, 2, "Bert")
	seedParticipant(t, s, 3, "Cary")
	seedParticipant(t, s, 4, "Dana")
	seedTrip(t, s, 10, 3)

	for id := int64(1); id <= 4; id++ {
		s.UpsertSignUp(ctx, &SignUp{ID: id, ParticipantID: id, TripID: 10, OnTrip: true})
	}

	// Ada and Bert join first-come; Cary and Dana get bumped in.
	if err := s.AddToWaitlist(ctx, 1, false); err != nil {
		t.Fatalf("AddToWaitlist: %v", err)
	}
	s.AddToWaitlist(ctx, 2, false)
	s.AddToWaitlist(ctx, 3, true)
	s.AddToWaitlist(ctx, 4, true)

	got, err := s.Waitlist(ctx, 10)
	if err != nil {
		t.Fatalf("Waitlist: %v", err)
	}
	// Cary was prioritized first and stays above Dana; both precede
	// the first-come entries.
	wantOrder := []int64{3, 4, 1, 2}
	if len(got) != len(wantOrder) {
		t.Fatalf("Waitlist returned %d signups, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].ParticipantID != want {
			t.Errorf("Waitlist[%d].ParticipantID = %d, want %d", i, got[i].ParticipantID, want)
		}
	}

	// Waitlisting clears placement
	su, _ := s.SignUpFor(ctx, 1, 10)
	if su.OnTrip {
		t.Error("waitlisted signup should not remain on the trip")
	}
}

func TestTripsLedCountWindow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedParticipant(t, s, 1, "Ada")
	seedTrip(t, s, 10, -30)  // led, in window
	seedTrip(t, s, 11, -400) // led, too old
	seedTrip(t, s, 12, 3)    // led, in the future

	for _, tripID := range []int64{10, 11, 12} {
		s.AddLeader(ctx, &TripLeader{TripID: tripID, ParticipantID: 1})
	}

	count, err := s.TripsLedCount(ctx, 1, today.AddDate(0, 0, -365), today)
	if err != nil {
		t.Fatalf("TripsLedCount: %v", err)
	}
	if count != 1 {
		t.Errorf("TripsLedCount = %d, want 1", count)
	}
}

func TestFlakedTripIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedParticipant(t, s, 1, "Ada")
	seedTrip(t, s, 10, -7)
	seedTrip(t, s, 11, -14)

	s.AddFeedback(ctx, &Feedback{ParticipantID: 1, TripID: 10, ShowedUp: false})
	s.AddFeedback(ctx, &Feedback{ParticipantID: 1, TripID: 10, ShowedUp: false}) // duplicate flake
	s.AddFeedback(ctx, &Feedback{ParticipantID: 1, TripID: 11, ShowedUp: true})

	got, err := s.FlakedTripIDs(ctx, 1, ProgramWinterSchool)
	if err != nil {
		t.Fatalf("FlakedTripIDs: %v", err)
	}
	if len(got) != 1 || got[0] != 10 {
		t.Errorf("FlakedTripIDs = %v, want [10]", got)
	}
}

func TestSeparations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.AddSeparation(ctx, &Separation{InitiatorID: 2, RecipientID: 3}); err != nil {
		t.Fatalf("AddSeparation: %v", err)
	}
	if err := s.AddSeparation(ctx, &Separation{InitiatorID: 1, RecipientID: 3}); err != nil {
		t.Fatalf("AddSeparation: %v", err)
	}

	// Duplicates are rejected
	err := s.AddSeparation(ctx, &Separation{InitiatorID: 2, RecipientID: 3})
	if !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate AddSeparation error = %v, want ErrDuplicate", err)
	}

	got, err := s.Separations(ctx)
	if err != nil {
		t.Fatalf("Separations: %v", err)
	}
	if len(got) != 2 || got[0].InitiatorID != 1 || got[1].InitiatorID != 2 {
		t.Errorf("Separations = %+v, want ordered by initiator", got)
	}

	if err := s.RemoveSeparation(ctx, 2, 3); err != nil {
		t.Fatalf("RemoveSeparation: %v", err)
	}
	if err := s.RemoveSeparation(ctx, 2, 3); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveSeparation error = %v, want ErrNotFound", err)
	}
}

func TestAdjustmentsExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	s.UpsertAdjustment(ctx, &Adjustment{ParticipantID: 1, Adjustment: -1, ExpiresAt: today.Add(time.Hour)})
	s.UpsertAdjustment(ctx, &Adjustment{ParticipantID: 2, Adjustment: 5, ExpiresAt: today.Add(-time.Hour)})

	got, err := s.Adjustments(ctx, today)
	if err != nil {
		t.Fatalf("Adjustments: %v", err)
	}
	if len(got) != 1 || got[0].ParticipantID != 1 {
		t.Errorf("Adjustments = %+v, want only the unexpired one", got)
	}
}

func TestSaveAndLoadRun(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	record := &RunRecord{
		ID:        "4a1fdd3e-ae53-4b27-8a54-6bc21f1d23a5",
		Kind:      RunKindWeekly,
		StartedAt: today,
		Results: []RunResult{
			{ParticipantID: 1, RankedTrips: []int64{10, 11}, PlacedOnChoice: 1, GlobalRank: 1},
		},
	}
	if err := s.SaveRun(ctx, record); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.Run(ctx, record.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Kind != RunKindWeekly || len(got.Results) != 1 {
		t.Errorf("Run = %+v, want saved record", got)
	}

	if _, err := s.Run(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Run(missing) error = %v, want ErrNotFound", err)
	}
}
