package lottery

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tripdraw/tripdraw/pkg/store"
)

// runtime is a Wednesday morning; the season started January 1st.
var runtime = time.Date(2026, time.January, 14, 9, 0, 0, 0, time.UTC)

const testSecret = "sssshhh"

func i64(v int64) *int64 { return &v }

func seedParticipant(t *testing.T, st store.Store, id int64, name, affiliation string) store.Participant {
	t.Helper()
	p := store.Participant{ID: id, Name: name, Email: name + "@example.com", Affiliation: affiliation}
	if err := st.UpsertParticipant(context.Background(), &p); err != nil {
		t.Fatalf("UpsertParticipant(%d): %v", id, err)
	}
	return p
}

func seedTrip(t *testing.T, st store.Store, id int64, name string, daysOut, capacity int) store.Trip {
	t.Helper()
	trip := store.Trip{
		ID:              id,
		Name:            name,
		Program:         store.ProgramWinterSchool,
		Algorithm:       store.AlgorithmLottery,
		TripDate:        runtime.AddDate(0, 0, daysOut),
		MaxParticipants: capacity,
	}
	if err := st.UpsertTrip(context.Background(), &trip); err != nil {
		t.Fatalf("UpsertTrip(%d): %v", id, err)
	}
	return trip
}

func seedSignup(t *testing.T, st store.Store, id, participantID, tripID int64, onTrip bool) store.SignUp {
	t.Helper()
	su := store.SignUp{
		ID:            id,
		ParticipantID: participantID,
		TripID:        tripID,
		CreatedAt:     runtime.Add(time.Duration(id) * time.Minute),
		OnTrip:        onTrip,
	}
	if err := st.UpsertSignUp(context.Background(), &su); err != nil {
		t.Fatalf("UpsertSignUp(%d): %v", id, err)
	}
	return su
}

func seedAdjustment(t *testing.T, st store.Store, participantID int64, value int) {
	t.Helper()
	a := store.Adjustment{
		ID:            participantID + 9000,
		ParticipantID: participantID,
		Adjustment:    value,
		ExpiresAt:     runtime.AddDate(0, 0, 7),
	}
	if err := st.UpsertAdjustment(context.Background(), &a); err != nil {
		t.Fatalf("UpsertAdjustment(%d): %v", participantID, err)
	}
}

func seedFlake(t *testing.T, st store.Store, id, participantID, tripID int64) {
	t.Helper()
	f := store.Feedback{ID: id, ParticipantID: participantID, TripID: tripID, ShowedUp: false, CreatedAt: runtime}
	if err := st.AddFeedback(context.Background(), &f); err != nil {
		t.Fatalf("AddFeedback(%d): %v", id, err)
	}
}

func TestSeed(t *testing.T) {
	p := store.Participant{ID: 7}
	got, err := Seed(p, "ws-2026-01-14", "s3")
	if err != nil {
		t.Fatalf("Seed() error: %v", err)
	}
	if want := "7-ws-2026-01-14-s3"; got != want {
		t.Errorf("Seed() = %q, want %q", got, want)
	}
}

func TestSeedUnsavedParticipant(t *testing.T) {
	_, err := Seed(store.Participant{}, "ws", "s")
	if !errors.Is(err, ErrUnsavedParticipant) {
		t.Errorf("Seed() error = %v, want ErrUnsavedParticipant", err)
	}
}

func TestAffiliationWeightedRandDeterministic(t *testing.T) {
	p := store.Participant{ID: 42, Affiliation: AffiliationMITGrad}

	first, err := AffiliationWeightedRand(p, "ws-2026-01-14", testSecret)
	if err != nil {
		t.Fatalf("AffiliationWeightedRand() error: %v", err)
	}
	second, err := AffiliationWeightedRand(p, "ws-2026-01-14", testSecret)
	if err != nil {
		t.Fatalf("AffiliationWeightedRand() error: %v", err)
	}
	if first != second {
		t.Errorf("AffiliationWeightedRand() not deterministic: %v then %v", first, second)
	}

	// A different run key draws fresh.
	other, err := AffiliationWeightedRand(p, "ws-2026-01-21", testSecret)
	if err != nil {
		t.Fatalf("AffiliationWeightedRand() error: %v", err)
	}
	if other == first {
		t.Errorf("AffiliationWeightedRand() = %v for both keys, want fresh draw", first)
	}
}

func TestAffiliationWeightShiftsDraw(t *testing.T) {
	// The seed ignores affiliation, so the same participant with a
	// different affiliation draws the same float minus a different
	// weight.
	mit := store.Participant{ID: 42, Affiliation: AffiliationMITUndergrad}
	non := store.Participant{ID: 42, Affiliation: AffiliationNonAffiliate}

	mitDraw, err := AffiliationWeightedRand(mit, "ws", testSecret)
	if err != nil {
		t.Fatalf("AffiliationWeightedRand() error: %v", err)
	}
	nonDraw, err := AffiliationWeightedRand(non, "ws", testSecret)
	if err != nil {
		t.Fatalf("AffiliationWeightedRand() error: %v", err)
	}
	if diff := nonDraw - mitDraw; math.Abs(diff-Weights[AffiliationMITUndergrad]) > 1e-9 {
		t.Errorf("draw difference = %v, want the MU weight %v", diff, Weights[AffiliationMITUndergrad])
	}
}

func TestAffiliationWeightedRandRange(t *testing.T) {
	for id := int64(1); id <= 50; id++ {
		p := store.Participant{ID: id, Affiliation: AffiliationMITUndergrad}
		v, err := AffiliationWeightedRand(p, "ws", testSecret)
		if err != nil {
			t.Fatalf("AffiliationWeightedRand() error: %v", err)
		}
		if v < -Weights[AffiliationMITUndergrad] || v >= 1 {
			t.Errorf("AffiliationWeightedRand() = %v for id %d, want in [-0.3, 1)", v, id)
		}
	}
}

func TestWinterRankLess(t *testing.T) {
	base := WinterRank{Adjustment: 0, FlakeFactor: 0, LeaderBump: 0, AffiliationWeight: 0.5}
	tests := []struct {
		name string
		a, b WinterRank
		want bool
	}{
		{"adjustment dominates", WinterRank{Adjustment: -1, FlakeFactor: 99, AffiliationWeight: 0.9}, base, true},
		{"flake breaks adjustment tie", WinterRank{FlakeFactor: 1}, base, false},
		{"leader bump breaks flake tie", WinterRank{LeaderBump: -1, AffiliationWeight: 0.9}, base, true},
		{"weight breaks remaining ties", WinterRank{AffiliationWeight: 0.4}, base, true},
		{"equal ranks", base, base, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.want {
				t.Errorf("%v.Less(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestWinterRankerFlakeFactor(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := seedParticipant(t, st, 1, "Flaky", AffiliationMITGrad)

	// Two attended trips this season, one flaked all-time, no overlap.
	attended1 := seedTrip(t, st, 10, "Attended One", -9, 8)
	attended2 := seedTrip(t, st, 11, "Attended Two", -2, 8)
	flaked := seedTrip(t, st, 12, "Flaked", -4, 8)
	seedSignup(t, st, 100, p.ID, attended1.ID, true)
	seedSignup(t, st, 101, p.ID, attended2.ID, true)
	seedFlake(t, st, 500, p.ID, flaked.ID)

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	counts, err := r.TripCounts(ctx, p)
	if err != nil {
		t.Fatalf("TripCounts() error: %v", err)
	}
	if counts.Attended != 2 || counts.Flaked != 1 || counts.Total != 3 {
		t.Errorf("TripCounts() = %+v, want attended 2, flaked 1, total 3", counts)
	}

	rank, err := r.Rank(ctx, p)
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	// 5*1 - 2*2
	if rank.FlakeFactor != 1 {
		t.Errorf("Rank().FlakeFactor = %d, want 1", rank.FlakeFactor)
	}
}

func TestWinterRankerFlakeOverlapsAttendance(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := seedParticipant(t, st, 1, "Flaky", AffiliationMITGrad)

	// Marked on the trip AND flaked: counts once, as a flake.
	trip := seedTrip(t, st, 10, "Overlap", -5, 8)
	seedSignup(t, st, 100, p.ID, trip.ID, true)
	seedFlake(t, st, 500, p.ID, trip.ID)

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	counts, err := r.TripCounts(ctx, p)
	if err != nil {
		t.Fatalf("TripCounts() error: %v", err)
	}
	if counts.Attended != 0 || counts.Flaked != 1 || counts.Total != 1 {
		t.Errorf("TripCounts() = %+v, want attended 0, flaked 1, total 1", counts)
	}
}

func TestWinterRankerFlakeFactorNeverNegative(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := seedParticipant(t, st, 1, "Regular", AffiliationMITGrad)

	// Frequent attendance must not rank ahead of fresh participants.
	for i := int64(0); i < 3; i++ {
		trip := seedTrip(t, st, 10+i, "Past", int(-2-i), 8)
		seedSignup(t, st, 100+i, p.ID, trip.ID, true)
	}

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	rank, err := r.Rank(ctx, p)
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	if rank.FlakeFactor != 0 {
		t.Errorf("Rank().FlakeFactor = %d, want 0", rank.FlakeFactor)
	}
}

func TestWinterRankerSeasonWindow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := seedParticipant(t, st, 1, "Veteran", AffiliationMITGrad)

	// Attendance from a previous season does not count.
	old := seedTrip(t, st, 10, "Last Year", -380, 8)
	seedSignup(t, st, 100, p.ID, old.ID, true)

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	counts, err := r.TripCounts(ctx, p)
	if err != nil {
		t.Fatalf("TripCounts() error: %v", err)
	}
	if counts.Total != 0 {
		t.Errorf("TripCounts().Total = %d, want 0 for out-of-season trips", counts.Total)
	}
}

func TestWinterRankerLeaderBump(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := seedParticipant(t, st, 1, "Leader", AffiliationMITGrad)

	// Led three trips in the last year, attended one this season.
	for i := int64(0); i < 3; i++ {
		trip := seedTrip(t, st, 10+i, "Led", int(-20-i), 8)
		if err := st.AddLeader(ctx, &store.TripLeader{TripID: trip.ID, ParticipantID: p.ID}); err != nil {
			t.Fatalf("AddLeader: %v", err)
		}
	}
	attended := seedTrip(t, st, 20, "Joined", -3, 8)
	seedSignup(t, st, 100, p.ID, attended.ID, true)

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	rank, err := r.Rank(ctx, p)
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	if rank.LeaderBump != -2 {
		t.Errorf("Rank().LeaderBump = %d, want -2", rank.LeaderBump)
	}
}

func TestWinterRankerLeaderBumpNeverPenalizes(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	p := seedParticipant(t, st, 1, "Joiner", AffiliationMITGrad)

	// More attendance than leading leaves the bump at zero.
	attended := seedTrip(t, st, 20, "Joined", -3, 8)
	seedSignup(t, st, 100, p.ID, attended.ID, true)

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	rank, err := r.Rank(ctx, p)
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	if rank.LeaderBump != 0 {
		t.Errorf("Rank().LeaderBump = %d, want 0", rank.LeaderBump)
	}
}

func TestWinterRankerAdjustment(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	moved := seedParticipant(t, st, 1, "Moved", AffiliationMITGrad)
	expired := seedParticipant(t, st, 2, "Expired", AffiliationMITGrad)

	seedAdjustment(t, st, moved.ID, -3)
	a := store.Adjustment{ID: 9100, ParticipantID: expired.ID, Adjustment: -3, ExpiresAt: runtime.AddDate(0, 0, -1)}
	if err := st.UpsertAdjustment(ctx, &a); err != nil {
		t.Fatalf("UpsertAdjustment: %v", err)
	}

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	rank, err := r.Rank(ctx, moved)
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	if rank.Adjustment != -3 {
		t.Errorf("Rank().Adjustment = %d, want -3", rank.Adjustment)
	}

	rank, err = r.Rank(ctx, expired)
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	if rank.Adjustment != 0 {
		t.Errorf("Rank().Adjustment = %d for expired adjustment, want 0", rank.Adjustment)
	}
}

func TestRankedParticipantsOrder(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	// Adjustments dominate the rank tuple, so the order is forced no
	// matter what the random tiebreak draws.
	first := seedParticipant(t, st, 1, "First", AffiliationNonAffiliate)
	second := seedParticipant(t, st, 2, "Second", AffiliationNonAffiliate)
	third := seedParticipant(t, st, 3, "Third", AffiliationNonAffiliate)
	seedAdjustment(t, st, first.ID, -5)
	seedAdjustment(t, st, third.ID, 5)

	trip := seedTrip(t, st, 10, "Outing", 3, 8)
	seedSignup(t, st, 100, first.ID, trip.ID, false)
	seedSignup(t, st, 101, second.ID, trip.ID, false)
	seedSignup(t, st, 102, third.ID, trip.ID, false)

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	ranked, err := r.RankedParticipants(ctx)
	if err != nil {
		t.Fatalf("RankedParticipants() error: %v", err)
	}
	var got []int64
	for _, rp := range ranked {
		got = append(got, rp.Participant.ID)
	}
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("RankedParticipants() returned %d participants, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RankedParticipants()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestLowestNonDriver(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	better := seedParticipant(t, st, 1, "Better", AffiliationMITGrad)
	worse := seedParticipant(t, st, 2, "Worse", AffiliationMITGrad)
	driver := seedParticipant(t, st, 3, "Driver", AffiliationMITGrad)
	seedAdjustment(t, st, better.ID, -5)
	seedAdjustment(t, st, worse.ID, 5)
	if err := st.UpsertLotteryInfo(ctx, &store.LotteryInfo{ParticipantID: driver.ID, CarStatus: store.CarOwn}); err != nil {
		t.Fatalf("UpsertLotteryInfo: %v", err)
	}

	trip := seedTrip(t, st, 10, "Full Trip", 3, 3)
	seedSignup(t, st, 100, better.ID, trip.ID, true)
	worseSignup := seedSignup(t, st, 101, worse.ID, trip.ID, true)
	seedSignup(t, st, 102, driver.ID, trip.ID, true)

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	got, err := r.LowestNonDriver(ctx, trip.ID)
	if err != nil {
		t.Fatalf("LowestNonDriver() error: %v", err)
	}
	if got == nil || got.ID != worseSignup.ID {
		t.Errorf("LowestNonDriver() = %+v, want signup %d", got, worseSignup.ID)
	}
}

func TestLowestNonDriverAllDrivers(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	driver := seedParticipant(t, st, 1, "Driver", AffiliationMITGrad)
	if err := st.UpsertLotteryInfo(ctx, &store.LotteryInfo{ParticipantID: driver.ID, CarStatus: store.CarRent}); err != nil {
		t.Fatalf("UpsertLotteryInfo: %v", err)
	}
	trip := seedTrip(t, st, 10, "Drivers Only", 3, 3)
	seedSignup(t, st, 100, driver.ID, trip.ID, true)

	r := NewWinterRanker(st, store.ProgramWinterSchool, DefaultKey, testSecret, runtime)
	got, err := r.LowestNonDriver(ctx, trip.ID)
	if err != nil {
		t.Fatalf("LowestNonDriver() error: %v", err)
	}
	if got != nil {
		t.Errorf("LowestNonDriver() = %+v, want nil when only drivers are aboard", got)
	}
}

func TestTripRankerDeterministic(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	trip := seedTrip(t, st, 10, "Single", 3, 8)
	for id := int64(1); id <= 5; id++ {
		seedParticipant(t, st, id, "P", AffiliationMITGrad)
		seedSignup(t, st, 100+id, id, trip.ID, false)
	}

	r := NewTripRanker(st, testSecret, &trip)
	first, err := r.RankedParticipants(ctx)
	if err != nil {
		t.Fatalf("RankedParticipants() error: %v", err)
	}
	second, err := r.RankedParticipants(ctx)
	if err != nil {
		t.Fatalf("RankedParticipants() error: %v", err)
	}
	if len(first) != 5 || len(second) != 5 {
		t.Fatalf("RankedParticipants() lengths = %d, %d, want 5", len(first), len(second))
	}
	for i := range first {
		if first[i].Participant.ID != second[i].Participant.ID {
			t.Errorf("order differs at %d: %d vs %d", i, first[i].Participant.ID, second[i].Participant.ID)
		}
	}
}

func TestAffiliationLabel(t *testing.T) {
	if got := AffiliationLabel(AffiliationMITUndergrad); got != "MIT undergrad" {
		t.Errorf("AffiliationLabel(MU) = %q, want %q", got, "MIT undergrad")
	}
	if got := AffiliationLabel("XX"); got != "XX" {
		t.Errorf("AffiliationLabel(XX) = %q, want the code back", got)
	}
}
