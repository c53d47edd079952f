// Package lottery implements tripdraw's trip assignment lotteries.
//
// The weekly runner ranks every participant with pending signups and
// places each on the best available trip, honoring reciprocal pairs,
// driver requirements, and separation requests. Single-trip runners do
// the same for one trip, then convert it to first-come, first-serve.
//
// Ranking is deterministic for a given run: every random factor is
// drawn from a PRNG seeded per participant and per run, so a test run
// with the same execution time reproduces the real run exactly.
package lottery

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/tripdraw/tripdraw/pkg/store"
)

// Affiliation codes carried on participant records.
const (
	AffiliationMITUndergrad    = "MU"
	AffiliationMITGrad         = "MG"
	AffiliationMITAffiliate    = "MA"
	AffiliationMITAlum         = "ML"
	AffiliationNonMITUndergrad = "NU"
	AffiliationNonMITGrad      = "NG"
	AffiliationNonAffiliate    = "NA"
)

// Weights bias the random rank toward MIT affiliates: the weight is
// subtracted from a [0,1) draw, so larger weights rank earlier.
// The single-letter codes are deprecated but survive on old records.
var Weights = map[string]float64{
	AffiliationMITUndergrad:    0.3,
	AffiliationMITGrad:         0.2,
	AffiliationMITAffiliate:    0.1,
	AffiliationMITAlum:         0.1,
	AffiliationNonMITUndergrad: 0.0,
	AffiliationNonMITGrad:      0.0,
	AffiliationNonAffiliate:    0.0,
	"M":                        0.1,
	"N":                        0.0,
	"S":                        0.0,
}

// affiliationLabels maps codes to human-readable labels for run logs.
var affiliationLabels = map[string]string{
	AffiliationMITUndergrad:    "MIT undergrad",
	AffiliationMITGrad:         "MIT grad student",
	AffiliationMITAffiliate:    "MIT affiliate",
	AffiliationMITAlum:         "MIT alum (former student)",
	AffiliationNonMITUndergrad: "Non-MIT undergrad",
	AffiliationNonMITGrad:      "Non-MIT grad student",
	AffiliationNonAffiliate:    "Non-affiliate",
}

// AffiliationLabel returns the display label for an affiliation code.
// Unknown codes are returned as-is.
func AffiliationLabel(code string) string {
	if label, ok := affiliationLabels[code]; ok {
		return label
	}
	return code
}

// DefaultKey prefixes weekly rank seeds when no key is configured.
const DefaultKey = "ws"

// ErrUnsavedParticipant is returned when a rank is requested for a
// participant without a stable ID.
var ErrUnsavedParticipant = errors.New("participant has no stable ID")

// Seed returns the string that seeds a participant's PRNG for one
// lottery run.
//
// The seed mixes three parts: the participant ID (so every participant
// draws differently), the lottery key (so every run draws fresh), and
// a secret (so nobody can predict their own draw and game it by, say,
// re-registering for a luckier ID).
func Seed(p store.Participant, lotteryKey, secret string) (string, error) {
	if p.ID == 0 {
		return "", ErrUnsavedParticipant
	}
	return fmt.Sprintf("%d-%s-%s", p.ID, lotteryKey, secret), nil
}

// AffiliationWeightedRand returns a float meant to rank participants
// by affiliation. Lower is preferable: sorting by this value puts MIT
// students toward the beginning of the list more often than not.
func AffiliationWeightedRand(p store.Participant, lotteryKey, secret string) (float64, error) {
	seed, err := Seed(p, lotteryKey, secret)
	if err != nil {
		return 0, err
	}
	sum := sha256.Sum256([]byte(seed))
	rng := rand.New(rand.NewPCG(
		binary.BigEndian.Uint64(sum[0:8]),
		binary.BigEndian.Uint64(sum[8:16]),
	))
	return rng.Float64() - Weights[p.Affiliation], nil
}

// WinterRank is the ordered list of factors identifying a
// participant's rank, or lottery number. Lower ranks earlier; ties on
// one factor resolve by the next.
type WinterRank struct {
	// Adjustment manually moves the participant earlier or later.
	Adjustment int

	// FlakeFactor is normally zero, but higher after flaked trips.
	FlakeFactor int

	// LeaderBump lets especially active leaders choose trips earlier.
	LeaderBump int

	// AffiliationWeight breaks remaining ties randomly, biased toward
	// MIT affiliates.
	AffiliationWeight float64
}

// Less reports whether r ranks before other.
func (r WinterRank) Less(other WinterRank) bool {
	if r.Adjustment != other.Adjustment {
		return r.Adjustment < other.Adjustment
	}
	if r.FlakeFactor != other.FlakeFactor {
		return r.FlakeFactor < other.FlakeFactor
	}
	if r.LeaderBump != other.LeaderBump {
		return r.LeaderBump < other.LeaderBump
	}
	return r.AffiliationWeight < other.AffiliationWeight
}

func (r WinterRank) String() string {
	return fmt.Sprintf("(adjustment=%d, flake_factor=%d, leader_bump=%d, affiliation_weight=%.6f)",
		r.Adjustment, r.FlakeFactor, r.LeaderBump, r.AffiliationWeight)
}

// TripCounts tallies a participant's winter trips this season.
type TripCounts struct {
	Attended int
	Flaked   int
	Total    int
}

// Ranked pairs a participant with their computed weekly rank.
type Ranked struct {
	Participant store.Participant
	Rank        WinterRank
}

// WinterRanker computes the weekly ranked order.
//
// The execution time may lie in the future: test runs fix it so the
// later real run reproduces identical ranks.
type WinterRanker struct {
	st      store.Store
	program string
	secret  string

	// Runtime is the effective execution time of the run.
	Runtime time.Time

	today       time.Time
	seasonStart time.Time
	lotteryKey  string

	adjustments map[int64]int
}

// NewWinterRanker creates a ranker for the program's weekly lottery.
// The key prefixes every rank seed, so distinct keys draw distinct
// ranks; empty means DefaultKey. A zero executionTime means now.
func NewWinterRanker(st store.Store, program, key, secret string, executionTime time.Time) *WinterRanker {
	if key == "" {
		key = DefaultKey
	}
	if executionTime.IsZero() {
		executionTime = time.Now()
	}
	year, month, day := executionTime.Date()
	today := time.Date(year, month, day, 0, 0, 0, 0, executionTime.Location())
	return &WinterRanker{
		st:          st,
		program:     program,
		secret:      secret,
		Runtime:     executionTime,
		today:       today,
		seasonStart: time.Date(year, time.January, 1, 0, 0, 0, 0, executionTime.Location()),
		lotteryKey:  fmt.Sprintf("%s-%s", key, today.Format(time.DateOnly)),
	}
}

// Today returns the run date at midnight; trips on or before it are
// not placed.
func (r *WinterRanker) Today() time.Time { return r.today }

// Participants returns everyone to rank: participants with signups for
// future lottery trips in the program.
func (r *WinterRanker) Participants(ctx context.Context) ([]store.Participant, error) {
	return r.st.ParticipantsWithSignups(ctx, r.program, r.today)
}

// RankedParticipants returns participants in the order their numbers
// come up, with the rank that put them there.
func (r *WinterRanker) RankedParticipants(ctx context.Context) ([]Ranked, error) {
	participants, err := r.Participants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Ranked, 0, len(participants))
	for _, p := range participants {
		rank, err := r.Rank(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, Ranked{Participant: p, Rank: rank})
	}
	slices.SortFunc(out, func(a, b Ranked) int {
		if a.Rank.Less(b.Rank) {
			return -1
		}
		if b.Rank.Less(a.Rank) {
			return 1
		}
		// Equal ranks are vanishingly rare; fall back to ID so the
		// order stays reproducible.
		return int(a.Participant.ID - b.Participant.ID)
	})
	return out, nil
}

// Rank computes one participant's priority.
func (r *WinterRanker) Rank(ctx context.Context, p store.Participant) (WinterRank, error) {
	adjustment, err := r.adjustmentFor(ctx, p.ID)
	if err != nil {
		return WinterRank{}, err
	}

	counts, err := r.TripCounts(ctx, p)
	if err != nil {
		return WinterRank{}, err
	}
	flakeFactor := counts.Flaked*5 - 2*counts.Attended
	// Raw flake factors would hand frequent participants an advantage
	// over those who've been on no trips at all.
	flakyOrNeutral := max(flakeFactor, 0)

	balance, err := r.tripsLedBalance(ctx, p, counts)
	if err != nil {
		return WinterRank{}, err
	}

	weight, err := AffiliationWeightedRand(p, r.lotteryKey, r.secret)
	if err != nil {
		return WinterRank{}, err
	}

	return WinterRank{
		Adjustment:        adjustment,
		FlakeFactor:       flakyOrNeutral,
		LeaderBump:        -balance,
		AffiliationWeight: weight,
	}, nil
}

// TripCounts counts the trips the participant attended and flaked.
//
// A trip counts toward the total when the participant was expected on
// it: either marked on the trip this season, or flaked (leaders mark
// flakes without always removing the signup, so the two sets overlap).
func (r *WinterRanker) TripCounts(ctx context.Context, p store.Participant) (TripCounts, error) {
	onTrip, err := r.st.OnTripTripIDs(ctx, p.ID, r.program, r.seasonStart, r.today)
	if err != nil {
		return TripCounts{}, err
	}
	flaked, err := r.st.FlakedTripIDs(ctx, p.ID, r.program)
	if err != nil {
		return TripCounts{}, err
	}

	total := make(map[int64]struct{}, len(onTrip)+len(flaked))
	for _, id := range onTrip {
		total[id] = struct{}{}
	}
	flakedSet := make(map[int64]struct{}, len(flaked))
	for _, id := range flaked {
		flakedSet[id] = struct{}{}
		total[id] = struct{}{}
	}

	attended := 0
	for id := range total {
		if _, ok := flakedSet[id]; !ok {
			attended++
		}
	}
	return TripCounts{Attended: attended, Flaked: len(flaked), Total: len(total)}, nil
}

// tripsLedBalance returns how many more trips the participant led in
// the last year than they attended. Nobody is penalized for a negative
// balance; only a surplus earns the leader bump.
func (r *WinterRanker) tripsLedBalance(ctx context.Context, p store.Participant, counts TripCounts) (int, error) {
	led, err := r.st.TripsLedCount(ctx, p.ID, r.today.AddDate(0, 0, -365), r.today)
	if err != nil {
		return 0, err
	}
	return max(led-counts.Total, 0), nil
}

func (r *WinterRanker) adjustmentFor(ctx context.Context, participantID int64) (int, error) {
	if r.adjustments == nil {
		active, err := r.st.Adjustments(ctx, r.Runtime)
		if err != nil {
			return 0, err
		}
		r.adjustments = make(map[int64]int, len(active))
		for _, a := range active {
			r.adjustments[a.ParticipantID] = a.Adjustment
		}
	}
	return r.adjustments[participantID], nil
}

// LowestNonDriver returns the signup of the lowest-priority non-driver
// placed on the trip, or nil when the trip holds only drivers.
func (r *WinterRanker) LowestNonDriver(ctx context.Context, tripID int64) (*store.SignUp, error) {
	signups, err := r.st.TripSignups(ctx, tripID)
	if err != nil {
		return nil, err
	}

	var worst *store.SignUp
	var worstRank WinterRank
	for i := range signups {
		su := signups[i]
		if !su.OnTrip {
			continue
		}
		li, err := r.st.LotteryInfo(ctx, su.ParticipantID)
		if err != nil {
			return nil, err
		}
		if li.IsDriver() {
			continue
		}
		p, err := r.st.Participant(ctx, su.ParticipantID)
		if err != nil {
			return nil, err
		}
		rank, err := r.Rank(ctx, *p)
		if err != nil {
			return nil, err
		}
		if worst == nil || worstRank.Less(rank) {
			worst = &signups[i]
			worstRank = rank
		}
	}
	return worst, nil
}

// TripRanker computes the ranked order for a single-trip lottery.
// Only the affiliation-weighted draw applies; the key is derived from
// the trip so reruns of other trips don't reuse ranks.
type TripRanker struct {
	st     store.Store
	secret string
	trip   *store.Trip
}

// NewTripRanker creates a ranker for one trip's lottery.
func NewTripRanker(st store.Store, secret string, trip *store.Trip) *TripRanker {
	return &TripRanker{st: st, secret: secret, trip: trip}
}

// TripRanked pairs a participant with their single-trip draw.
type TripRanked struct {
	Participant store.Participant
	Key         float64
}

// RankedParticipants returns the trip's signed-up participants in
// placement order.
func (r *TripRanker) RankedParticipants(ctx context.Context) ([]TripRanked, error) {
	signups, err := r.st.TripSignups(ctx, r.trip.ID)
	if err != nil {
		return nil, err
	}
	lotteryKey := fmt.Sprintf("trip-%d", r.trip.ID)

	out := make([]TripRanked, 0, len(signups))
	for _, su := range signups {
		p, err := r.st.Participant(ctx, su.ParticipantID)
		if err != nil {
			return nil, err
		}
		key, err := AffiliationWeightedRand(*p, lotteryKey, r.secret)
		if err != nil {
			return nil, err
		}
		out = append(out, TripRanked{Participant: *p, Key: key})
	}
	slices.SortFunc(out, func(a, b TripRanked) int {
		if a.Key != b.Key {
			if a.Key < b.Key {
				return -1
			}
			return 1
		}
		return int(a.Participant.ID - b.Participant.ID)
	})
	return out, nil
}
