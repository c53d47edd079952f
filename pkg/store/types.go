package store

import "time"

// Program identifiers. Lottery trips belong to a program; the weekly
// runner only touches trips in its own program.
const (
	ProgramWinterSchool = "winter_school"
	ProgramNone         = "none"
)

// Algorithm controls how a trip fills its roster.
type Algorithm string

// Trip signup algorithms.
const (
	AlgorithmLottery Algorithm = "lottery"
	AlgorithmFCFS    Algorithm = "fcfs"
)

// CarStatus describes whether a participant can drive for a trip.
type CarStatus string

// Car statuses. Only own and rent count as driving.
const (
	CarNone CarStatus = "none"
	CarOwn  CarStatus = "own"
	CarRent CarStatus = "rent"
)

// Participant is a person who can sign up for trips.
type Participant struct {
	ID          int64  `json:"id" bson:"_id" yaml:"id"`
	Name        string `json:"name" bson:"name" yaml:"name"`
	Email       string `json:"email" bson:"email" yaml:"email"`
	Affiliation string `json:"affiliation" bson:"affiliation" yaml:"affiliation"`
}

// LotteryInfo stores a participant's lottery preferences.
// Pairing is only honored when reciprocated; see Store.ReciprocalPair.
type LotteryInfo struct {
	ParticipantID int64     `json:"participant_id" bson:"_id" yaml:"participant_id"`
	CarStatus     CarStatus `json:"car_status" bson:"car_status" yaml:"car_status"`
	PairedWith    *int64    `json:"paired_with,omitempty" bson:"paired_with,omitempty" yaml:"paired_with,omitempty"`
}

// IsDriver reports whether the participant can drive.
// A nil receiver (no lottery preferences) is a non-driver.
func (li *LotteryInfo) IsDriver() bool {
	return li != nil && (li.CarStatus == CarOwn || li.CarStatus == CarRent)
}

// Trip is a single outing participants sign up for.
type Trip struct {
	ID              int64     `json:"id" bson:"_id" yaml:"id"`
	Name            string    `json:"name" bson:"name" yaml:"name"`
	Program         string    `json:"program" bson:"program" yaml:"program"`
	Algorithm       Algorithm `json:"algorithm" bson:"algorithm" yaml:"algorithm"`
	TripDate        time.Time `json:"trip_date" bson:"trip_date" yaml:"trip_date"`
	MaxParticipants int       `json:"max_participants" bson:"max_participants" yaml:"max_participants"`
	HonorPairing    bool      `json:"honor_pairing" bson:"honor_pairing" yaml:"honor_pairing"`
	SignupsOpenAt   time.Time `json:"signups_open_at,omitempty" bson:"signups_open_at,omitempty" yaml:"signups_open_at,omitempty"`

	// LotteryLog holds the captured log of a single-trip lottery run
	// after the trip converts to FCFS.
	LotteryLog string `json:"lottery_log,omitempty" bson:"lottery_log,omitempty" yaml:"lottery_log,omitempty"`
}

// MakeFCFS converts the trip to first-come, first-serve and schedules
// when signups reopen. A zero time leaves the current open time alone.
func (t *Trip) MakeFCFS(signupsOpenAt time.Time) {
	t.Algorithm = AlgorithmFCFS
	if !signupsOpenAt.IsZero() {
		t.SignupsOpenAt = signupsOpenAt
	}
}

// SignUp records a participant's interest in a trip.
// Order is the participant's own ranking of the trip (lower is more
// desired); nil means unranked, which sorts after ranked signups.
type SignUp struct {
	ID            int64     `json:"id" bson:"_id" yaml:"id"`
	ParticipantID int64     `json:"participant_id" bson:"participant_id" yaml:"participant_id"`
	TripID        int64     `json:"trip_id" bson:"trip_id" yaml:"trip_id"`
	Order         *int64    `json:"order,omitempty" bson:"order,omitempty" yaml:"order,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" yaml:"created_at"`
	OnTrip        bool      `json:"on_trip" bson:"on_trip" yaml:"on_trip"`
}

// WaitlistEntry is a signup waiting for a slot to open.
// Entries order by descending ManualOrder with nil last, then by
// AddedAt: prioritized entries (bumped participants) come before
// first-come entries, and each later prioritization slots below the
// previous one.
type WaitlistEntry struct {
	SignUpID    int64     `json:"signup_id" bson:"_id"`
	TripID      int64     `json:"trip_id" bson:"trip_id"`
	ManualOrder *int64    `json:"manual_order,omitempty" bson:"manual_order,omitempty"`
	AddedAt     time.Time `json:"added_at" bson:"added_at"`
}

// Separation asks the lottery to never place two participants on the
// same trip. The initiator expresses the intent; placement treats the
// relation as mutual.
type Separation struct {
	ID          int64     `json:"id" bson:"_id" yaml:"id"`
	InitiatorID int64     `json:"initiator_id" bson:"initiator_id" yaml:"initiator_id"`
	RecipientID int64     `json:"recipient_id" bson:"recipient_id" yaml:"recipient_id"`
	CreatorID   int64     `json:"creator_id,omitempty" bson:"creator_id,omitempty" yaml:"creator_id,omitempty"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" yaml:"created_at"`
}

// Adjustment manually moves a participant up or down in the ranked
// order until it expires. Negative adjustments rank earlier.
type Adjustment struct {
	ID            int64     `json:"id" bson:"_id" yaml:"id"`
	ParticipantID int64     `json:"participant_id" bson:"participant_id" yaml:"participant_id"`
	Adjustment    int       `json:"adjustment" bson:"adjustment" yaml:"adjustment"`
	CreatorID     int64     `json:"creator_id,omitempty" bson:"creator_id,omitempty" yaml:"creator_id,omitempty"`
	ExpiresAt     time.Time `json:"expires_at" bson:"expires_at" yaml:"expires_at"`
}

// Feedback is a leader's post-trip report on a participant.
// ShowedUp=false marks a flake, which lowers future lottery priority.
type Feedback struct {
	ID            int64     `json:"id" bson:"_id" yaml:"id"`
	ParticipantID int64     `json:"participant_id" bson:"participant_id" yaml:"participant_id"`
	TripID        int64     `json:"trip_id" bson:"trip_id" yaml:"trip_id"`
	ShowedUp      bool      `json:"showed_up" bson:"showed_up" yaml:"showed_up"`
	Comments      string    `json:"comments,omitempty" bson:"comments,omitempty" yaml:"comments,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" yaml:"created_at"`
}

// TripLeader assigns a participant as a leader of a trip.
// Leaders are on the trip without a signup and count toward drivers.
type TripLeader struct {
	TripID        int64 `json:"trip_id" bson:"trip_id" yaml:"trip_id"`
	ParticipantID int64 `json:"participant_id" bson:"participant_id" yaml:"participant_id"`
}

// Run kinds.
const (
	RunKindWeekly = "weekly"
	RunKindTrip   = "trip"
)

// RunResult is the outcome of handling one participant in a run.
// PlacedOnChoice is 1-indexed; zero means not placed.
type RunResult struct {
	ParticipantID  int64   `json:"participant_id" bson:"participant_id"`
	PairedWithID   *int64  `json:"paired_with_id,omitempty" bson:"paired_with_id,omitempty"`
	IsPaired       bool    `json:"is_paired" bson:"is_paired"`
	Affiliation    string  `json:"affiliation" bson:"affiliation"`
	RankedTrips    []int64 `json:"ranked_trips" bson:"ranked_trips"`
	PlacedOnChoice int     `json:"placed_on_choice,omitempty" bson:"placed_on_choice,omitempty"`
	Waitlisted     bool    `json:"waitlisted" bson:"waitlisted"`
	GlobalRank     int     `json:"global_rank" bson:"global_rank"`
	HasFlaked      bool    `json:"has_flaked" bson:"has_flaked"`
}

// RunRecord stores one lottery execution: its log and per-participant
// results. ID is a UUID assigned by the runner.
type RunRecord struct {
	ID         string      `json:"id" bson:"_id"`
	Kind       string      `json:"kind" bson:"kind"`
	TripID     *int64      `json:"trip_id,omitempty" bson:"trip_id,omitempty"`
	StartedAt  time.Time   `json:"started_at" bson:"started_at"`
	FinishedAt time.Time   `json:"finished_at" bson:"finished_at"`
	Log        string      `json:"log,omitempty" bson:"log,omitempty"`
	Results    []RunResult `json:"results" bson:"results"`
}
