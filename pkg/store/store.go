// Package store persists tripdraw's domain records: participants,
// trips, signups, lottery preferences, separations, and run records.
//
// Two implementations are provided:
//   - MemoryStore: mutex-guarded maps for tests, dry runs, and
//     roster-file runs
//   - MongoStore: document store for production deployments
//
// # Conventions
//
// Every method takes a context. Lookups of a specific record return
// ErrNotFound when the record does not exist; LotteryInfo and
// ReciprocalPair are the exceptions, returning nil without error since
// absence is the common case. List methods return records in a
// deterministic order so lottery runs are reproducible.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a record would violate uniqueness,
	// such as a second separation for the same initiator and recipient.
	ErrDuplicate = errors.New("already exists")
)

// Store is the interface for tripdraw storage backends.
type Store interface {
	// Participant returns one participant by ID.
	Participant(ctx context.Context, id int64) (*Participant, error)

	// Participants returns all participants ordered by ID.
	Participants(ctx context.Context) ([]Participant, error)

	// UpsertParticipant creates or replaces a participant.
	UpsertParticipant(ctx context.Context, p *Participant) error

	// LotteryInfo returns a participant's lottery preferences.
	// Returns nil, nil when the participant has none.
	LotteryInfo(ctx context.Context, participantID int64) (*LotteryInfo, error)

	// UpsertLotteryInfo creates or replaces lottery preferences.
	UpsertLotteryInfo(ctx context.Context, li *LotteryInfo) error

	// ReciprocalPair returns the partner a participant is mutually
	// paired with, or nil when pairing is absent or unreciprocated.
	ReciprocalPair(ctx context.Context, participantID int64) (*Participant, error)

	// Trip returns one trip by ID.
	Trip(ctx context.Context, id int64) (*Trip, error)

	// LotteryTrips returns a program's trips still in lottery mode,
	// ordered by ID.
	LotteryTrips(ctx context.Context, program string) ([]Trip, error)

	// UpsertTrip creates or replaces a trip.
	UpsertTrip(ctx context.Context, t *Trip) error

	// SignUpFor returns a participant's signup for one trip.
	SignUpFor(ctx context.Context, participantID, tripID int64) (*SignUp, error)

	// RankedSignups returns a participant's pending lottery signups
	// for future trips in the program: on_trip is false, the trip is
	// in lottery mode, and the trip date is after the given day.
	// Ordered by the participant's ranking, then signup time, then ID.
	RankedSignups(ctx context.Context, participantID int64, program string, after time.Time) ([]SignUp, error)

	// TripSignups returns all signups for a trip ordered by ID.
	TripSignups(ctx context.Context, tripID int64) ([]SignUp, error)

	// UpsertSignUp creates or replaces a signup.
	UpsertSignUp(ctx context.Context, s *SignUp) error

	// ParticipantsWithSignups returns the distinct participants with
	// signups for future lottery trips in the program, placed or not.
	ParticipantsWithSignups(ctx context.Context, program string, after time.Time) ([]Participant, error)

	// AddToWaitlist moves a signup off the trip and onto its trip's
	// waitlist. Prioritized entries slot above first-come entries but
	// below earlier prioritized ones. Idempotent for existing entries,
	// except that prioritize still reorders them.
	AddToWaitlist(ctx context.Context, signUpID int64, prioritize bool) error

	// Waitlist returns a trip's waitlisted signups in slot order.
	Waitlist(ctx context.Context, tripID int64) ([]SignUp, error)

	// Leaders returns the participant IDs leading a trip, ordered.
	Leaders(ctx context.Context, tripID int64) ([]int64, error)

	// AddLeader assigns a leader to a trip.
	AddLeader(ctx context.Context, tl *TripLeader) error

	// TripsLedCount counts trips the participant led with a trip date
	// in (after, before), any program.
	TripsLedCount(ctx context.Context, participantID int64, after, before time.Time) (int, error)

	// OnTripTripIDs returns IDs of the program's trips the participant
	// is placed on with a trip date in (after, before).
	OnTripTripIDs(ctx context.Context, participantID int64, program string, after, before time.Time) ([]int64, error)

	// FlakedTripIDs returns IDs of the program's trips the participant
	// has showed-up=false feedback for, deduplicated.
	FlakedTripIDs(ctx context.Context, participantID int64, program string) ([]int64, error)

	// AddFeedback records post-trip feedback.
	AddFeedback(ctx context.Context, f *Feedback) error

	// Separations returns all separations ordered by initiator then
	// recipient.
	Separations(ctx context.Context) ([]Separation, error)

	// AddSeparation records a separation request.
	// Returns ErrDuplicate when the pair is already separated.
	AddSeparation(ctx context.Context, s *Separation) error

	// RemoveSeparation deletes a separation by its endpoints.
	// Returns ErrNotFound when no such separation exists.
	RemoveSeparation(ctx context.Context, initiatorID, recipientID int64) error

	// Adjustments returns adjustments that expire after activeAt.
	Adjustments(ctx context.Context, activeAt time.Time) ([]Adjustment, error)

	// UpsertAdjustment creates or replaces an adjustment.
	UpsertAdjustment(ctx context.Context, a *Adjustment) error

	// SaveRun stores a completed run record.
	SaveRun(ctx context.Context, r *RunRecord) error

	// Run returns a stored run record by UUID.
	Run(ctx context.Context, id string) (*RunRecord, error)

	// Close releases any resources held by the backend.
	Close(ctx context.Context) error
}
