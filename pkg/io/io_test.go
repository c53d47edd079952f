package io

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tripdraw/tripdraw/pkg/store"
)

const rosterJSON = `{
  "participants": [
    {"id": 1, "name": "Alice", "email": "alice@example.com", "affiliation": "MU"},
    {"id": 2, "name": "Bert", "email": "bert@example.com", "affiliation": "NA"}
  ],
  "lottery_info": [
    {"participant_id": 1, "car_status": "own", "paired_with": 2}
  ],
  "trips": [
    {"id": 10, "name": "Franconia", "trip_date": "2026-01-17T08:00:00Z", "max_participants": 8}
  ],
  "signups": [
    {"id": 100, "participant_id": 1, "trip_id": 10, "created_at": "2026-01-12T19:04:00Z"},
    {"id": 101, "participant_id": 2, "trip_id": 10, "created_at": "2026-01-12T19:05:00Z"}
  ],
  "leaders": [
    {"trip_id": 10, "participant_id": 2}
  ],
  "separations": [
    {"id": 700, "initiator_id": 1, "recipient_id": 2, "created_at": "2026-01-10T12:00:00Z"}
  ],
  "adjustments": [
    {"id": 9000, "participant_id": 1, "adjustment": -2, "expires_at": "2026-02-01T00:00:00Z"}
  ],
  "feedback": [
    {"id": 500, "participant_id": 2, "trip_id": 10, "showed_up": false, "created_at": "2026-01-18T09:00:00Z"}
  ]
}`

const rosterYAML = `participants:
  - id: 1
    name: Alice
    email: alice@example.com
    affiliation: MU
trips:
  - id: 10
    name: Franconia
    trip_date: 2026-01-17T08:00:00Z
    max_participants: 8
signups:
  - id: 100
    participant_id: 1
    trip_id: 10
    created_at: 2026-01-12T19:04:00Z
`

func TestReadRoster(t *testing.T) {
	ro, err := ReadRoster(strings.NewReader(rosterJSON))
	if err != nil {
		t.Fatalf("ReadRoster() error: %v", err)
	}
	if len(ro.Participants) != 2 || len(ro.Trips) != 1 || len(ro.SignUps) != 2 {
		t.Errorf("ReadRoster() counts = %d/%d/%d, want 2/1/2",
			len(ro.Participants), len(ro.Trips), len(ro.SignUps))
	}
	if li := ro.LotteryInfo[0]; li.CarStatus != store.CarOwn || li.PairedWith == nil || *li.PairedWith != 2 {
		t.Errorf("ReadRoster() lottery info = %+v, want car own paired with 2", li)
	}
	want := time.Date(2026, time.January, 17, 8, 0, 0, 0, time.UTC)
	if !ro.Trips[0].TripDate.Equal(want) {
		t.Errorf("ReadRoster() trip date = %v, want %v", ro.Trips[0].TripDate, want)
	}
}

func TestReadRosterYAML(t *testing.T) {
	ro, err := ReadRosterYAML(strings.NewReader(rosterYAML))
	if err != nil {
		t.Fatalf("ReadRosterYAML() error: %v", err)
	}
	if len(ro.Participants) != 1 || len(ro.Trips) != 1 || len(ro.SignUps) != 1 {
		t.Errorf("ReadRosterYAML() counts = %d/%d/%d, want 1/1/1",
			len(ro.Participants), len(ro.Trips), len(ro.SignUps))
	}
	if ro.Participants[0].Name != "Alice" {
		t.Errorf("ReadRosterYAML() participant = %+v, want Alice", ro.Participants[0])
	}
	if ro.SignUps[0].ParticipantID != 1 || ro.SignUps[0].TripID != 10 {
		t.Errorf("ReadRosterYAML() signup = %+v, want participant 1 on trip 10", ro.SignUps[0])
	}
}

func TestImportRosterPicksCodecByExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "roster.json")
	if err := os.WriteFile(jsonPath, []byte(rosterJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(dir, "roster.yaml")
	if err := os.WriteFile(yamlPath, []byte(rosterYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	fromJSON, err := ImportRoster(jsonPath)
	if err != nil {
		t.Fatalf("ImportRoster(json) error: %v", err)
	}
	if len(fromJSON.Participants) != 2 {
		t.Errorf("ImportRoster(json) participants = %d, want 2", len(fromJSON.Participants))
	}

	fromYAML, err := ImportRoster(yamlPath)
	if err != nil {
		t.Fatalf("ImportRoster(yaml) error: %v", err)
	}
	if len(fromYAML.Participants) != 1 {
		t.Errorf("ImportRoster(yaml) participants = %d, want 1", len(fromYAML.Participants))
	}
}

func TestImportRosterMissingFile(t *testing.T) {
	_, err := ImportRoster(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("ImportRoster() on a missing file succeeded")
	}
	if !strings.Contains(err.Error(), "nope.json") {
		t.Errorf("ImportRoster() error = %v, want the path in it", err)
	}
}

func TestRosterLoad(t *testing.T) {
	ctx := context.Background()
	ro, err := ReadRoster(strings.NewReader(rosterJSON))
	if err != nil {
		t.Fatalf("ReadRoster() error: %v", err)
	}

	st := store.NewMemoryStore()
	if err := ro.Load(ctx, st); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	p, err := st.Participant(ctx, 1)
	if err != nil {
		t.Fatalf("Participant(1): %v", err)
	}
	if p.Name != "Alice" {
		t.Errorf("participant 1 = %+v, want Alice", p)
	}

	trip, err := st.Trip(ctx, 10)
	if err != nil {
		t.Fatalf("Trip(10): %v", err)
	}
	if trip.Program != store.ProgramWinterSchool {
		t.Errorf("trip program = %q, want the winter default", trip.Program)
	}
	if trip.Algorithm != store.AlgorithmLottery {
		t.Errorf("trip algorithm = %q, want the lottery default", trip.Algorithm)
	}

	if _, err := st.SignUpFor(ctx, 1, 10); err != nil {
		t.Errorf("SignUpFor(1, 10): %v", err)
	}
	leaders, err := st.Leaders(ctx, 10)
	if err != nil {
		t.Fatalf("Leaders(10): %v", err)
	}
	if len(leaders) != 1 || leaders[0] != 2 {
		t.Errorf("Leaders(10) = %v, want [2]", leaders)
	}
	seps, err := st.Separations(ctx)
	if err != nil {
		t.Fatalf("Separations(): %v", err)
	}
	if len(seps) != 1 || seps[0].InitiatorID != 1 {
		t.Errorf("Separations() = %+v, want the one loaded request", seps)
	}
	adjustments, err := st.Adjustments(ctx, time.Date(2026, time.January, 14, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Adjustments(): %v", err)
	}
	if len(adjustments) != 1 || adjustments[0].Adjustment != -2 {
		t.Errorf("Adjustments() = %+v, want the -2 entry", adjustments)
	}
	flaked, err := st.FlakedTripIDs(ctx, 2, store.ProgramWinterSchool)
	if err != nil {
		t.Fatalf("FlakedTripIDs(): %v", err)
	}
	if len(flaked) != 1 || flaked[0] != 10 {
		t.Errorf("FlakedTripIDs(2) = %v, want [10]", flaked)
	}
}

func TestRosterLoadValidation(t *testing.T) {
	base := func() *Roster {
		return &Roster{
			Participants: []store.Participant{{ID: 1, Name: "Alice"}},
			Trips:        []store.Trip{{ID: 10, Name: "Outing"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Roster)
		wantErr string
	}{
		{
			"participant without id",
			func(ro *Roster) { ro.Participants = append(ro.Participants, store.Participant{Name: "Ghost"}) },
			`participant "Ghost": missing id`,
		},
		{
			"duplicate participant",
			func(ro *Roster) { ro.Participants = append(ro.Participants, store.Participant{ID: 1, Name: "Copy"}) },
			"participant 1: duplicate id",
		},
		{
			"trip without id",
			func(ro *Roster) { ro.Trips = append(ro.Trips, store.Trip{Name: "Ghost Trip"}) },
			`trip "Ghost Trip": missing id`,
		},
		{
			"signup names unknown participant",
			func(ro *Roster) { ro.SignUps = []store.SignUp{{ID: 100, ParticipantID: 9, TripID: 10}} },
			"signup 100: unknown participant 9",
		},
		{
			"signup names unknown trip",
			func(ro *Roster) { ro.SignUps = []store.SignUp{{ID: 100, ParticipantID: 1, TripID: 99}} },
			"signup 100: unknown trip 99",
		},
		{
			"pairing names unknown partner",
			func(ro *Roster) {
				partner := int64(9)
				ro.LotteryInfo = []store.LotteryInfo{{ParticipantID: 1, PairedWith: &partner}}
			},
			"unknown partner 9",
		},
		{
			"self separation",
			func(ro *Roster) { ro.Separations = []store.Separation{{ID: 700, InitiatorID: 1, RecipientID: 1}} },
			"separation 700: initiator and recipient are the same",
		},
		{
			"adjustment names unknown participant",
			func(ro *Roster) { ro.Adjustments = []store.Adjustment{{ID: 9000, ParticipantID: 9}} },
			"adjustment 9000: unknown participant 9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ro := base()
			tt.mutate(ro)
			err := ro.Load(context.Background(), store.NewMemoryStore())
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteRosterRoundTrip(t *testing.T) {
	ro, err := ReadRoster(strings.NewReader(rosterJSON))
	if err != nil {
		t.Fatalf("ReadRoster() error: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteRoster(ro, &buf); err != nil {
		t.Fatalf("WriteRoster() error: %v", err)
	}
	back, err := ReadRoster(&buf)
	if err != nil {
		t.Fatalf("ReadRoster(written) error: %v", err)
	}
	if len(back.Participants) != len(ro.Participants) || len(back.SignUps) != len(ro.SignUps) {
		t.Errorf("round trip changed counts: %d/%d vs %d/%d",
			len(back.Participants), len(back.SignUps), len(ro.Participants), len(ro.SignUps))
	}
}

func TestWriteResults(t *testing.T) {
	tripID := int64(10)
	rec := &store.RunRecord{
		ID:     "run-1",
		Kind:   store.RunKindTrip,
		TripID: &tripID,
		Results: []store.RunResult{
			{ParticipantID: 1, PlacedOnChoice: 1, GlobalRank: 1},
		},
	}

	var buf bytes.Buffer
	if err := WriteResults(rec, &buf); err != nil {
		t.Fatalf("WriteResults() error: %v", err)
	}
	var back store.RunRecord
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("Unmarshal(written) error: %v", err)
	}
	if back.ID != rec.ID || len(back.Results) != 1 || back.Results[0].ParticipantID != 1 {
		t.Errorf("WriteResults() round trip = %+v, want %+v", back, rec)
	}
}
