package io

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	tderrors "github.com/tripdraw/tripdraw/pkg/errors"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// Roster is the file form of one program's lottery state: the people,
// trips, signups, and constraints a run needs. Slices may be empty and
// their order carries no meaning.
type Roster struct {
	Participants []store.Participant `json:"participants,omitempty" yaml:"participants,omitempty"`
	LotteryInfo  []store.LotteryInfo `json:"lottery_info,omitempty" yaml:"lottery_info,omitempty"`
	Trips        []store.Trip        `json:"trips,omitempty" yaml:"trips,omitempty"`
	SignUps      []store.SignUp      `json:"signups,omitempty" yaml:"signups,omitempty"`
	Leaders      []store.TripLeader  `json:"leaders,omitempty" yaml:"leaders,omitempty"`
	Separations  []store.Separation  `json:"separations,omitempty" yaml:"separations,omitempty"`
	Adjustments  []store.Adjustment  `json:"adjustments,omitempty" yaml:"adjustments,omitempty"`
	Feedback     []store.Feedback    `json:"feedback,omitempty" yaml:"feedback,omitempty"`
}

// ReadRoster decodes a JSON roster from r.
//
// Decoding alone does not validate references between records; that
// happens in [Roster.Load], where the target store is known. ReadRoster
// does not close r.
func ReadRoster(r io.Reader) (*Roster, error) {
	var ro Roster
	if err := json.NewDecoder(r).Decode(&ro); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &ro, nil
}

// ReadRosterYAML decodes a YAML roster from r. The field names match
// the JSON form.
func ReadRosterYAML(r io.Reader) (*Roster, error) {
	var ro Roster
	if err := yaml.NewDecoder(r).Decode(&ro); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &ro, nil
}

// ImportRoster reads the roster file at path. Files ending in .yaml or
// .yml decode as YAML; everything else decodes as JSON.
func ImportRoster(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ReadRosterYAML(f)
	default:
		return ReadRoster(f)
	}
}

// Load validates the roster and writes every record into st.
//
// References are checked before the first write, so a failed load
// leaves a fresh store empty: every signup, separation, adjustment,
// leader, and feedback entry must name participants and trips defined
// in the same roster. Duplicate or zero IDs fail the load.
//
// Trips may omit program and algorithm; they default to the winter
// program and lottery mode.
func (ro *Roster) Load(ctx context.Context, st store.Store) error {
	participants := make(map[int64]bool, len(ro.Participants))
	for _, p := range ro.Participants {
		if p.ID == 0 {
			return fmt.Errorf("participant %q: missing id", p.Name)
		}
		if participants[p.ID] {
			return fmt.Errorf("participant %d: duplicate id", p.ID)
		}
		if err := tderrors.ValidateParticipantName(p.Name); err != nil {
			return fmt.Errorf("participant %d: %w", p.ID, err)
		}
		participants[p.ID] = true
	}
	trips := make(map[int64]bool, len(ro.Trips))
	for _, t := range ro.Trips {
		if t.ID == 0 {
			return fmt.Errorf("trip %q: missing id", t.Name)
		}
		if trips[t.ID] {
			return fmt.Errorf("trip %d: duplicate id", t.ID)
		}
		trips[t.ID] = true
	}

	for _, li := range ro.LotteryInfo {
		if !participants[li.ParticipantID] {
			return fmt.Errorf("lottery info: unknown participant %d", li.ParticipantID)
		}
		if li.PairedWith != nil && !participants[*li.PairedWith] {
			return fmt.Errorf("lottery info for participant %d: unknown partner %d", li.ParticipantID, *li.PairedWith)
		}
	}
	for _, su := range ro.SignUps {
		if !participants[su.ParticipantID] {
			return fmt.Errorf("signup %d: unknown participant %d", su.ID, su.ParticipantID)
		}
		if !trips[su.TripID] {
			return fmt.Errorf("signup %d: unknown trip %d", su.ID, su.TripID)
		}
	}
	for _, tl := range ro.Leaders {
		if !participants[tl.ParticipantID] {
			return fmt.Errorf("leader of trip %d: unknown participant %d", tl.TripID, tl.ParticipantID)
		}
		if !trips[tl.TripID] {
			return fmt.Errorf("leader %d: unknown trip %d", tl.ParticipantID, tl.TripID)
		}
	}
	for _, s := range ro.Separations {
		if s.InitiatorID == s.RecipientID {
			return fmt.Errorf("separation %d: initiator and recipient are the same", s.ID)
		}
		if !participants[s.InitiatorID] {
			return fmt.Errorf("separation %d: unknown initiator %d", s.ID, s.InitiatorID)
		}
		if !participants[s.RecipientID] {
			return fmt.Errorf("separation %d: unknown recipient %d", s.ID, s.RecipientID)
		}
	}
	for _, a := range ro.Adjustments {
		if !participants[a.ParticipantID] {
			return fmt.Errorf("adjustment %d: unknown participant %d", a.ID, a.ParticipantID)
		}
	}
	for _, fb := range ro.Feedback {
		if !participants[fb.ParticipantID] {
			return fmt.Errorf("feedback %d: unknown participant %d", fb.ID, fb.ParticipantID)
		}
		if !trips[fb.TripID] {
			return fmt.Errorf("feedback %d: unknown trip %d", fb.ID, fb.TripID)
		}
	}

	for i := range ro.Participants {
		p := &ro.Participants[i]
		if err := st.UpsertParticipant(ctx, p); err != nil {
			return fmt.Errorf("participant %d: %w", p.ID, err)
		}
	}
	for i := range ro.LotteryInfo {
		li := &ro.LotteryInfo[i]
		if err := st.UpsertLotteryInfo(ctx, li); err != nil {
			return fmt.Errorf("lottery info for participant %d: %w", li.ParticipantID, err)
		}
	}
	for i := range ro.Trips {
		t := &ro.Trips[i]
		if t.Program == "" {
			t.Program = store.ProgramWinterSchool
		}
		if t.Algorithm == "" {
			t.Algorithm = store.AlgorithmLottery
		}
		if err := st.UpsertTrip(ctx, t); err != nil {
			return fmt.Errorf("trip %d: %w", t.ID, err)
		}
	}
	for i := range ro.SignUps {
		su := &ro.SignUps[i]
		if err := st.UpsertSignUp(ctx, su); err != nil {
			return fmt.Errorf("signup %d: %w", su.ID, err)
		}
	}
	for i := range ro.Leaders {
		tl := &ro.Leaders[i]
		if err := st.AddLeader(ctx, tl); err != nil {
			return fmt.Errorf("leader %d of trip %d: %w", tl.ParticipantID, tl.TripID, err)
		}
	}
	for i := range ro.Separations {
		s := &ro.Separations[i]
		if err := st.AddSeparation(ctx, s); err != nil {
			return fmt.Errorf("separation %d: %w", s.ID, err)
		}
	}
	for i := range ro.Adjustments {
		a := &ro.Adjustments[i]
		if err := st.UpsertAdjustment(ctx, a); err != nil {
			return fmt.Errorf("adjustment %d: %w", a.ID, err)
		}
	}
	for i := range ro.Feedback {
		fb := &ro.Feedback[i]
		if err := st.AddFeedback(ctx, fb); err != nil {
			return fmt.Errorf("feedback %d: %w", fb.ID, err)
		}
	}
	return nil
}
