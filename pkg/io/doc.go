// Package io reads and writes tripdraw's file formats: roster files on
// the way in, run results on the way out.
//
// # Overview
//
// A roster file carries one program's lottery state as a single
// document. It exists for two jobs:
//
//   - Dry runs: load a roster into a memory store, run the lottery, and
//     inspect the outcome without touching production data
//   - Seeding: populate a fresh deployment from a reviewed file
//
// # Roster Format
//
// The roster is one JSON object with a list per record type; every list
// is optional:
//
//	{
//	  "participants": [
//	    {"id": 1, "name": "Alice", "email": "alice@example.com", "affiliation": "MU"}
//	  ],
//	  "trips": [
//	    {"id": 10, "name": "Franconia", "trip_date": "2026-01-17T08:00:00Z", "max_participants": 8}
//	  ],
//	  "signups": [
//	    {"id": 100, "participant_id": 1, "trip_id": 10, "created_at": "2026-01-12T19:04:00Z"}
//	  ],
//	  "lottery_info": [
//	    {"participant_id": 1, "car_status": "own"}
//	  ],
//	  "separations": [],
//	  "adjustments": [],
//	  "leaders": [],
//	  "feedback": []
//	}
//
// The same document structure decodes from YAML, which reads better for
// hand-maintained rosters. Trips may omit program and algorithm; they
// default to the winter program in lottery mode.
//
// # Import
//
// Use [ImportRoster] to read a file by path (extension picks the
// codec), or [ReadRoster] and [ReadRosterYAML] for io.Readers. Loading
// is a second step so callers choose the target:
//
//	ro, err := io.ImportRoster("week3.yaml")
//	if err != nil {
//	    return err
//	}
//	st := store.NewMemoryStore()
//	if err := ro.Load(ctx, st); err != nil {
//	    return err
//	}
//
// [Roster.Load] checks every cross-reference before the first write, so
// a bad file never half-populates a store. Errors name the offending
// record.
//
// # Export
//
// [WriteResults] and [ExportResults] emit a completed run record as
// indented JSON for archiving or diffing against a previous week.
// [WriteRoster] and [ExportRoster] do the same for rosters.
package io
