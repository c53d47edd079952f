package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tripdraw/tripdraw/pkg/store"
)

// WriteRoster encodes a roster as indented JSON. The output reads back
// with [ReadRoster] for round-trip editing.
func WriteRoster(ro *Roster, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ro); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportRoster writes a roster to a JSON file at path.
// This is a convenience wrapper around [WriteRoster] for file-based output.
func ExportRoster(ro *Roster, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteRoster(ro, f)
}

// WriteResults encodes a run record as indented JSON: the run's
// identity, captured log, and one result per handled participant.
func WriteResults(rec *store.RunRecord, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ExportResults writes a run record to a JSON file at path.
func ExportResults(rec *store.RunRecord, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteResults(rec, f)
}
