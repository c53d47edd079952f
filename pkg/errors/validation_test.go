package errors

import (
	"testing"
)

func TestValidateParticipantName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "Ada Lovelace", false},
		{"valid with accent", "Renée", false},
		{"valid with apostrophe", "O'Brien", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 300)), true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
		{"carriage return", "foo\rbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateParticipantName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateParticipantName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidParticipant) {
				t.Errorf("ValidateParticipantName(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidateRosterFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid json", "roster.json", false},
		{"valid yaml", "winter-week3.yaml", false},

		{"empty", "", true},
		{"with path /", "path/to/file", true},
		{"with path \\", "path\\to\\file", true},
		{"hidden file", ".hidden", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRosterFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRosterFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidRoster) {
				t.Errorf("ValidateRosterFilename(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid relative", "logs/ws_2026.log", false},
		{"valid simple", "roster.json", false},

		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "foo/../bar", true},
		{"backslash", "foo\\bar", true},
		{"null byte", "foo\x00bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidatePath(%q) returned wrong error code: %v", tt.input, err)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidTrip,
		ErrCodeInvalidParticipant,
		ErrCodeInvalidRoster,
		ErrCodeInvalidConfig,
		ErrCodeInvalidPath,
		ErrCodeNotFound,
		ErrCodeTripNotFound,
		ErrCodeParticipantNotFound,
		ErrCodeRunNotFound,
		ErrCodeFileNotFound,
		ErrCodeConflict,
		ErrCodeSelfSeparation,
		ErrCodeStore,
		ErrCodeCache,
		ErrCodeTimeout,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("Duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
