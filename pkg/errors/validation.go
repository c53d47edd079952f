package errors

import (
	"strings"
	"unicode"
)

// ValidateParticipantName validates a display name coming from roster files
// or the HTTP API. It rejects names that could corrupt logs or rendered
// output.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - Maximum length of 256 characters
func ValidateParticipantName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidParticipant, "participant name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidParticipant, "participant name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidParticipant, "participant name contains control characters")
		}
	}

	return nil
}

// ValidateRosterFilename validates a roster filename for safety.
// It ensures the filename is a simple basename without path components.
func ValidateRosterFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidRoster, "roster filename cannot be empty")
	}

	// Must be a simple filename, not a path
	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidRoster, "roster filename cannot contain path separators")
	}

	if strings.HasPrefix(filename, ".") {
		return New(ErrCodeInvalidRoster, "roster filename cannot be a hidden file")
	}

	return nil
}

// ValidatePath validates a file path supplied through the HTTP API or config
// for safety. It prevents path traversal and ensures reasonable length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
