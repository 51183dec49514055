// Package store persists dictionary records and exports tries into them.
package store

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"github.com/japaniel/scrb/pkg/modifier"
)

var (
	// ErrNotFound is returned by Load when no record exists for a word.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidWord is returned for words that cannot name a record.
	ErrInvalidWord = errors.New("word cannot be stored")
)

// Store reads and merges per-word records.
type Store interface {
	// Load returns the modifiers recorded for word, or ErrNotFound.
	Load(ctx context.Context, word string) ([]modifier.Modifier, error)
	// Merge adds mods to word's record, dropping values already present,
	// and returns the record as written.
	Merge(ctx context.Context, word string, mods []modifier.Modifier) ([]modifier.Modifier, error)
}

// ValidWord reports whether word can be persisted: it must be non-empty and
// free of path separators, dots and control characters, since every
// character becomes a directory name.
func ValidWord(word string) error {
	if word == "" {
		return fmt.Errorf("empty word: %w", ErrInvalidWord)
	}
	for _, r := range word {
		if r == '/' || r == '\\' || r == '.' || unicode.IsControl(r) || r == unicode.ReplacementChar {
			return fmt.Errorf("%q: %w", word, ErrInvalidWord)
		}
	}
	return nil
}

// validateAll checks every modifier before anything touches storage.
func validateAll(word string, mods []modifier.Modifier) error {
	if err := ValidWord(word); err != nil {
		return err
	}
	for _, m := range mods {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%q: %w", word, err)
		}
	}
	return nil
}
