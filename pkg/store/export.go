package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/trie"
)

// Export merges every entry of t into s and returns how many records were
// merged.
//
// Entries that cannot be persisted (non-finite values, unstorable words) are
// skipped; the pass continues and their errors are joined into the returned
// error. Any other failure aborts the pass at once. The root entry, if any,
// is never exported.
func Export(ctx context.Context, t *trie.Trie, s Store) (int, error) {
	var rejected []error
	merged := 0
	err := t.Walk(func(e trie.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Word == "" {
			return nil
		}
		if _, err := s.Merge(ctx, e.Word, e.Modifiers); err != nil {
			if errors.Is(err, modifier.ErrNonFiniteValue) || errors.Is(err, ErrInvalidWord) {
				rejected = append(rejected, fmt.Errorf("export %q: %w", e.Word, err))
				return nil
			}
			return fmt.Errorf("export %q: %w", e.Word, err)
		}
		merged++
		return nil
	})
	if err != nil {
		return merged, err
	}
	return merged, errors.Join(rejected...)
}
