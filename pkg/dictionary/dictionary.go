// Package dictionary is the runtime word lookup: an in-memory trie filled
// lazily from a record store.
package dictionary

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/agnivade/levenshtein"
	"golang.org/x/sync/singleflight"

	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/store"
	"github.com/japaniel/scrb/pkg/trie"
)

// Dictionary caches records in a trie and imports missing words from its
// store on first use. It is safe for concurrent use.
type Dictionary struct {
	store  store.Store
	logger *log.Logger

	mu   sync.RWMutex
	trie *trie.Trie

	// one storage read per word, however many callers miss at once
	group singleflight.Group

	hits, misses, imports, loads atomic.Int64
}

// Option configures a Dictionary.
type Option func(*Dictionary)

// WithLogger reports malformed records to l. Without it they are dropped silently.
func WithLogger(l *log.Logger) Option {
	return func(d *Dictionary) { d.logger = l }
}

// WithTrie seeds the cache, e.g. with a freshly built trie.
func WithTrie(t *trie.Trie) Option {
	return func(d *Dictionary) {
		if t != nil {
			d.trie = t
		}
	}
}

// New returns a Dictionary backed by s with an empty cache.
func New(s store.Store, opts ...Option) *Dictionary {
	d := &Dictionary{store: s, trie: trie.New()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats counts lookups since the Dictionary was created.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Imports int64 `json:"imports"`
	Loads   int64 `json:"loads"`
	Cached  int   `json:"cached"`
}

func (d *Dictionary) Stats() Stats {
	d.mu.RLock()
	cached := d.trie.Len()
	d.mu.RUnlock()
	return Stats{
		Hits:    d.hits.Load(),
		Misses:  d.misses.Load(),
		Imports: d.imports.Load(),
		Loads:   d.loads.Load(),
		Cached:  cached,
	}
}

// Search returns the entry for word as a list of zero or one element.
// Words are normalized first, so "Red" finds "red".
func (d *Dictionary) Search(ctx context.Context, word string) ([]trie.Entry, error) {
	e, ok, err := d.Lookup(ctx, word)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []trie.Entry{e}, nil
}

// Lookup is Search for callers that want a single entry.
func (d *Dictionary) Lookup(ctx context.Context, word string) (trie.Entry, bool, error) {
	word = trie.Normalize(word)
	if e, ok := d.cached(word); ok {
		d.hits.Add(1)
		return e, true, nil
	}
	e, ok, err := d.Import(ctx, word)
	if err != nil {
		return trie.Entry{}, false, err
	}
	if !ok {
		d.misses.Add(1)
	}
	return e, ok, nil
}

func (d *Dictionary) cached(word string) (trie.Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.trie.Search(word)
}

type importResult struct {
	entry trie.Entry
	found bool
}

// Import loads word from the store into the cache. Absent, unstorable and
// malformed records are reported as not found; misses are not cached, so
// a record written later is picked up by the next call.
//
// The storage read is shared by every caller importing word at the same
// time, so it does not stop when one of them gives up. Each caller still
// returns as soon as its own ctx is done.
func (d *Dictionary) Import(ctx context.Context, word string) (trie.Entry, bool, error) {
	loadCtx := context.WithoutCancel(ctx)
	ch := d.group.DoChan(word, func() (interface{}, error) {
		// another caller may have finished importing while we queued
		if e, ok := d.cached(word); ok {
			return importResult{entry: e, found: true}, nil
		}

		d.loads.Add(1)
		mods, err := d.store.Load(loadCtx, word)
		switch {
		case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrInvalidWord):
			return importResult{}, nil
		case errors.Is(err, modifier.ErrMalformedRecord):
			if d.logger != nil {
				d.logger.Printf("dictionary: ignoring %q: %v", word, err)
			}
			return importResult{}, nil
		case err != nil:
			return nil, err
		}

		d.mu.Lock()
		e := d.trie.Put(word, mods)
		d.mu.Unlock()
		d.imports.Add(1)
		return importResult{entry: e, found: true}, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return trie.Entry{}, false, ctx.Err()
	}
	if res.Err != nil {
		return trie.Entry{}, false, res.Err
	}
	r := res.Val.(importResult)
	// shared callers must not alias one modifier slice
	return r.entry.Clone(), r.found, nil
}

// Warm imports every word, returning how many are now cached.
func (d *Dictionary) Warm(ctx context.Context, words []string) (int, error) {
	n := 0
	for _, w := range words {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		_, ok, err := d.Lookup(ctx, w)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Suggest returns up to max cached words close to word, nearest first.
// The edit distance allowed grows with the length of word.
func (d *Dictionary) Suggest(word string, max int) []string {
	word = trie.Normalize(word)
	if word == "" || max <= 0 {
		return nil
	}
	limit := levenshteinLimit(word)

	type candidate struct {
		word string
		dist int
	}
	var found []candidate
	d.mu.RLock()
	_ = d.trie.Walk(func(e trie.Entry) error {
		if e.Word == "" || e.Word == word {
			return nil
		}
		if dist := levenshtein.ComputeDistance(word, e.Word); dist <= limit {
			found = append(found, candidate{e.Word, dist})
		}
		return nil
	})
	d.mu.RUnlock()

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].dist < found[j].dist
	})
	if len(found) > max {
		found = found[:max]
	}
	out := make([]string, len(found))
	for i, c := range found {
		out[i] = c.word
	}
	return out
}

func levenshteinLimit(word string) int {
	n := len([]rune(word))
	switch {
	case n <= 4:
		return 1
	case n <= 8:
		return 2
	default:
		return 3
	}
}
