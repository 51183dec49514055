package dictionary

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/store"
	"github.com/japaniel/scrb/pkg/trie"
)

// countingStore is an in-memory store.Store that counts Load calls per word.
type countingStore struct {
	mu      sync.Mutex
	records map[string][]modifier.Modifier
	fail    map[string]error
	loads   map[string]int
	delay   time.Duration
	started chan string
}

func newCountingStore() *countingStore {
	return &countingStore{
		records: make(map[string][]modifier.Modifier),
		fail:    make(map[string]error),
		loads:   make(map[string]int),
	}
}

func (s *countingStore) Load(ctx context.Context, word string) ([]modifier.Modifier, error) {
	s.mu.Lock()
	s.loads[word]++
	mods, ok := s.records[word]
	err := s.fail[word]
	s.mu.Unlock()
	if s.started != nil {
		s.started <- word
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", word, store.ErrNotFound)
	}
	return append([]modifier.Modifier(nil), mods...), nil
}

func (s *countingStore) Merge(ctx context.Context, word string, mods []modifier.Modifier) ([]modifier.Modifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[word] = modifier.Merge(s.records[word], mods)
	return s.records[word], nil
}

func (s *countingStore) loadCount(word string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads[word]
}

func TestSearchImportsOnMissThenServesFromCache(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	s.records["red"] = []modifier.Modifier{modifier.NewColor(modifier.Color{R: 0xff})}
	d := New(s)

	got, err := d.Search(ctx, "red")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "red", got[0].Word)
	assert.Equal(t, s.records["red"], got[0].Modifiers)

	got, err = d.Search(ctx, "red")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, s.loadCount("red"), "second search must not touch storage")

	st := d.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Imports)
	assert.Equal(t, 1, st.Cached)
}

func TestSearchNormalizesWord(t *testing.T) {
	s := newCountingStore()
	s.records["red"] = []modifier.Modifier{modifier.NewScale(1)}
	d := New(s)

	got, err := d.Search(context.Background(), "  RED ")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "red", got[0].Word)
}

func TestSearchMissIsNotCached(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	d := New(s)

	got, err := d.Search(ctx, "teal")
	require.NoError(t, err)
	assert.Empty(t, got)

	// a record written after the miss is picked up by the next search
	_, err = s.Merge(ctx, "teal", []modifier.Modifier{modifier.NewColor(modifier.Color{G: 0x80, B: 0x80})})
	require.NoError(t, err)

	got, err = d.Search(ctx, "teal")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, s.loadCount("teal"))
	assert.Equal(t, int64(1), d.Stats().Misses)
}

func TestSearchMalformedRecordIsAMiss(t *testing.T) {
	s := newCountingStore()
	s.fail["bad"] = fmt.Errorf("bad.json: %w", modifier.ErrMalformedRecord)
	var logs bytes.Buffer
	d := New(s, WithLogger(log.New(&logs, "", 0)))

	got, err := d.Search(context.Background(), "bad")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Contains(t, logs.String(), "bad")
}

func TestSearchPropagatesStorageErrors(t *testing.T) {
	s := newCountingStore()
	boom := errors.New("disk on fire")
	s.fail["red"] = boom
	d := New(s)

	_, err := d.Search(context.Background(), "red")
	assert.ErrorIs(t, err, boom)
}

func TestInvalidWordIsAMiss(t *testing.T) {
	d := New(store.NewDirStore(t.TempDir()))
	got, err := d.Search(context.Background(), "../etc/passwd")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConcurrentMissesLoadOnce(t *testing.T) {
	s := newCountingStore()
	s.delay = 50 * time.Millisecond
	s.records["blue"] = []modifier.Modifier{modifier.NewColor(modifier.Color{B: 0xff})}
	d := New(s)

	var wg sync.WaitGroup
	results := make([][]trie.Entry, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := d.Search(context.Background(), "blue")
			if err == nil {
				results[i] = got
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.loadCount("blue"))
	for i, got := range results {
		require.Len(t, got, 1, "caller %d", i)
	}
	// every caller owns its modifier slice
	results[0][0].Modifiers[0] = modifier.NewScale(9)
	assert.Equal(t, modifier.KindColor, results[1][0].Modifiers[0].Kind)
}

func TestCancelledCallerDoesNotFailSharedImport(t *testing.T) {
	s := newCountingStore()
	s.delay = 100 * time.Millisecond
	s.started = make(chan string, 4)
	s.records["teal"] = []modifier.Modifier{modifier.NewColor(modifier.Color{G: 0x80, B: 0x80})}
	d := New(s)

	firstCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	firstErr := make(chan error, 1)
	go func() {
		_, err := d.Search(firstCtx, "teal")
		firstErr <- err
	}()
	<-s.started

	type result struct {
		got []trie.Entry
		err error
	}
	second := make(chan result, 1)
	go func() {
		got, err := d.Search(context.Background(), "teal")
		second <- result{got, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	r := <-second
	require.NoError(t, r.err)
	require.Len(t, r.got, 1)
	assert.Equal(t, "teal", r.got[0].Word)
	assert.Equal(t, 1, d.Stats().Cached)
}

func TestConcurrentSearchesOfDifferentWords(t *testing.T) {
	s := newCountingStore()
	words := []string{"red", "green", "blue", "cyan", "magenta", "yellow"}
	for _, w := range words {
		s.records[w] = []modifier.Modifier{modifier.NewScale(1)}
	}
	d := New(s)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, w := range words {
			wg.Add(1)
			go func(w string) {
				defer wg.Done()
				_, _ = d.Search(context.Background(), w)
			}(w)
		}
	}
	wg.Wait()
	assert.Equal(t, len(words), d.Stats().Cached)
}

func TestWithTrieSeedsCache(t *testing.T) {
	tr := trie.New()
	tr.Insert("big", modifier.NewScale(2.25))
	s := newCountingStore()
	d := New(s, WithTrie(tr))

	got, err := d.Search(context.Background(), "big")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, s.loadCount("big"))
}

func TestWarmAndSuggest(t *testing.T) {
	ctx := context.Background()
	s := newCountingStore()
	for _, w := range []string{"red", "rad", "reed", "crimson", "blue"} {
		s.records[w] = []modifier.Modifier{modifier.NewScale(1)}
	}
	d := New(s)

	n, err := d.Warm(ctx, []string{"red", "rad", "reed", "crimson", "blue", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	assert.Equal(t, []string{"rad", "red"}, d.Suggest("rod", 5))
	assert.Equal(t, []string{"rad"}, d.Suggest("rod", 1))
	assert.Equal(t, []string{"crimson"}, d.Suggest("crimsen", 5))
	assert.Empty(t, d.Suggest("zzzzzz", 5))
	assert.Empty(t, d.Suggest("", 5))
}
