package trie

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/japaniel/scrb/pkg/modifier"
)

// Entry is a word's terminal payload.
type Entry struct {
	Word      string
	Modifiers []modifier.Modifier
}

// Clone returns a copy that shares no memory with e.
func (e Entry) Clone() Entry {
	return Entry{Word: e.Word, Modifiers: append([]modifier.Modifier(nil), e.Modifiers...)}
}

type node struct {
	children map[rune]*node
	entry    *Entry
}

func (n *node) child(r rune) *node {
	if n.children == nil {
		n.children = make(map[rune]*node)
	}
	c, ok := n.children[r]
	if !ok {
		c = &node{}
		n.children[r] = c
	}
	return c
}

// Trie maps words to modifier lists, one node per character.
// It is not safe for concurrent use.
type Trie struct {
	root node
	size int
}

// New returns an empty trie.
func New() *Trie {
	return &Trie{}
}

// Normalize trims, lowercases and NFC-normalizes a word so that
// visually identical input reaches the same node.
func Normalize(word string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(word)))
}

func (t *Trie) terminal(word string) *node {
	n := &t.root
	for _, r := range word {
		n = n.child(r)
	}
	if n.entry == nil {
		n.entry = &Entry{Word: word}
		t.size++
	}
	return n
}

// Insert appends m to word's entry, creating the character chain as needed.
// Repeated values are kept; callers authoring in bulk are trusted not to
// insert exact duplicates. The returned Entry is a snapshot.
func (t *Trie) Insert(word string, m modifier.Modifier) Entry {
	n := t.terminal(word)
	n.entry.Modifiers = append(n.entry.Modifiers, m)
	return n.entry.Clone()
}

// Put replaces word's modifiers with mods.
func (t *Trie) Put(word string, mods []modifier.Modifier) Entry {
	n := t.terminal(word)
	n.entry.Modifiers = append([]modifier.Modifier(nil), mods...)
	return n.entry.Clone()
}

func (t *Trie) find(word string) *node {
	n := &t.root
	for _, r := range word {
		c, ok := n.children[r]
		if !ok {
			return nil
		}
		n = c
	}
	return n
}

// Search returns word's entry. A missing chain and a prefix that is not a
// word are both reported as not found.
func (t *Trie) Search(word string) (Entry, bool) {
	n := t.find(word)
	if n == nil || n.entry == nil {
		return Entry{}, false
	}
	return n.entry.Clone(), true
}

// Len returns the number of words with an entry.
func (t *Trie) Len() int {
	return t.size
}

// Walk calls fn for every entry, depth first, visiting children in rune
// order so that repeated walks of equal tries are identical. Walk stops at
// the first error fn returns.
func (t *Trie) Walk(fn func(Entry) error) error {
	return walk(&t.root, fn)
}

func walk(n *node, fn func(Entry) error) error {
	if n.entry != nil {
		if err := fn(n.entry.Clone()); err != nil {
			return err
		}
	}
	keys := make([]rune, 0, len(n.children))
	for r := range n.children {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, r := range keys {
		if err := walk(n.children[r], fn); err != nil {
			return err
		}
	}
	return nil
}

// WithPrefix lists the words starting with prefix in rune order.
func (t *Trie) WithPrefix(prefix string) []string {
	n := t.find(prefix)
	if n == nil {
		return nil
	}
	var words []string
	_ = walk(n, func(e Entry) error {
		words = append(words, e.Word)
		return nil
	})
	return words
}
