// Package phrase turns a typed spawn command such as "big shiny red ball"
// into the appearance of the object it describes.
package phrase

import (
	"errors"
	"strings"
	"unicode"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrConsoleCommand = errors.New("console command")
)

// Analyzer splits commands into words. Fields written in Japanese are
// segmented with kagome and reduced to their dictionary forms.
type Analyzer struct {
	t *tokenizer.Tokenizer
}

// NewAnalyzer creates a new tokenizer instance.
func NewAnalyzer() (*Analyzer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &Analyzer{t: t}, nil
}

// Words returns the words of command in order. A nil Analyzer splits on
// whitespace only.
func (a *Analyzer) Words(command string) []string {
	var words []string
	for _, field := range strings.Fields(command) {
		if a == nil || a.t == nil || !hasJapanese(field) {
			words = append(words, field)
			continue
		}
		words = append(words, a.segment(field)...)
	}
	return words
}

// segment keeps content morphemes of a Japanese field. Particles,
// auxiliaries and symbols carry no appearance.
func (a *Analyzer) segment(field string) []string {
	var out []string
	for _, token := range a.t.Tokenize(field) {
		if token.Class == tokenizer.DUMMY {
			continue
		}
		if strings.TrimSpace(token.Surface) == "" {
			continue
		}

		// IPA features: 0 part of speech, 6 base form
		features := token.Features()
		if len(features) > 0 {
			switch features[0] {
			case "助詞", "助動詞", "記号", "補助記号":
				continue
			}
		}
		base := token.Surface
		if len(features) > 6 && features[6] != "*" {
			base = features[6]
		}
		out = append(out, base)
	}
	return out
}

func hasJapanese(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

// Split separates a spawn command into its noun, the last word, and the
// adjectives before it in the order they were typed. Commands starting
// with '/' are console commands and return ErrConsoleCommand.
func (a *Analyzer) Split(command string) (noun string, adjectives []string, err error) {
	command = strings.TrimSpace(command)
	if strings.HasPrefix(command, "/") {
		return "", nil, ErrConsoleCommand
	}
	words := a.Words(command)
	if len(words) == 0 {
		return "", nil, ErrEmptyCommand
	}
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return words[len(words)-1], words[:len(words)-1], nil
}

// Console is a parsed console command such as "/clear".
type Console struct {
	Name string
	Args []string
}

// ParseConsole parses a '/' command. A bare "/" means "/clear".
func ParseConsole(command string) (Console, bool) {
	command = strings.TrimSpace(command)
	if !strings.HasPrefix(command, "/") {
		return Console{}, false
	}
	fields := strings.Fields(strings.TrimLeft(command, "/"))
	if len(fields) == 0 {
		return Console{Name: "clear"}, true
	}
	return Console{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}
