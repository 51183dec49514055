package dictionary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"
)

// ColorName is one row of a named color table.
type ColorName struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

var ErrNoColors = errors.New("no named colors found")

// LoadColorTable reads a JSON color table. Both a bare array of
// {"name","hex"} rows and an object wrapping it as {"colors": [...]} are
// accepted.
func LoadColorTable(path string) ([]ColorName, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeColorTable(f)
}

// DecodeColorTable is LoadColorTable for an already open stream.
func DecodeColorTable(r io.Reader) ([]ColorName, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var wrapped struct {
		Colors []ColorName `json:"colors"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Colors) > 0 {
		return wrapped.Colors, nil
	}

	var names []ColorName
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("failed to parse color table as object or array: %w", err)
	}
	return names, nil
}

// reNamedHex matches "Crimson #dc143c" and "Crimson: #DC143C".
var reNamedHex = regexp.MustCompile(`([A-Za-z][A-Za-z' ]*?)\s*[:=-]?\s*(#[0-9A-Fa-f]{6})\b`)

// LoadColorTableHTML extracts named colors from a saved web page. The
// readable text of the page is scanned for a name followed by a hex code.
func LoadColorTableHTML(r io.Reader, pageURL string) ([]ColorName, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	article, err := readability.FromReader(r, u)
	if err != nil {
		return nil, fmt.Errorf("failed to extract article: %w", err)
	}
	names := parseColorText(article.TextContent)
	if len(names) == 0 {
		return nil, ErrNoColors
	}
	return names, nil
}

func parseColorText(text string) []ColorName {
	var out []ColorName
	seen := make(map[string]bool)
	for _, m := range reNamedHex.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, ColorName{Name: name, Hex: strings.ToLower(m[2])})
	}
	return out
}
