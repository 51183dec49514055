package modifier

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind tags the attribute a Modifier changes.
type Kind uint8

const (
	KindColor Kind = iota + 1
	KindScale
	KindRoughness
	KindMetallic
	KindReflectance
)

// Consumption-time bounds. Stored values are never clamped.
const (
	MinRoughness   = 0.089
	MaxRoughness   = 1.0
	MinMetallic    = 0.0
	MaxMetallic    = 1.0
	MinReflectance = 0.0
	MaxReflectance = 1.0
)

var kindNames = map[Kind]string{
	KindColor:       "color",
	KindScale:       "scale",
	KindRoughness:   "roughness",
	KindMetallic:    "metallic",
	KindReflectance: "reflectance",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a record tag back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
}

// Color is an 8-bit-per-channel RGB triple.
type Color struct {
	R, G, B uint8
}

// ParseHex decodes "#rrggbb" (the leading '#' is optional).
func ParseHex(hex string) (Color, error) {
	rgb := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(rgb) != 6 {
		return Color{}, fmt.Errorf("invalid hex color %q", hex)
	}
	v, err := strconv.ParseUint(rgb, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// Hex returns the lowercase "#rrggbb" form.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Normalized returns the channels scaled to [0, 1].
func (c Color) Normalized() (r, g, b float32) {
	return float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255
}

// colorFromUnit converts a normalized channel, rounding to the nearest step.
func colorFromUnit(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(math.Round(v * 255))
}

// Modifier is one typed attribute value attached to a word.
// Color is meaningful only for KindColor, Value only for the scalar kinds.
// The zero payload of the unused field keeps == usable as structural equality.
type Modifier struct {
	Kind  Kind
	Color Color
	Value float64
}

func NewColor(c Color) Modifier { return Modifier{Kind: KindColor, Color: c} }
func NewScale(v float64) Modifier { return Modifier{Kind: KindScale, Value: v} }
func NewRoughness(v float64) Modifier { return Modifier{Kind: KindRoughness, Value: v} }
func NewMetallic(v float64) Modifier { return Modifier{Kind: KindMetallic, Value: v} }
func NewReflectance(v float64) Modifier { return Modifier{Kind: KindReflectance, Value: v} }
func newScalar(k Kind, v float64) Modifier { return Modifier{Kind: k, Value: v} }

// Equal reports whether m and o carry the same tag and value.
func (m Modifier) Equal(o Modifier) bool {
	if m.Kind != o.Kind {
		return false
	}
	if m.Kind == KindColor {
		return m.Color == o.Color
	}
	return m.Value == o.Value
}

// Validate rejects payloads that cannot be persisted.
func (m Modifier) Validate() error {
	if _, ok := kindNames[m.Kind]; !ok {
		return fmt.Errorf("%w: %d", ErrUnsupportedKind, uint8(m.Kind))
	}
	if m.Kind != KindColor && (math.IsNaN(m.Value) || math.IsInf(m.Value, 0)) {
		return fmt.Errorf("%s %v: %w", m.Kind, m.Value, ErrNonFiniteValue)
	}
	return nil
}

// Clamped returns m with its value limited to the range a renderer accepts.
func (m Modifier) Clamped() Modifier {
	switch m.Kind {
	case KindRoughness:
		m.Value = clamp(m.Value, MinRoughness, MaxRoughness)
	case KindMetallic:
		m.Value = clamp(m.Value, MinMetallic, MaxMetallic)
	case KindReflectance:
		m.Value = clamp(m.Value, MinReflectance, MaxReflectance)
	}
	return m
}

func (m Modifier) String() string {
	if m.Kind == KindColor {
		return fmt.Sprintf("%s(%s)", m.Kind, m.Color.Hex())
	}
	return fmt.Sprintf("%s(%s)", m.Kind, strconv.FormatFloat(m.Value, 'g', -1, 64))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Merge returns the ordered union of existing and incoming with structural
// duplicates removed. The first occurrence of each value keeps its position.
func Merge(existing, incoming []Modifier) []Modifier {
	out := make([]Modifier, 0, len(existing)+len(incoming))
	for _, list := range [][]Modifier{existing, incoming} {
		for _, m := range list {
			if !Contains(out, m) {
				out = append(out, m)
			}
		}
	}
	return out
}

// Contains reports whether mods holds a value structurally equal to m.
func Contains(mods []Modifier, m Modifier) bool {
	for _, x := range mods {
		if x.Equal(m) {
			return true
		}
	}
	return false
}

// EqualList reports whether a and b hold the same values in the same order.
func EqualList(a, b []Modifier) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
