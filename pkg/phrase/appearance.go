package phrase

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/trie"
)

// Shape is the primitive a noun spawns as.
type Shape int

const (
	ShapeSprite Shape = iota
	ShapeSphere
	ShapeCube
)

var shapeNames = [...]string{"sprite", "sphere", "cube"}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ShapeFor maps a noun to its primitive. Nouns without one become
// generated sprites.
func ShapeFor(noun string) Shape {
	switch noun {
	case "ball":
		return ShapeSphere
	case "cube":
		return ShapeCube
	}
	return ShapeSprite
}

// SpawnHeight is where new objects appear before scale lifts them.
const SpawnHeight = 20

// Appearance is what a spawn command resolves to.
type Appearance struct {
	Noun        string     `json:"noun"`
	Shape       Shape      `json:"shape"`
	BaseColor   mgl32.Vec3 `json:"base_color"`
	Scale       mgl32.Vec3 `json:"scale"`
	Translation mgl32.Vec3 `json:"translation"`
	Roughness   float32    `json:"roughness"`
	Metallic    float32    `json:"metallic"`
	Reflectance float32    `json:"reflectance"`
	// Matched and Unknown list adjectives in the order they were typed.
	Matched []string `json:"matched"`
	Unknown []string `json:"unknown"`
}

// DefaultAppearance is a plain white object at spawn height.
func DefaultAppearance(noun string) Appearance {
	return Appearance{
		Noun:        noun,
		Shape:       ShapeFor(noun),
		BaseColor:   mgl32.Vec3{1, 1, 1},
		Scale:       mgl32.Vec3{1, 1, 1},
		Translation: mgl32.Vec3{0, SpawnHeight, 0},
		Roughness:   0.5,
		Metallic:    0,
		Reflectance: 0.5,
	}
}

// Apply folds one modifier into a. Scalar values are clamped here, at the
// point of use. A scale also lifts the object by half its size.
func (a *Appearance) Apply(m modifier.Modifier) {
	m = m.Clamped()
	switch m.Kind {
	case modifier.KindColor:
		r, g, b := m.Color.Normalized()
		a.BaseColor = mgl32.Vec3{r, g, b}
	case modifier.KindScale:
		s := float32(m.Value)
		a.Scale = mgl32.Vec3{s, s, s}
		a.Translation = a.Translation.Add(mgl32.Vec3{0, s * 0.5, 0})
	case modifier.KindRoughness:
		a.Roughness = float32(m.Value)
	case modifier.KindMetallic:
		a.Metallic = float32(m.Value)
	case modifier.KindReflectance:
		a.Reflectance = float32(m.Value)
	}
}

// Lookup resolves one word, typically a *dictionary.Dictionary.
type Lookup interface {
	Lookup(ctx context.Context, word string) (trie.Entry, bool, error)
}

// Resolver resolves spawn commands against a Lookup.
type Resolver struct {
	Analyzer *Analyzer
	Words    Lookup
}

// Resolve builds the appearance a spawn command describes. Adjectives are
// applied right to left, so when two set the same attribute the leftmost
// one wins.
func (r *Resolver) Resolve(ctx context.Context, command string) (Appearance, error) {
	noun, adjectives, err := r.Analyzer.Split(command)
	if err != nil {
		return Appearance{}, err
	}

	app := DefaultAppearance(noun)
	matched := make([]bool, len(adjectives))
	for i := len(adjectives) - 1; i >= 0; i-- {
		e, ok, err := r.Words.Lookup(ctx, adjectives[i])
		if err != nil {
			return Appearance{}, fmt.Errorf("lookup %q: %w", adjectives[i], err)
		}
		if !ok {
			continue
		}
		matched[i] = true
		for _, m := range e.Modifiers {
			app.Apply(m)
		}
	}
	for i, adj := range adjectives {
		if matched[i] {
			app.Matched = append(app.Matched, adj)
		} else {
			app.Unknown = append(app.Unknown, adj)
		}
	}
	return app, nil
}
