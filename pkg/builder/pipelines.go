package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/japaniel/scrb/pkg/dictionary"
	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/store"
	"github.com/japaniel/scrb/pkg/trie"
)

// Pipeline authors one fresh trie. It is exported once and discarded.
type Pipeline struct {
	Name  string
	Build func() (*trie.Trie, error)
}

// Run builds p's trie and exports it into s, returning the number of
// records merged. Pipelines sharing a store must run one after another;
// their contributions accumulate through the merge on export.
func (p Pipeline) Run(ctx context.Context, s store.Store) (int, error) {
	t, err := p.Build()
	if err != nil {
		return 0, fmt.Errorf("%s: build: %w", p.Name, err)
	}
	n, err := store.Export(ctx, t, s)
	if err != nil {
		return n, fmt.Errorf("%s: export: %w", p.Name, err)
	}
	return n, nil
}

// ColorPipeline indexes single-word color names. Names are lowercased;
// multi-word names and names that cannot be stored (a '.' would become a
// directory of its own) are passed to skipped, when set, and left out.
// A bad hex code fails the build.
func ColorPipeline(names []dictionary.ColorName, skipped func(name string)) Pipeline {
	return Pipeline{
		Name: "color",
		Build: func() (*trie.Trie, error) {
			t := trie.New()
			for _, c := range names {
				word := trie.Normalize(c.Name)
				if len(strings.Fields(word)) != 1 || store.ValidWord(word) != nil {
					if skipped != nil {
						skipped(c.Name)
					}
					continue
				}
				col, err := modifier.ParseHex(c.Hex)
				if err != nil {
					return nil, fmt.Errorf("color %q: %w", c.Name, err)
				}
				t.Insert(word, modifier.NewColor(col))
			}
			return t, nil
		},
	}
}

// RoughnessPipeline gives each roughness band its calibrated value and
// marks metal words as polished.
func RoughnessPipeline() Pipeline {
	return Pipeline{
		Name: "roughness",
		Build: func() (*trie.Trie, error) {
			t := trie.New()
			for idx, band := range RoughnessBands {
				v := RoughnessForBand(idx, len(RoughnessBands))
				for _, w := range band {
					t.Insert(w, modifier.NewRoughness(v))
				}
			}
			for _, w := range MetalWords {
				t.Insert(w, modifier.NewRoughness(MetalRoughness))
			}
			return t, nil
		},
	}
}

// ScalePipeline gives each size band its calibrated scale.
func ScalePipeline() Pipeline {
	return Pipeline{
		Name: "scale",
		Build: func() (*trie.Trie, error) {
			t := trie.New()
			for idx, band := range ScaleBands {
				v := ScaleForBand(idx)
				for _, w := range band {
					t.Insert(w, modifier.NewScale(v))
				}
			}
			return t, nil
		},
	}
}

// MetallicPipeline gives metal words full metallic and half reflectance.
func MetallicPipeline() Pipeline {
	return Pipeline{
		Name: "metallic",
		Build: func() (*trie.Trie, error) {
			t := trie.New()
			for _, w := range MetalWords {
				t.Insert(w, modifier.NewMetallic(MetalMetallic))
				t.Insert(w, modifier.NewReflectance(MetalReflectance))
			}
			return t, nil
		},
	}
}

// RunAll runs pipelines in order against s and stops at the first failure.
// done, if set, is told about each finished pipeline.
func RunAll(ctx context.Context, s store.Store, done func(p Pipeline, records int), pipelines ...Pipeline) error {
	for _, p := range pipelines {
		n, err := p.Run(ctx, s)
		if err != nil {
			return err
		}
		if done != nil {
			done(p, n)
		}
	}
	return nil
}
