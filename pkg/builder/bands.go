// Package builder authors dictionary records from curated word lists and
// color tables.
package builder

import (
	"math"

	"github.com/japaniel/scrb/pkg/modifier"
)

// FormulaVersion tags the band formulas below. Bump it whenever a formula
// or a band list changes, since earlier exports merge with new values
// instead of being replaced by them.
const FormulaVersion = 1

// Roughness calibration endpoints.
const (
	RoughEnd  = 1.0
	SmoothEnd = modifier.MinRoughness
)

// RoughnessBands run from rough to smooth.
var RoughnessBands = [][]string{
	{"rough", "uneven", "jagged", "bumpy"},
	{"smooth", "even", "flat", "uniform"},
}

// MetalWords get a polished roughness plus metallic and reflectance.
var MetalWords = []string{"iron", "steel", "metal", "aluminum", "golden"}

// ScaleBands run from smallest to largest; index 2 is the unit scale.
var ScaleBands = [][]string{
	{"molecular", "atomic", "subatomic", "nano"},
	{"tiny", "minuscule", "petite", "microscopic"},
	{"little", "slight", "minor", "diminutive"},
	{"small", "compact", "miniature", "modest"},
	{"medium", "moderate", "medium-sized", "average"},
	{"big", "large", "substantial", "considerable"},
	{"huge", "massive", "enormous", "immense"},
	{"giant", "titanic", "monstrous", "towering"},
	{"colossal", "mammoth", "gargantuan", "monumental"},
	{"cosmic", "astronomical", "galactic", "stellar"},
	{"universal", "multiversal", "infinite", "boundless"},
}

// RoughnessForBand interpolates linearly from RoughEnd at index 0 to
// SmoothEnd at the last band. Both endpoints are exact.
func RoughnessForBand(idx, bands int) float64 {
	if bands <= 1 {
		return RoughEnd
	}
	t := float64(idx) / float64(bands-1)
	return (1-t)*RoughEnd + t*SmoothEnd
}

// ScaleForBand is 1.5^(idx-2).
func ScaleForBand(idx int) float64 {
	return math.Pow(1.5, float64(idx-2))
}

// Metallic values given to MetalWords.
const (
	MetalRoughness   = modifier.MinRoughness
	MetalMetallic    = 1.0
	MetalReflectance = 0.5
)
