package modifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Ext is the file extension of an encoded record.
const Ext = ".json"

var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrNonFiniteValue  = errors.New("non-finite modifier value")
	ErrUnsupportedKind = errors.New("unsupported modifier kind")
)

// wireModifier is one element of a record: {"kind":"scale","value":1.5}.
type wireModifier struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// Externally tagged single-modifier objects, accepted on read only.
var legacyTags = map[string]Kind{
	"ColorModifier":       KindColor,
	"ScaleModifier":       KindScale,
	"RoughnessModifier":   KindRoughness,
	"MetallicModifier":    KindMetallic,
	"ReflectanceModifier": KindReflectance,
}

// Encode renders mods as a JSON array with one modifier per line.
// Equal input always yields identical bytes.
func Encode(mods []Modifier) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, m := range mods {
		line, err := encodeOne(m)
		if err != nil {
			return nil, err
		}
		buf.WriteString("  ")
		buf.Write(line)
		if i < len(mods)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

func encodeOne(m Modifier) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var value string
	if m.Kind == KindColor {
		value = strconv.Quote(m.Color.Hex())
	} else {
		value = strconv.FormatFloat(m.Value, 'g', -1, 64)
	}
	return []byte(`{"kind":` + strconv.Quote(m.Kind.String()) + `,"value":` + value + `}`), nil
}

// Decode parses a record. Besides the list form written by Encode it accepts
// single-modifier JSON shapes (a tagged object or a bare color) and upgrades
// them to a one-element list.
func Decode(data []byte) ([]Modifier, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedRecord)
	}
	switch data[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		mods := make([]Modifier, 0, len(elems))
		for i, raw := range elems {
			m, err := decodeOne(raw)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			mods = append(mods, m)
		}
		return mods, nil
	case '{', '"':
		m, err := decodeOne(data)
		if err != nil {
			return nil, err
		}
		return []Modifier{m}, nil
	}
	return nil, fmt.Errorf("%w: unexpected %q", ErrMalformedRecord, data[0])
}

// IsLegacy reports whether data is in one of the single-modifier shapes.
func IsLegacy(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] != '['
}

func decodeOne(raw json.RawMessage) (Modifier, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		// color-only records stored nothing but the color itself
		c, err := decodeColor(raw)
		if err != nil {
			return Modifier{}, err
		}
		return NewColor(c), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Modifier{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	if _, ok := fields["kind"]; ok {
		var w wireModifier
		if err := json.Unmarshal(raw, &w); err != nil {
			return Modifier{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		k, err := ParseKind(w.Kind)
		if err != nil {
			return Modifier{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return decodePayload(k, w.Value)
	}

	if len(fields) == 1 {
		for tag, payload := range fields {
			if k, ok := legacyTags[tag]; ok {
				return decodePayload(k, payload)
			}
			if tag == "Rgba" {
				c, err := decodeColor(raw)
				if err != nil {
					return Modifier{}, err
				}
				return NewColor(c), nil
			}
		}
	}
	return Modifier{}, fmt.Errorf("%w: unknown shape %s", ErrMalformedRecord, raw)
}

func decodePayload(k Kind, payload json.RawMessage) (Modifier, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return Modifier{}, fmt.Errorf("%w: %s without value", ErrMalformedRecord, k)
	}
	if k == KindColor {
		c, err := decodeColor(payload)
		if err != nil {
			return Modifier{}, err
		}
		return NewColor(c), nil
	}
	var v float64
	if err := json.Unmarshal(payload, &v); err != nil {
		return Modifier{}, fmt.Errorf("%w: %s value: %v", ErrMalformedRecord, k, err)
	}
	return newScalar(k, v), nil
}

// decodeColor accepts "#rrggbb" or the {"Rgba":{"red":..}} object of
// normalized channels.
func decodeColor(payload json.RawMessage) (Color, error) {
	var hex string
	if err := json.Unmarshal(payload, &hex); err == nil {
		c, err := ParseHex(hex)
		if err != nil {
			return Color{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return c, nil
	}

	var rgba struct {
		Rgba *struct {
			Red   *float64 `json:"red"`
			Green *float64 `json:"green"`
			Blue  *float64 `json:"blue"`
		} `json:"Rgba"`
	}
	if err := json.Unmarshal(payload, &rgba); err != nil || rgba.Rgba == nil {
		return Color{}, fmt.Errorf("%w: color payload %s", ErrMalformedRecord, payload)
	}
	ch := rgba.Rgba
	if ch.Red == nil || ch.Green == nil || ch.Blue == nil {
		return Color{}, fmt.Errorf("%w: color payload %s lacks a channel", ErrMalformedRecord, payload)
	}
	return Color{
		R: colorFromUnit(*ch.Red),
		G: colorFromUnit(*ch.Green),
		B: colorFromUnit(*ch.Blue),
	}, nil
}
