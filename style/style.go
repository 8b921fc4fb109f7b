// Package style parses the style document: a JSON list of style layers,
// each naming the source layer it paints and a constant paint color.
//
// This is deliberately small: spec.md explicitly excludes a
// style-expression evaluator and any data-driven paint beyond constant
// color.
package style

import (
	"encoding/json"
	"fmt"
	"io"
)

// Style is the root style document: an ordered list of layers.
type Style struct {
	Layers []Layer `json:"layers"`
}

// Layer is one paint rule: which MVT source layer it applies to, what
// color to paint it, and its stable draw-order index.
type Layer struct {
	ID          string `json:"id"`
	SourceLayer string `json:"source_layer,omitempty"`
	Paint       Paint  `json:"paint"`
	Index       uint32 `json:"index"`
}

// Paint holds the (currently single) paint property the core
// understands: a constant fill/stroke color.
type Paint struct {
	Color *Color `json:"color,omitempty"`
}

// Load reads and parses a style document from r.
func Load(r io.Reader) (*Style, error) {
	var raw rawStyle
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("style: decode: %w", err)
	}
	out := &Style{Layers: make([]Layer, len(raw.Layers))}
	for i, rl := range raw.Layers {
		layer := Layer{
			ID:          rl.ID,
			SourceLayer: rl.SourceLayer,
			Index:       rl.Index,
		}
		if rl.Paint.Color != "" {
			c, err := ParseColor(rl.Paint.Color)
			if err != nil {
				return nil, fmt.Errorf("style: layer %q: %w", rl.ID, err)
			}
			layer.Paint.Color = &c
		}
		out.Layers[i] = layer
	}
	return out, nil
}

// rawStyle mirrors the wire JSON shape, where paint.color is a CSS color
// string rather than the parsed Color the rest of the core consumes.
type rawStyle struct {
	Layers []rawLayer `json:"layers"`
}

type rawLayer struct {
	ID          string  `json:"id"`
	SourceLayer string  `json:"source_layer,omitempty"`
	Paint       rawPaint `json:"paint"`
	Index       uint32  `json:"index"`
}

type rawPaint struct {
	Color string `json:"color,omitempty"`
}

// LayersFor returns every style layer whose SourceLayer matches name, in
// style-document order.
func (s *Style) LayersFor(sourceLayer string) []Layer {
	var out []Layer
	for _, l := range s.Layers {
		if l.SourceLayer == sourceLayer {
			out = append(out, l)
		}
	}
	return out
}

// SourceLayerNames returns the set of distinct source_layer values the
// style references, used by the tile repository's missing-layer check
// (spec.md §4.4).
func (s *Style) SourceLayerNames() []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range s.Layers {
		if l.SourceLayer == "" || seen[l.SourceLayer] {
			continue
		}
		seen[l.SourceLayer] = true
		out = append(out, l.SourceLayer)
	}
	return out
}
