// Package mvtsource decodes Mapbox Vector Tile protobuf bytes into the
// flat per-layer, per-feature shape the tessellator (package tessellate)
// consumes.
//
// Decoding is delegated to github.com/paulmach/orb/encoding/mvt, which
// understands the MVT wire format (tile-local integer coordinates,
// extent 4096 per spec.md §6). Geometries are left in tile-local
// coordinates — this package deliberately does not project to
// longitude/latitude, since the tessellator and the per-tile model
// transform (coords.WorldTileCoords.TransformForZoom) both operate in
// that same tile-local space.
package mvtsource

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
)

// Feature is one decoded MVT feature: its geometry in tile-local
// coordinates and its tag/property map (unused by the core's constant-color
// paint model, but retained for callers such as a hit-test inspector).
type Feature struct {
	Geometry orb.Geometry
	Tags     map[string]interface{}
}

// TileLayer is one decoded MVT layer: a name (matched against
// StyleLayer.SourceLayer) and its features in MVT draw order.
type TileLayer struct {
	Name     string
	Extent   uint32
	Features []Feature
}

// Decode parses MVT protobuf bytes into the set of layers it contains.
// A malformed tile returns an error wrapping the underlying protobuf
// decode failure; callers should treat this as spec.md §7's KindDecode
// (terminal for the tile).
func Decode(tileBytes []byte) ([]TileLayer, error) {
	layers, err := mvt.Unmarshal(tileBytes)
	if err != nil {
		return nil, fmt.Errorf("mvtsource: decode: %w", err)
	}

	out := make([]TileLayer, 0, len(layers))
	for _, l := range layers {
		tl := TileLayer{
			Name:     l.Name,
			Extent:   l.Extent,
			Features: make([]Feature, 0, len(l.Features)),
		}
		for _, f := range l.Features {
			if f.Geometry == nil {
				continue
			}
			tl.Features = append(tl.Features, Feature{
				Geometry: f.Geometry,
				Tags:     map[string]interface{}(f.Properties),
			})
		}
		out = append(out, tl)
	}
	return out, nil
}

// LayerNamed returns the first layer in layers whose Name matches, or
// (TileLayer{}, false) if none does.
func LayerNamed(layers []TileLayer, name string) (TileLayer, bool) {
	for _, l := range layers {
		if l.Name == name {
			return l, true
		}
	}
	return TileLayer{}, false
}
