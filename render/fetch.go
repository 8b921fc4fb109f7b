package render

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/gogpu/maptile/apc"
	"github.com/gogpu/maptile/coords"
	"github.com/gogpu/maptile/geomindex"
	"github.com/gogpu/maptile/mvtsource"
	"github.com/gogpu/maptile/tessellate"
)

// FetchInput is what the request dispatcher (Extract) hands to a
// scheduled FetchAndTessellate call: the tile to fetch and the set of
// source layers the current style actually needs (spec.md §4.4).
type FetchInput struct {
	Coords       coords.TileCoords
	URL          string
	SourceLayers []string
}

// FetchAndTessellate is the APC procedure the scheduler runs off the
// main thread: fetch the tile's bytes, decode its MVT layers, tessellate
// each requested layer, and report results back through apcCtx.Send.
//
// A network or decode failure is reported as LayerUnavailable for every
// requested layer rather than as a distinct failure message, since
// spec.md §4.3 fixes the Transferables tag set to four variants with no
// "tile failed" member. Extract (package render) marks a tile failed
// whenever every requested layer comes back Unavailable, whatever the
// reason, and requests a failed tile again on later frames until the
// repository's retry limit is reached.
func FetchAndTessellate(ctx context.Context, input FetchInput, apcCtx apc.Context) {
	data, err := apcCtx.SourceClient().Fetch(ctx, input.URL)
	if err != nil {
		failAll(apcCtx, input, fmt.Sprintf("fetch: %v", err))
		return
	}

	layers, err := mvtsource.Decode(data)
	if err != nil {
		failAll(apcCtx, input, fmt.Sprintf("decode: %v", err))
		return
	}

	for _, name := range input.SourceLayers {
		layer, ok := mvtsource.LayerNamed(layers, name)
		if !ok {
			_ = apcCtx.Send(apc.LayerUnavailable{Coords: input.Coords, SourceLayer: name, Reason: "layer absent from tile"})
			continue
		}

		buf, featureIndices, err := tessellate.Tessellate(layer)
		if err != nil {
			_ = apcCtx.Send(apc.LayerUnavailable{Coords: input.Coords, SourceLayer: name, Reason: fmt.Sprintf("tessellate: %v", err)})
			continue
		}

		idx := geomindex.Build(geometriesOf(layer))

		_ = apcCtx.Send(apc.LayerTessellated{
			Coords:         input.Coords,
			SourceLayer:    name,
			Buffer:         buf,
			FeatureIndices: featureIndices,
			Index:          idx,
		})
		_ = apcCtx.Send(apc.LayerIndexed{Coords: input.Coords, SourceLayer: name, Index: idx})
	}

	_ = apcCtx.Send(apc.TileTessellated{Coords: input.Coords})
}

func failAll(apcCtx apc.Context, input FetchInput, reason string) {
	for _, name := range input.SourceLayers {
		_ = apcCtx.Send(apc.LayerUnavailable{Coords: input.Coords, SourceLayer: name, Reason: reason})
	}
	_ = apcCtx.Send(apc.TileTessellated{Coords: input.Coords})
}

// geometriesOf extracts one layer's per-feature geometries in feature
// order, the shape geomindex.Build expects.
func geometriesOf(layer mvtsource.TileLayer) []orb.Geometry {
	out := make([]orb.Geometry, len(layer.Features))
	for i, f := range layer.Features {
		out[i] = f.Geometry
	}
	return out
}
