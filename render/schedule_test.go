package render

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	orbmaptile "github.com/paulmach/orb/maptile"

	"github.com/gogpu/maptile/apc"
	"github.com/gogpu/maptile/bufferpool"
	"github.com/gogpu/maptile/coords"
	"github.com/gogpu/maptile/repository"
	"github.com/gogpu/maptile/style"
)

// inlineSchedule runs a task synchronously, standing in for a real
// scheduler.Pool so these tests don't need package scheduler.
func inlineSchedule(task func(ctx context.Context)) error {
	task(context.Background())
	return nil
}

type fakeView struct {
	zoom  float64
	tiles []coords.WorldTileCoords
}

func (v fakeView) Zoom() float64                          { return v.zoom }
func (v fakeView) VisibleTiles() []coords.WorldTileCoords { return v.tiles }

// encodedTile builds a real one-layer, one-point MVT tile, the same way
// package mvtsource's own roundTripTile test fixture does.
func encodedTile(t *testing.T, layerName string) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{-73.99, 40.73}))
	layers, err := mvt.NewLayers(map[string]*geojson.FeatureCollection{layerName: fc})
	if err != nil {
		t.Fatalf("mvt.NewLayers: %v", err)
	}
	layers.ProjectToTile(orbmaptile.New(0, 0, 1))
	data, err := mvt.Marshal(layers)
	if err != nil {
		t.Fatalf("mvt.Marshal: %v", err)
	}
	return data
}

type fakeClient struct {
	data []byte
	err  error
}

func (c fakeClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	return c.data, c.err
}

func testStyle() *style.Style {
	color, _ := style.ParseColor("#ff0000")
	return &style.Style{Layers: []style.Layer{
		{ID: "water-fill", SourceLayer: "water", Paint: style.Paint{Color: &color}, Index: 1},
	}}
}

func TestPhaseSortOrdersByStyleIndex(t *testing.T) {
	s := &Schedule{layerItems: []layerItem{
		{styleIndex: 3},
		{styleIndex: 1},
		{styleIndex: 2},
	}}
	s.phaseSort()
	for i, want := range []uint32{1, 2, 3} {
		if s.layerItems[i].styleIndex != want {
			t.Errorf("position %d: got styleIndex %d, want %d", i, s.layerItems[i].styleIndex, want)
		}
	}
}

func TestExtractFetchesMissingVisibleTile(t *testing.T) {
	sty := testStyle()
	repo := repository.New()
	client := fakeClient{data: encodedTile(t, "water")}
	channel := apc.NewChannel(inlineSchedule, client, 0)

	view := fakeView{zoom: 1, tiles: []coords.WorldTileCoords{{X: 0, Y: 0, Z: 1}}}
	s := New(nil, nil, 0, channel, repo, sty, view, func(c coords.TileCoords) string {
		return "https://example/tile.pbf"
	}, bufferpool.DefaultCapacities())

	// inlineSchedule runs FetchAndTessellate synchronously inside
	// extract's apc.Call, so by the time extract returns the channel
	// already holds this tile's results; extract drains the channel
	// before issuing requests, so the second call folds them into repo.
	s.extract(context.Background())
	s.extract(context.Background())

	status, _ := repo.Status(coords.TileCoords{X: 0, Y: 0, Z: 1})
	if status != repository.StatusSuccess {
		t.Fatalf("got status %v, want StatusSuccess", status)
	}
	if repo.IsLayersMissing(coords.TileCoords{X: 0, Y: 0, Z: 1}, sty.SourceLayerNames()) {
		t.Error("expected water layer to be resolved after extract")
	}
}

func TestExtractMarksTileFailedWhenAllLayersUnavailable(t *testing.T) {
	sty := testStyle()
	repo := repository.New()
	client := fakeClient{data: nil, err: errFetch{}}
	channel := apc.NewChannel(inlineSchedule, client, 0)

	view := fakeView{zoom: 1, tiles: []coords.WorldTileCoords{{X: 0, Y: 0, Z: 1}}}
	s := New(nil, nil, 0, channel, repo, sty, view, func(c coords.TileCoords) string {
		return "https://example/tile.pbf"
	}, bufferpool.DefaultCapacities())

	// First call issues the fetch; the second drains its Unavailable
	// results and marks the tile failed.
	s.extract(context.Background())
	s.extract(context.Background())

	status, retry := repo.Status(coords.TileCoords{X: 0, Y: 0, Z: 1})
	if status != repository.StatusFailed {
		t.Fatalf("got status %v, want StatusFailed", status)
	}
	if retry != 1 {
		t.Errorf("got retry %d, want 1", retry)
	}
}

type errFetch struct{}

func (errFetch) Error() string { return "network unreachable" }
