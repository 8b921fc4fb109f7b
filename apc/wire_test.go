package apc

import (
	"reflect"
	"testing"

	"github.com/gogpu/maptile/coords"
	"github.com/gogpu/maptile/tessellate"
)

func TestMarshalUnmarshalTileTessellated(t *testing.T) {
	in := TileTessellated{Coords: coords.TileCoords{X: 3, Y: 7, Z: 4}}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestMarshalUnmarshalLayerTessellated(t *testing.T) {
	in := LayerTessellated{
		Coords:      coords.TileCoords{X: 1, Y: 1, Z: 2},
		SourceLayer: "roads",
		Buffer: tessellate.Buffer{
			Vertices:      []tessellate.Vertex{{Position: [2]float32{1, 2}, Normal: [2]float32{0, 1}}},
			Indices:       []uint32{0, 0, 0, 0},
			UsableIndices: 3,
		},
		FeatureIndices: []uint32{3},
	}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	got, ok := out.(LayerTessellated)
	if !ok {
		t.Fatalf("got %T, want LayerTessellated", out)
	}
	if got.SourceLayer != in.SourceLayer || got.Coords != in.Coords {
		t.Errorf("got %+v, want %+v", got, in)
	}
	if !reflect.DeepEqual(got.Buffer, in.Buffer) {
		t.Errorf("buffer got %+v, want %+v", got.Buffer, in.Buffer)
	}
	if !reflect.DeepEqual(got.FeatureIndices, in.FeatureIndices) {
		t.Errorf("feature indices got %v, want %v", got.FeatureIndices, in.FeatureIndices)
	}
}

func TestMarshalUnmarshalLayerUnavailable(t *testing.T) {
	in := LayerUnavailable{Coords: coords.TileCoords{X: 0, Y: 0, Z: 0}, SourceLayer: "water", Reason: "no geometry"}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestUnmarshalUnknownTag(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff}); err == nil {
		t.Error("expected an error for an unknown tag")
	}
}

func TestUnmarshalEmpty(t *testing.T) {
	if _, err := Unmarshal(nil); err == nil {
		t.Error("expected an error for an empty buffer")
	}
}
