package style

import (
	"strings"
	"testing"
)

const sampleStyle = `{
  "layers": [
    {"id": "roads", "source_layer": "transportation", "paint": {"color": "#000000"}, "index": 0},
    {"id": "water", "source_layer": "water", "paint": {"color": "rgba(0,0,255,0.8)"}, "index": 1},
    {"id": "labels", "source_layer": "transportation", "paint": {}, "index": 2}
  ]
}`

func TestLoad(t *testing.T) {
	s, err := Load(strings.NewReader(sampleStyle))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Layers) != 3 {
		t.Fatalf("got %d layers, want 3", len(s.Layers))
	}
	if s.Layers[0].Paint.Color == nil {
		t.Fatal("expected roads layer to have a parsed color")
	}
	if s.Layers[2].Paint.Color != nil {
		t.Error("expected labels layer to have no color")
	}
}

func TestLayersFor(t *testing.T) {
	s, err := Load(strings.NewReader(sampleStyle))
	if err != nil {
		t.Fatal(err)
	}
	got := s.LayersFor("transportation")
	if len(got) != 2 {
		t.Fatalf("LayersFor(transportation) = %d layers, want 2", len(got))
	}
}

func TestSourceLayerNames(t *testing.T) {
	s, err := Load(strings.NewReader(sampleStyle))
	if err != nil {
		t.Fatal(err)
	}
	names := s.SourceLayerNames()
	if len(names) != 2 {
		t.Fatalf("got %v, want 2 distinct names", names)
	}
}

func TestLoadBadColor(t *testing.T) {
	bad := `{"layers":[{"id":"x","source_layer":"y","paint":{"color":"nope"},"index":0}]}`
	if _, err := Load(strings.NewReader(bad)); err == nil {
		t.Error("expected error for invalid color")
	}
}
