package apc

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gogpu/maptile/coords"
	"github.com/gogpu/maptile/tessellate"
)

// Wire tags, one per Transferables variant (spec.md §4.3: "a
// length-prefixed, tagged byte blob ... the tag set is fixed and
// closed"). Used only on platforms without shared memory (e.g. a
// browser worker boundary); on shared-memory platforms messages are
// passed as Go values directly through Channel, never through Marshal.
const (
	tagTileTessellated byte = iota + 1
	tagLayerTessellated
	tagLayerUnavailable
	tagLayerIndexed
)

// Marshal encodes msg into the wire format: a one-byte tag followed by a
// variant-specific, length-prefixed binary body. There is no third-party
// binary codec anywhere in the dependency set this core draws from (MVT
// decoding is the only protobuf use, and it is fully owned by
// paulmach/orb); encoding/binary is used here as the ambient choice, not
// as a gap.
func Marshal(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	switch m := msg.(type) {
	case TileTessellated:
		buf.WriteByte(tagTileTessellated)
		writeCoords(&buf, m.Coords)
	case LayerTessellated:
		buf.WriteByte(tagLayerTessellated)
		writeCoords(&buf, m.Coords)
		writeString(&buf, m.SourceLayer)
		writeBuffer(&buf, m.Buffer)
		writeUint32Slice(&buf, m.FeatureIndices)
	case LayerUnavailable:
		buf.WriteByte(tagLayerUnavailable)
		writeCoords(&buf, m.Coords)
		writeString(&buf, m.SourceLayer)
		writeString(&buf, m.Reason)
	case LayerIndexed:
		buf.WriteByte(tagLayerIndexed)
		writeCoords(&buf, m.Coords)
		writeString(&buf, m.SourceLayer)
		// The spatial index (package geomindex) is not part of the wire
		// payload spec.md §4.3 defines for this message — only tile
		// coords, layer name, vertex/index bytes, feature indices, and
		// usable_indices are specified. A non-shared-memory receiver
		// therefore gets Index == nil and must rebuild it locally if
		// hit-testing is needed on that platform.
	default:
		return nil, fmt.Errorf("apc: marshal: unknown message type %T", msg)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a message previously produced by Marshal.
func Unmarshal(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("apc: unmarshal: empty buffer")
	}
	r := bytes.NewReader(data)
	tag, _ := r.ReadByte()

	switch tag {
	case tagTileTessellated:
		c, err := readCoords(r)
		if err != nil {
			return nil, err
		}
		return TileTessellated{Coords: c}, nil

	case tagLayerTessellated:
		c, err := readCoords(r)
		if err != nil {
			return nil, err
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		buf, err := readBuffer(r)
		if err != nil {
			return nil, err
		}
		indices, err := readUint32Slice(r)
		if err != nil {
			return nil, err
		}
		return LayerTessellated{Coords: c, SourceLayer: name, Buffer: buf, FeatureIndices: indices}, nil

	case tagLayerUnavailable:
		c, err := readCoords(r)
		if err != nil {
			return nil, err
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		reason, err := readString(r)
		if err != nil {
			return nil, err
		}
		return LayerUnavailable{Coords: c, SourceLayer: name, Reason: reason}, nil

	case tagLayerIndexed:
		c, err := readCoords(r)
		if err != nil {
			return nil, err
		}
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		return LayerIndexed{Coords: c, SourceLayer: name}, nil

	default:
		return nil, fmt.Errorf("apc: unmarshal: unknown tag %d", tag)
	}
}

func writeCoords(buf *bytes.Buffer, c coords.TileCoords) {
	binary.Write(buf, binary.LittleEndian, c.X)
	binary.Write(buf, binary.LittleEndian, c.Y)
	buf.WriteByte(c.Z)
}

func readCoords(r *bytes.Reader) (coords.TileCoords, error) {
	var c coords.TileCoords
	if err := binary.Read(r, binary.LittleEndian, &c.X); err != nil {
		return c, err
	}
	if err := binary.Read(r, binary.LittleEndian, &c.Y); err != nil {
		return c, err
	}
	z, err := r.ReadByte()
	if err != nil {
		return c, err
	}
	c.Z = z
	return c, nil
}

func writeString(buf *bytes.Buffer, s string) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil && n > 0 {
		return "", err
	}
	return string(b), nil
}

func writeUint32Slice(buf *bytes.Buffer, s []uint32) {
	binary.Write(buf, binary.LittleEndian, uint32(len(s)))
	for _, v := range s {
		binary.Write(buf, binary.LittleEndian, v)
	}
}

func readUint32Slice(r *bytes.Reader) ([]uint32, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		if err := binary.Read(r, binary.LittleEndian, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// writeBuffer serializes a tessellate.Buffer as: vertex count, vertex
// bytes (position+normal, 4 float32s each), index count, index bytes,
// usable_indices — matching spec.md §4.3's wire description exactly.
func writeBuffer(buf *bytes.Buffer, b tessellate.Buffer) {
	binary.Write(buf, binary.LittleEndian, uint32(len(b.Vertices)))
	for _, v := range b.Vertices {
		binary.Write(buf, binary.LittleEndian, v.Position)
		binary.Write(buf, binary.LittleEndian, v.Normal)
	}
	binary.Write(buf, binary.LittleEndian, uint32(len(b.Indices)))
	for _, idx := range b.Indices {
		binary.Write(buf, binary.LittleEndian, idx)
	}
	binary.Write(buf, binary.LittleEndian, b.UsableIndices)
}

func readBuffer(r *bytes.Reader) (tessellate.Buffer, error) {
	var vn uint32
	if err := binary.Read(r, binary.LittleEndian, &vn); err != nil {
		return tessellate.Buffer{}, err
	}
	vertices := make([]tessellate.Vertex, vn)
	for i := range vertices {
		if err := binary.Read(r, binary.LittleEndian, &vertices[i].Position); err != nil {
			return tessellate.Buffer{}, err
		}
		if err := binary.Read(r, binary.LittleEndian, &vertices[i].Normal); err != nil {
			return tessellate.Buffer{}, err
		}
	}

	var in uint32
	if err := binary.Read(r, binary.LittleEndian, &in); err != nil {
		return tessellate.Buffer{}, err
	}
	indices := make([]uint32, in)
	for i := range indices {
		if err := binary.Read(r, binary.LittleEndian, &indices[i]); err != nil {
			return tessellate.Buffer{}, err
		}
	}

	var usable uint32
	if err := binary.Read(r, binary.LittleEndian, &usable); err != nil {
		return tessellate.Buffer{}, err
	}

	return tessellate.Buffer{Vertices: vertices, Indices: indices, UsableIndices: usable}, nil
}
