package modelfile

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies trajgo model files (ASCII: "TRJ0").
	MagicNumber = 0x54524A30
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// maxModels and maxPoints are sanity caps applied while decoding, so a
	// corrupt header cannot drive huge allocations.
	maxModels = 1 << 16
	maxPoints = 100_000_000
	maxDim    = 1 << 16
)

var (
	// ErrCorrupt is returned when a model file's content does not match
	// what its header or record counts declare.
	ErrCorrupt = errors.New("corrupt model file")

	// ErrUnsupportedVersion is returned when the format version tag is
	// unrecognized.
	ErrUnsupportedVersion = errors.New("unsupported model file version")
)

// Compression selects how the record section of a model file is encoded.
// The header itself is always stored uncompressed.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

func (c Compression) valid() bool {
	return c <= CompressionLZ4
}

// FileHeader is the 64-byte uncompressed header at the start of every
// model file.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	ModelCount  uint32
	Dimension   uint32
	WindowSize  uint32
	Compression uint8
	Padding     [3]byte
	Reserved    [40]byte
}

// Snapshot is the serialized form of a model collection: shared metadata
// plus one record per model, in ordinal order.
type Snapshot struct {
	Dimension  int
	WindowSize int
	Models     []ModelRecord
}

// ModelRecord is one persisted model: its name, its centroid, and its
// reference points.
type ModelRecord struct {
	Name     string
	Centroid []float32
	Points   [][]float32
}
