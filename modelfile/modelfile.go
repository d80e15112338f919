// Package modelfile implements the persisted model collection format.
//
// Layout: a fixed 64-byte header (magic, version, model count, shared
// dimensionality, shared window size, compression tag) followed by one
// record per model. The record section is optionally compressed as a whole;
// each record holds the model name, its centroid, a declared reference
// point count, and that many dim-length float32 vectors, little-endian.
//
// The format is a breaking-change boundary: files written by one version
// must round-trip exactly, and unrecognized version tags fail loudly
// instead of being guessed at.
package modelfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Write serializes a snapshot to w using the given record compression.
func Write(w io.Writer, s *Snapshot, compression Compression) error {
	if !compression.valid() {
		return fmt.Errorf("modelfile: unknown compression tag %d", compression)
	}
	if len(s.Models) > maxModels {
		return fmt.Errorf("modelfile: model count %d exceeds limit", len(s.Models))
	}

	header := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		ModelCount:  uint32(len(s.Models)),
		Dimension:   uint32(s.Dimension),
		WindowSize:  uint32(s.WindowSize),
		Compression: uint8(compression),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return err
	}

	body, closeBody, err := compressingWriter(w, compression)
	if err != nil {
		return err
	}

	bw := newBinaryWriter(body)
	for _, m := range s.Models {
		if err := writeRecord(bw, s.Dimension, &m); err != nil {
			return err
		}
	}
	return closeBody()
}

func writeRecord(bw *binaryWriter, dim int, m *ModelRecord) error {
	name := []byte(m.Name)
	if len(name) > int(^uint16(0)) {
		return fmt.Errorf("modelfile: model name %q too long", m.Name)
	}
	if err := bw.writeUint16(uint16(len(name))); err != nil {
		return err
	}
	if err := bw.writeBytes(name); err != nil {
		return err
	}
	if err := bw.writeUint64(uint64(len(m.Points))); err != nil {
		return err
	}
	if len(m.Centroid) != dim {
		return fmt.Errorf("modelfile: model %q: centroid length %d, want %d", m.Name, len(m.Centroid), dim)
	}
	if err := bw.writeFloat32Slice(m.Centroid); err != nil {
		return err
	}
	for _, p := range m.Points {
		if len(p) != dim {
			return fmt.Errorf("modelfile: model %q: point length %d, want %d", m.Name, len(p), dim)
		}
		if err := bw.writeFloat32Slice(p); err != nil {
			return err
		}
	}
	return nil
}

// Read deserializes a snapshot from r. A declared count that does not match
// the data actually present yields ErrCorrupt; an unrecognized version tag
// yields ErrUnsupportedVersion.
func Read(r io.Reader) (*Snapshot, error) {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: short header: %w", ErrCorrupt, err)
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrCorrupt, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: 0x%08x", ErrUnsupportedVersion, header.Version)
	}
	compression := Compression(header.Compression)
	if !compression.valid() {
		return nil, fmt.Errorf("%w: unknown compression tag %d", ErrCorrupt, header.Compression)
	}
	if header.ModelCount > maxModels {
		return nil, fmt.Errorf("%w: model count %d exceeds limit", ErrCorrupt, header.ModelCount)
	}
	if header.ModelCount > 0 && (header.Dimension == 0 || header.Dimension > maxDim) {
		return nil, fmt.Errorf("%w: invalid dimension %d", ErrCorrupt, header.Dimension)
	}

	body, closeBody, err := decompressingReader(r, compression)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer closeBody()

	s := &Snapshot{
		Dimension:  int(header.Dimension),
		WindowSize: int(header.WindowSize),
		Models:     make([]ModelRecord, 0, header.ModelCount),
	}

	br := newBinaryReader(body)
	for i := uint32(0); i < header.ModelCount; i++ {
		rec, err := readRecord(br, s.Dimension)
		if err != nil {
			return nil, fmt.Errorf("%w: model record %d: %w", ErrCorrupt, i, err)
		}
		s.Models = append(s.Models, *rec)
	}

	// The declared model count must account for the entire body; a header
	// that understates the data present is as corrupt as one overstating it.
	var trailer [1]byte
	switch _, err := io.ReadFull(body, trailer[:]); err {
	case io.EOF:
	case nil:
		return nil, fmt.Errorf("%w: trailing data after %d model records", ErrCorrupt, header.ModelCount)
	default:
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return s, nil
}

func readRecord(br *binaryReader, dim int) (*ModelRecord, error) {
	nameLen, err := br.readUint16()
	if err != nil {
		return nil, err
	}
	name, err := br.readBytes(int(nameLen))
	if err != nil {
		return nil, err
	}
	count, err := br.readUint64()
	if err != nil {
		return nil, err
	}
	if count > maxPoints {
		return nil, fmt.Errorf("point count %d exceeds limit", count)
	}

	centroid := make([]float32, dim)
	if err := br.readFloat32SliceInto(centroid); err != nil {
		return nil, fmt.Errorf("centroid: %w", err)
	}

	// One backing array keeps the points contiguous.
	backing := make([]float32, int(count)*dim)
	points := make([][]float32, count)
	for i := range points {
		vec := backing[i*dim : (i+1)*dim]
		if err := br.readFloat32SliceInto(vec); err != nil {
			return nil, fmt.Errorf("point %d of %d: %w", i, count, err)
		}
		points[i] = vec
	}

	return &ModelRecord{
		Name:     string(name),
		Centroid: centroid,
		Points:   points,
	}, nil
}

// Save writes a snapshot to path atomically: the data goes to a temp file
// in the same directory which is renamed over the target on success.
func Save(path string, s *Snapshot, compression Compression) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	_ = tmp.Chmod(0644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := Write(buf, s, compression); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = "" // prevent deferred cleanup from removing the final file
	return nil
}

// Load reads a snapshot from path.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	defer f.Close()

	s, err := Read(bufio.NewReaderSize(f, 256*1024))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// compressingWriter wraps w per the compression tag. The returned close
// function flushes the compressor; it does not close w.
func compressingWriter(w io.Writer, compression Compression) (io.Writer, func() error, error) {
	switch compression {
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, err
		}
		return zw, zw.Close, nil
	case CompressionLZ4:
		lw := lz4.NewWriter(w)
		return lw, lw.Close, nil
	default:
		return w, func() error { return nil }, nil
	}
}

func decompressingReader(r io.Reader, compression Compression) (io.Reader, func(), error) {
	switch compression {
	case CompressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	default:
		return r, func() {}, nil
	}
}
