package modelfile

import (
	"encoding/binary"
	"io"
	"unsafe"
)

// binaryWriter writes the raw record encoding: little-endian scalars and
// float32 slices written as raw bytes.
type binaryWriter struct {
	w io.Writer
}

func newBinaryWriter(w io.Writer) *binaryWriter {
	return &binaryWriter{w: w}
}

func (bw *binaryWriter) writeUint16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := bw.w.Write(buf[:])
	return err
}

func (bw *binaryWriter) writeUint64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := bw.w.Write(buf[:])
	return err
}

func (bw *binaryWriter) writeBytes(b []byte) error {
	_, err := bw.w.Write(b)
	return err
}

// writeFloat32Slice writes a float32 slice as raw bytes (no allocation).
func (bw *binaryWriter) writeFloat32Slice(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
	_, err := bw.w.Write(byteSlice)
	return err
}

// binaryReader reads the raw record encoding.
type binaryReader struct {
	r io.Reader
}

func newBinaryReader(r io.Reader) *binaryReader {
	return &binaryReader{r: r}
}

func (br *binaryReader) readUint16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(br.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (br *binaryReader) readUint64() (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(br.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (br *binaryReader) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// readFloat32SliceInto reads raw bytes into the provided float32 buffer.
func (br *binaryReader) readFloat32SliceInto(vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	byteSlice := unsafe.Slice((*byte)(unsafe.Pointer(&vec[0])), len(vec)*4)
	_, err := io.ReadFull(br.r, byteSlice)
	return err
}
