package waymo

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// TFRecord framing: uint64 length, masked crc of the length bytes, payload,
// masked crc of the payload. All integers little-endian.
const (
	recordHeaderSize = 12
	recordFooterSize = 4
	crcMaskDelta     = 0xa282ead8
	maxRecordLength  = 1 << 30
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ErrCorruptRecord is returned when a record's length or payload checksum
// does not match.
var ErrCorruptRecord = errors.New("corrupt tfrecord")

func maskedCRC(b []byte) uint32 {
	c := crc32.Checksum(b, castagnoli)
	return ((c >> 15) | (c << 17)) + crcMaskDelta
}

// Reader iterates over the records of a TFRecord stream.
type Reader struct {
	r      *bufio.Reader
	header [recordHeaderSize]byte
	footer [recordFooterSize]byte
	count  int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 1<<20)}
}

// Next returns the next record payload. It returns io.EOF at a clean end of
// stream and io.ErrUnexpectedEOF when the stream stops inside a record.
func (r *Reader) Next() ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("record %d header: %w", r.count, io.ErrUnexpectedEOF)
	}

	length := binary.LittleEndian.Uint64(r.header[:8])
	if got, want := maskedCRC(r.header[:8]), binary.LittleEndian.Uint32(r.header[8:]); got != want {
		return nil, fmt.Errorf("%w: record %d length crc %08x != %08x", ErrCorruptRecord, r.count, got, want)
	}
	if length > maxRecordLength {
		return nil, fmt.Errorf("%w: record %d length %d exceeds limit", ErrCorruptRecord, r.count, length)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, fmt.Errorf("record %d payload: %w", r.count, io.ErrUnexpectedEOF)
	}
	if _, err := io.ReadFull(r.r, r.footer[:]); err != nil {
		return nil, fmt.Errorf("record %d footer: %w", r.count, io.ErrUnexpectedEOF)
	}
	if got, want := maskedCRC(data), binary.LittleEndian.Uint32(r.footer[:]); got != want {
		return nil, fmt.Errorf("%w: record %d data crc %08x != %08x", ErrCorruptRecord, r.count, got, want)
	}

	r.count++
	return data, nil
}

// Count returns the number of records read so far.
func (r *Reader) Count() int {
	return r.count
}

// Writer appends records to a TFRecord stream.
type Writer struct {
	w     io.Writer
	count int
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write appends one record.
func (w *Writer) Write(record []byte) error {
	var header [recordHeaderSize]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(record)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))

	var footer [recordFooterSize]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(record))

	for _, b := range [][]byte{header[:], record, footer[:]} {
		if _, err := w.w.Write(b); err != nil {
			return fmt.Errorf("write record %d: %w", w.count, err)
		}
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}
