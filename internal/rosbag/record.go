package rosbag

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/banshee-data/waymo2bag/internal/rosmsg"
)

// Record opcodes.
const (
	opMessageData = 0x02
	opBagHeader   = 0x03
	opIndexData   = 0x04
	opChunk       = 0x05
	opChunkInfo   = 0x06
	opConnection  = 0x07
)

// Magic is the version line every v2.0 bag starts with.
const Magic = "#ROSBAG V2.0\n"

// bagHeaderRecordSize is the fixed on-disk size of the bag header record so
// that it can be rewritten in place on close.
const bagHeaderRecordSize = 4096

type field struct {
	name  string
	value []byte
}

func u8Field(name string, v uint8) field {
	return field{name, []byte{v}}
}

func u32Field(name string, v uint32) field {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return field{name, b}
}

func u64Field(name string, v uint64) field {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return field{name, b}
}

func timeField(name string, t rosmsg.Time) field {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], t.Sec)
	binary.LittleEndian.PutUint32(b[4:], t.NSec)
	return field{name, b}
}

func stringField(name, v string) field {
	return field{name, []byte(v)}
}

// encodeFields serializes a header: each field as int32 length then
// "name=value".
func encodeFields(fields []field) []byte {
	n := 0
	for _, f := range fields {
		n += 4 + len(f.name) + 1 + len(f.value)
	}
	out := make([]byte, 0, n)
	for _, f := range fields {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(f.name)+1+len(f.value)))
		out = append(out, f.name...)
		out = append(out, '=')
		out = append(out, f.value...)
	}
	return out
}

// writeRecord writes header length, header, data length and data, and
// returns the number of bytes written.
func writeRecord(w io.Writer, fields []field, data []byte) (int, error) {
	header := encodeFields(fields)
	var rec bytes.Buffer
	rec.Grow(8 + len(header))
	rec.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(header))))
	rec.Write(header)
	rec.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(data))))

	n, err := w.Write(rec.Bytes())
	if err != nil {
		return n, err
	}
	m, err := w.Write(data)
	return n + m, err
}

// bagHeaderRecord builds the padded bag header record.
func bagHeaderRecord(indexPos uint64, connCount, chunkCount uint32) []byte {
	header := encodeFields([]field{
		u8Field("op", opBagHeader),
		u64Field("index_pos", indexPos),
		u32Field("conn_count", connCount),
		u32Field("chunk_count", chunkCount),
	})
	padding := bagHeaderRecordSize - 4 - len(header) - 4
	out := make([]byte, 0, bagHeaderRecordSize)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(header)))
	out = append(out, header...)
	out = binary.LittleEndian.AppendUint32(out, uint32(padding))
	out = append(out, bytes.Repeat([]byte{' '}, padding)...)
	return out
}
