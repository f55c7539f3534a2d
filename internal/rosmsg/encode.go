package rosmsg

import (
	"bytes"
	"encoding/binary"
	"math"
)

func putUint8(buf *bytes.Buffer, v uint8) {
	buf.WriteByte(v)
}

func putBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putFloat64(buf *bytes.Buffer, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	buf.Write(b[:])
}

func putTime(buf *bytes.Buffer, t Time) {
	putUint32(buf, t.Sec)
	putUint32(buf, t.NSec)
}

func putString(buf *bytes.Buffer, s string) {
	putUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putUint32(buf, uint32(len(b)))
	buf.Write(b)
}

// putFloat64s writes a fixed-size array: no length prefix.
func putFloat64s(buf *bytes.Buffer, vs []float64) {
	for _, v := range vs {
		putFloat64(buf, v)
	}
}

// putFloat64Slice writes a variable-size array with its length prefix.
func putFloat64Slice(buf *bytes.Buffer, vs []float64) {
	putUint32(buf, uint32(len(vs)))
	putFloat64s(buf, vs)
}
