package waymo

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Repeated scalars are written unpacked, as proto2 does by default, except
// MatrixFloat.data which the schema declares packed.

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendDoubleField(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendTransform(b []byte, num protowire.Number, values []float64) []byte {
	if values == nil {
		return b
	}
	var msg []byte
	for _, v := range values {
		msg = appendDoubleField(msg, transformValues, v)
	}
	return appendMessage(b, num, msg)
}

// AppendFrame appends the wire encoding of f to b.
func AppendFrame(b []byte, f *Frame) []byte {
	b = appendMessage(b, frameContext, appendContext(nil, &f.Context))
	b = appendVarintField(b, frameTimestampMicros, uint64(f.TimestampMicros))
	b = appendTransform(b, framePose, f.Pose)
	for _, img := range f.Images {
		var msg []byte
		msg = appendVarintField(msg, cameraImageName, uint64(img.Name))
		msg = appendBytesField(msg, cameraImageImage, img.Image)
		b = appendMessage(b, frameImages, msg)
	}
	for _, l := range f.Lasers {
		var msg []byte
		msg = appendVarintField(msg, laserName, uint64(l.Name))
		if l.Return1 != nil {
			msg = appendMessage(msg, laserReturn1, appendRangeImage(nil, l.Return1))
		}
		if l.Return2 != nil {
			msg = appendMessage(msg, laserReturn2, appendRangeImage(nil, l.Return2))
		}
		b = appendMessage(b, frameLasers, msg)
	}
	return b
}

func appendContext(b []byte, c *Context) []byte {
	if c.Name != "" {
		b = appendBytesField(b, contextName, []byte(c.Name))
	}
	for _, cal := range c.CameraCalibrations {
		var msg []byte
		msg = appendVarintField(msg, cameraCalName, uint64(cal.Name))
		for _, v := range cal.Intrinsic {
			msg = appendDoubleField(msg, cameraCalIntrinsic, v)
		}
		msg = appendTransform(msg, cameraCalExtrinsic, cal.Extrinsic)
		msg = appendVarintField(msg, cameraCalWidth, uint64(cal.Width))
		msg = appendVarintField(msg, cameraCalHeight, uint64(cal.Height))
		b = appendMessage(b, contextCameraCalibrations, msg)
	}
	for _, cal := range c.LaserCalibrations {
		var msg []byte
		msg = appendVarintField(msg, laserCalName, uint64(cal.Name))
		for _, v := range cal.BeamInclinations {
			msg = appendDoubleField(msg, laserCalBeamInclinations, v)
		}
		msg = appendDoubleField(msg, laserCalInclinationMin, cal.BeamInclinationMin)
		msg = appendDoubleField(msg, laserCalInclinationMax, cal.BeamInclinationMax)
		msg = appendTransform(msg, laserCalExtrinsic, cal.Extrinsic)
		b = appendMessage(b, contextLaserCalibrations, msg)
	}
	return b
}

func appendRangeImage(b []byte, ri *RangeImage) []byte {
	b = appendBytesField(b, rangeImageCompressed, ri.RangeImageCompressed)
	b = appendBytesField(b, rangeImageCameraProjection, ri.CameraProjectionCompressed)
	b = appendBytesField(b, rangeImagePoseCompressed, ri.RangeImagePoseCompressed)
	return b
}

// AppendMatrixFloat appends the wire encoding of m to b.
func AppendMatrixFloat(b []byte, m *MatrixFloat) []byte {
	if len(m.Data) > 0 {
		packed := make([]byte, 0, 4*len(m.Data))
		for _, v := range m.Data {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		b = appendMessage(b, matrixData, packed)
	}
	var shape []byte
	for _, d := range m.Dims {
		shape = appendVarintField(shape, shapeDims, uint64(d))
	}
	return appendMessage(b, matrixShape, shape)
}
