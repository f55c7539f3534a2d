package waymo

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/waymo2bag/internal/lidar"
)

// Field numbers of the messages read from a segment.
const (
	frameContext         protowire.Number = 1
	frameTimestampMicros protowire.Number = 2
	framePose            protowire.Number = 3
	frameImages          protowire.Number = 4
	frameLasers          protowire.Number = 5

	contextName               protowire.Number = 1
	contextCameraCalibrations protowire.Number = 2
	contextLaserCalibrations  protowire.Number = 3

	transformValues protowire.Number = 1

	cameraCalName      protowire.Number = 1
	cameraCalIntrinsic protowire.Number = 2
	cameraCalExtrinsic protowire.Number = 3
	cameraCalWidth     protowire.Number = 4
	cameraCalHeight    protowire.Number = 5

	laserCalName             protowire.Number = 1
	laserCalBeamInclinations protowire.Number = 2
	laserCalInclinationMin   protowire.Number = 3
	laserCalInclinationMax   protowire.Number = 4
	laserCalExtrinsic        protowire.Number = 5

	cameraImageName  protowire.Number = 1
	cameraImageImage protowire.Number = 2

	laserName    protowire.Number = 1
	laserReturn1 protowire.Number = 2
	laserReturn2 protowire.Number = 3

	rangeImageCompressed       protowire.Number = 2
	rangeImageCameraProjection protowire.Number = 3
	rangeImagePoseCompressed   protowire.Number = 4

	matrixData  protowire.Number = 1
	matrixShape protowire.Number = 2
	shapeDims   protowire.Number = 1
)

// skipField tells walkFields to consume the current field as unknown.
const skipField = 0

// fieldHandler consumes the value of one field from b and reports how many
// bytes it used, or skipField to leave it to the generic skipper.
type fieldHandler func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walkFields(b []byte, handle fieldHandler) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := handle(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == skipField {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func wireTypeError(want, got protowire.Type) error {
	return fmt.Errorf("wire type %d, want %d", got, want)
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, wireTypeError(protowire.BytesType, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, wireTypeError(protowire.VarintType, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeDouble(typ protowire.Type, b []byte) (float64, int, error) {
	if typ != protowire.Fixed64Type {
		return 0, 0, wireTypeError(protowire.Fixed64Type, typ)
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return math.Float64frombits(v), n, nil
}

// appendDoubles reads one element or a packed run of a repeated double.
func appendDoubles(dst []float64, typ protowire.Type, b []byte) ([]float64, int, error) {
	switch typ {
	case protowire.Fixed64Type:
		v, n, err := consumeDouble(typ, b)
		return append(dst, v), n, err
	case protowire.BytesType:
		packed, n, err := consumeBytes(typ, b)
		if err != nil {
			return dst, 0, err
		}
		if len(packed)%8 != 0 {
			return dst, 0, fmt.Errorf("packed double run of %d bytes", len(packed))
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed64(packed)
			dst = append(dst, math.Float64frombits(v))
			packed = packed[m:]
		}
		return dst, n, nil
	}
	return dst, 0, wireTypeError(protowire.Fixed64Type, typ)
}

// appendFloats reads one element or a packed run of a repeated float.
func appendFloats(dst []float32, typ protowire.Type, b []byte) ([]float32, int, error) {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return dst, 0, protowire.ParseError(n)
		}
		return append(dst, math.Float32frombits(v)), n, nil
	case protowire.BytesType:
		packed, n, err := consumeBytes(typ, b)
		if err != nil {
			return dst, 0, err
		}
		if len(packed)%4 != 0 {
			return dst, 0, fmt.Errorf("packed float run of %d bytes", len(packed))
		}
		if cap(dst)-len(dst) < len(packed)/4 {
			grown := make([]float32, len(dst), len(dst)+len(packed)/4)
			copy(grown, dst)
			dst = grown
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed32(packed)
			dst = append(dst, math.Float32frombits(v))
			packed = packed[m:]
		}
		return dst, n, nil
	}
	return dst, 0, wireTypeError(protowire.Fixed32Type, typ)
}

// appendInt32s reads one element or a packed run of a repeated int32.
func appendInt32s(dst []int32, typ protowire.Type, b []byte) ([]int32, int, error) {
	switch typ {
	case protowire.VarintType:
		v, n, err := consumeVarint(typ, b)
		return append(dst, int32(v)), n, err
	case protowire.BytesType:
		packed, n, err := consumeBytes(typ, b)
		if err != nil {
			return dst, 0, err
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return dst, 0, protowire.ParseError(m)
			}
			dst = append(dst, int32(v))
			packed = packed[m:]
		}
		return dst, n, nil
	}
	return dst, 0, wireTypeError(protowire.VarintType, typ)
}

// DecodeFrame parses a serialized Frame message.
func DecodeFrame(b []byte) (*Frame, error) {
	f := &Frame{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case frameContext:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			return n, decodeContext(v, &f.Context)
		case frameTimestampMicros:
			v, n, err := consumeVarint(typ, b)
			f.TimestampMicros = int64(v)
			return n, err
		case framePose:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			f.Pose, err = decodeTransform(v)
			return n, err
		case frameImages:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			img, err := decodeCameraImage(v)
			f.Images = append(f.Images, img)
			return n, err
		case frameLasers:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			l, err := decodeLaser(v)
			f.Lasers = append(f.Lasers, l)
			return n, err
		}
		return skipField, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", lidar.ErrMalformedFrame, err)
	}
	return f, nil
}

func decodeContext(b []byte, c *Context) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case contextName:
			v, n, err := consumeBytes(typ, b)
			c.Name = string(v)
			return n, err
		case contextCameraCalibrations:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			cal, err := decodeCameraCalibration(v)
			c.CameraCalibrations = append(c.CameraCalibrations, cal)
			return n, err
		case contextLaserCalibrations:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			cal, err := decodeLaserCalibration(v)
			c.LaserCalibrations = append(c.LaserCalibrations, cal)
			return n, err
		}
		return skipField, nil
	})
}

func decodeTransform(b []byte) ([]float64, error) {
	values := make([]float64, 0, 16)
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != transformValues {
			return skipField, nil
		}
		var n int
		var err error
		values, n, err = appendDoubles(values, typ, b)
		return n, err
	})
	return values, err
}

func decodeCameraCalibration(b []byte) (CameraCalibration, error) {
	var c CameraCalibration
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var n int
		var err error
		switch num {
		case cameraCalName:
			var v uint64
			v, n, err = consumeVarint(typ, b)
			c.Name = CameraName(v)
		case cameraCalIntrinsic:
			c.Intrinsic, n, err = appendDoubles(c.Intrinsic, typ, b)
		case cameraCalExtrinsic:
			var v []byte
			if v, n, err = consumeBytes(typ, b); err == nil {
				c.Extrinsic, err = decodeTransform(v)
			}
		case cameraCalWidth:
			var v uint64
			v, n, err = consumeVarint(typ, b)
			c.Width = int32(v)
		case cameraCalHeight:
			var v uint64
			v, n, err = consumeVarint(typ, b)
			c.Height = int32(v)
		default:
			return skipField, nil
		}
		return n, err
	})
	return c, err
}

func decodeLaserCalibration(b []byte) (LaserCalibration, error) {
	var c LaserCalibration
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var n int
		var err error
		switch num {
		case laserCalName:
			var v uint64
			v, n, err = consumeVarint(typ, b)
			c.Name = lidar.LaserName(v)
		case laserCalBeamInclinations:
			c.BeamInclinations, n, err = appendDoubles(c.BeamInclinations, typ, b)
		case laserCalInclinationMin:
			c.BeamInclinationMin, n, err = consumeDouble(typ, b)
		case laserCalInclinationMax:
			c.BeamInclinationMax, n, err = consumeDouble(typ, b)
		case laserCalExtrinsic:
			var v []byte
			if v, n, err = consumeBytes(typ, b); err == nil {
				c.Extrinsic, err = decodeTransform(v)
			}
		default:
			return skipField, nil
		}
		return n, err
	})
	return c, err
}

func decodeCameraImage(b []byte) (CameraImage, error) {
	var img CameraImage
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case cameraImageName:
			v, n, err := consumeVarint(typ, b)
			img.Name = CameraName(v)
			return n, err
		case cameraImageImage:
			v, n, err := consumeBytes(typ, b)
			img.Image = v
			return n, err
		}
		return skipField, nil
	})
	return img, err
}

func decodeLaser(b []byte) (Laser, error) {
	var l Laser
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case laserName:
			v, n, err := consumeVarint(typ, b)
			l.Name = lidar.LaserName(v)
			return n, err
		case laserReturn1, laserReturn2:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			ri, err := decodeRangeImage(v)
			if num == laserReturn1 {
				l.Return1 = ri
			} else {
				l.Return2 = ri
			}
			return n, err
		}
		return skipField, nil
	})
	return l, err
}

func decodeRangeImage(b []byte) (*RangeImage, error) {
	ri := &RangeImage{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var dst *[]byte
		switch num {
		case rangeImageCompressed:
			dst = &ri.RangeImageCompressed
		case rangeImageCameraProjection:
			dst = &ri.CameraProjectionCompressed
		case rangeImagePoseCompressed:
			dst = &ri.RangeImagePoseCompressed
		default:
			return skipField, nil
		}
		v, n, err := consumeBytes(typ, b)
		*dst = v
		return n, err
	})
	return ri, err
}

// DecodeMatrixFloat parses a serialized (uncompressed) MatrixFloat.
func DecodeMatrixFloat(b []byte) (*MatrixFloat, error) {
	m := &MatrixFloat{}
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case matrixData:
			var n int
			var err error
			m.Data, n, err = appendFloats(m.Data, typ, b)
			return n, err
		case matrixShape:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			return n, walkFields(v, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				if num != shapeDims {
					return skipField, nil
				}
				var n int
				var err error
				m.Dims, n, err = appendInt32s(m.Dims, typ, b)
				return n, err
			})
		}
		return skipField, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode matrix: %w", err)
	}
	return m, nil
}
