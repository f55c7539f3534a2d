package waymo

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/waymo2bag/internal/lidar"
)

func sampleFrame() *Frame {
	ident := lidar.IdentityTransform()
	return &Frame{
		Context: Context{
			Name: "segment-123",
			CameraCalibrations: []CameraCalibration{{
				Name:      CameraFront,
				Intrinsic: []float64{2000, 2000, 960, 640, -0.3, 0.1, 0, 0, 0},
				Extrinsic: ident[:],
				Width:     1920,
				Height:    1280,
			}},
			LaserCalibrations: []LaserCalibration{{
				Name:               lidar.LaserTop,
				BeamInclinations:   []float64{-0.3, -0.1, 0.02},
				BeamInclinationMin: -0.3,
				BeamInclinationMax: 0.02,
				Extrinsic:          ident[:],
			}},
		},
		TimestampMicros: 1_557_855_900_123_456,
		Pose:            ident[:],
		Images:          []CameraImage{{Name: CameraFront, Image: []byte{0xff, 0xd8, 0xff}}},
		Lasers: []Laser{{
			Name:    lidar.LaserTop,
			Return1: &RangeImage{RangeImageCompressed: []byte{1, 2, 3}, RangeImagePoseCompressed: []byte{4}},
			Return2: &RangeImage{RangeImageCompressed: []byte{5, 6}},
		}},
	}
}

func TestDecodeFrame_RoundTrip(t *testing.T) {
	want := sampleFrame()
	got, err := DecodeFrame(AppendFrame(nil, want))
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeFrame_SkipsUnknownFields(t *testing.T) {
	b := AppendFrame(nil, sampleFrame())
	// Frame.no_label_zone_objects-style extras: an unknown message, varint
	// and fixed32 field.
	b = protowire.AppendTag(b, 9, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("ignored"))
	b = protowire.AppendTag(b, 12, protowire.VarintType)
	b = protowire.AppendVarint(b, 77)
	b = protowire.AppendTag(b, 13, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 1)

	got, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if got.TimestampMicros != sampleFrame().TimestampMicros {
		t.Errorf("timestamp = %d", got.TimestampMicros)
	}
}

func TestDecodeFrame_PackedTransform(t *testing.T) {
	var packed []byte
	for i := 0; i < 16; i++ {
		packed = protowire.AppendFixed64(packed, math.Float64bits(float64(i)))
	}
	var transform []byte
	transform = protowire.AppendTag(transform, transformValues, protowire.BytesType)
	transform = protowire.AppendBytes(transform, packed)

	var b []byte
	b = protowire.AppendTag(b, framePose, protowire.BytesType)
	b = protowire.AppendBytes(b, transform)

	f, err := DecodeFrame(b)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if len(f.Pose) != 16 || f.Pose[15] != 15 {
		t.Fatalf("packed pose decoded as %v", f.Pose)
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	b := AppendFrame(nil, sampleFrame())

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", b[:len(b)-2]},
		{"wrong wire type for timestamp", protowire.AppendFixed32(protowire.AppendTag(nil, frameTimestampMicros, protowire.Fixed32Type), 5)},
		{"bad tag", []byte{0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeFrame(tt.data); !errors.Is(err, lidar.ErrMalformedFrame) {
				t.Errorf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}
}

func TestMatrix_CompressRoundTrip(t *testing.T) {
	ri := lidar.NewRangeImage(3, 5)
	ri.SetPixel(2, 4, 12.5, 0.25, 0.1, -1)
	ri.SetPixel(0, 0, 3, 7, 0, 1)

	blob, err := CompressMatrix(MatrixFromRangeImage(ri))
	if err != nil {
		t.Fatalf("CompressMatrix failed: %v", err)
	}
	m, err := DecompressMatrix(blob)
	if err != nil {
		t.Fatalf("DecompressMatrix failed: %v", err)
	}
	got, err := m.RangeImage()
	if err != nil {
		t.Fatalf("RangeImage failed: %v", err)
	}
	if diff := cmp.Diff(ri, got); diff != "" {
		t.Errorf("range image mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrix_UnpackedDataAccepted(t *testing.T) {
	var b []byte
	for _, v := range []float32{1, 2} {
		b = protowire.AppendTag(b, matrixData, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v))
	}
	var shape []byte
	shape = protowire.AppendTag(shape, shapeDims, protowire.BytesType)
	shape = protowire.AppendBytes(shape, protowire.AppendVarint(protowire.AppendVarint(nil, 1), 2))
	b = protowire.AppendTag(b, matrixShape, protowire.BytesType)
	b = protowire.AppendBytes(b, shape)

	m, err := DecodeMatrixFloat(b)
	if err != nil {
		t.Fatalf("DecodeMatrixFloat failed: %v", err)
	}
	if diff := cmp.Diff(&MatrixFloat{Data: []float32{1, 2}, Dims: []int32{1, 2}}, m); diff != "" {
		t.Errorf("matrix mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrix_ShapeChecks(t *testing.T) {
	tests := []struct {
		name string
		m    *MatrixFloat
	}{
		{"two dims", &MatrixFloat{Data: make([]float32, 8), Dims: []int32{2, 4}}},
		{"wrong channels", &MatrixFloat{Data: make([]float32, 12), Dims: []int32{1, 4, 3}}},
		{"short data", &MatrixFloat{Data: make([]float32, 7), Dims: []int32{1, 2, 4}}},
		{"long data", &MatrixFloat{Data: make([]float32, 12), Dims: []int32{1, 2, 4}}},
		{"overflowing dims", &MatrixFloat{Data: make([]float32, 8), Dims: []int32{math.MaxInt32, math.MaxInt32, 4}}},
		{"width beyond data", &MatrixFloat{Data: make([]float32, 8), Dims: []int32{1, 1 << 20, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.m.RangeImage(); !errors.Is(err, lidar.ErrMalformedFrame) {
				t.Errorf("expected ErrMalformedFrame, got %v", err)
			}
		})
	}

	grid := &MatrixFloat{Data: make([]float32, 12), Dims: []int32{1, 2, 6}}
	if _, err := grid.PixelPoseGrid(); err != nil {
		t.Errorf("valid pose grid rejected: %v", err)
	}
	if _, err := grid.RangeImage(); err == nil {
		t.Error("pose grid accepted as range image")
	}
}

func TestDecompressMatrix_NotZlib(t *testing.T) {
	if _, err := DecompressMatrix([]byte("not zlib")); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecompressMatrix_SizeLimit(t *testing.T) {
	ri := lidar.NewRangeImage(16, 16)
	blob, err := CompressMatrix(MatrixFromRangeImage(ri))
	if err != nil {
		t.Fatalf("CompressMatrix failed: %v", err)
	}

	if _, err := decompressMatrix(blob, 64); !errors.Is(err, lidar.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame past the limit, got %v", err)
	}
	if _, err := decompressMatrix(blob, 1<<20); err != nil {
		t.Fatalf("payload under the limit rejected: %v", err)
	}
}
