package waymo

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/banshee-data/waymo2bag/internal/lidar"
)

// MaxMatrixBytes caps the inflated size of one MatrixFloat payload. The
// largest real payload, a 64x2650x6 pose grid, is about 4 MiB.
const MaxMatrixBytes = 256 << 20

// DecompressMatrix inflates a zlib-compressed MatrixFloat payload.
func DecompressMatrix(b []byte) (*MatrixFloat, error) {
	return decompressMatrix(b, MaxMatrixBytes)
}

func decompressMatrix(b []byte, limit int64) (*MatrixFloat, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("open zlib stream: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, limit+1))
	if err != nil {
		return nil, fmt.Errorf("inflate matrix: %w", err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: matrix inflates past %d bytes", lidar.ErrMalformedFrame, limit)
	}
	return DecodeMatrixFloat(raw)
}

// CompressMatrix serializes m and deflates it with zlib.
func CompressMatrix(m *MatrixFloat) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(AppendMatrixFloat(nil, m)); err != nil {
		return nil, fmt.Errorf("deflate matrix: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate matrix: %w", err)
	}
	return buf.Bytes(), nil
}

// shape3 checks that m is H×W×channels and returns H and W.
func (m *MatrixFloat) shape3(channels int) (int, int, error) {
	if len(m.Dims) != 3 || int(m.Dims[2]) != channels || m.Dims[0] <= 0 || m.Dims[1] <= 0 {
		return 0, 0, fmt.Errorf("%w: matrix shape %v, want [H W %d]", lidar.ErrMalformedFrame, m.Dims, channels)
	}
	h, w := int(m.Dims[0]), int(m.Dims[1])
	// Dividing first keeps h*w*channels from overflowing.
	if w > len(m.Data) || h > len(m.Data)/w/channels || len(m.Data) != h*w*channels {
		return 0, 0, fmt.Errorf("%w: matrix shape %v does not match %d values",
			lidar.ErrMalformedFrame, m.Dims, len(m.Data))
	}
	return h, w, nil
}

// RangeImage views m as a 4-channel range image. Data is shared.
func (m *MatrixFloat) RangeImage() (*lidar.RangeImage, error) {
	h, w, err := m.shape3(lidar.RangeImageChannels)
	if err != nil {
		return nil, err
	}
	return &lidar.RangeImage{Height: h, Width: w, Data: m.Data}, nil
}

// PixelPoseGrid views m as a 6-channel per-pixel pose grid. Data is shared.
func (m *MatrixFloat) PixelPoseGrid() (*lidar.PixelPoseGrid, error) {
	h, w, err := m.shape3(lidar.PixelPoseChannels)
	if err != nil {
		return nil, err
	}
	return &lidar.PixelPoseGrid{Height: h, Width: w, Data: m.Data}, nil
}

// MatrixFromRangeImage wraps a range image as an H×W×4 MatrixFloat.
func MatrixFromRangeImage(ri *lidar.RangeImage) *MatrixFloat {
	return &MatrixFloat{Data: ri.Data, Dims: []int32{int32(ri.Height), int32(ri.Width), lidar.RangeImageChannels}}
}

// MatrixFromPixelPoseGrid wraps a pose grid as an H×W×6 MatrixFloat.
func MatrixFromPixelPoseGrid(g *lidar.PixelPoseGrid) *MatrixFloat {
	return &MatrixFloat{Data: g.Data, Dims: []int32{int32(g.Height), int32(g.Width), lidar.PixelPoseChannels}}
}
