package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/waymo2bag/internal/db"
	"github.com/banshee-data/waymo2bag/internal/lidar"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sampleStats() []db.FrameStat {
	var stats []db.FrameStat
	for i := 0; i < 10; i++ {
		stats = append(stats,
			db.FrameStat{FrameIndex: i, Sensor: "top", Points: 1000 + 10*i},
			db.FrameStat{FrameIndex: i, Sensor: "front", Points: 200 - i},
		)
	}
	return stats
}

func TestPlotPointCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.png")
	if err := PlotPointCounts(sampleStats(), path); err != nil {
		t.Fatalf("PlotPointCounts: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, pngMagic) {
		t.Fatalf("output is not a PNG")
	}
}

func TestWritePointCounts(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePointCounts(sampleStats(), &buf); err != nil {
		t.Fatalf("WritePointCounts: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Fatalf("output is not a PNG")
	}
}

func TestPlotPointCountsEmpty(t *testing.T) {
	err := PlotPointCounts(nil, filepath.Join(t.TempDir(), "empty.png"))
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func ringCloud(n int) *lidar.Cloud {
	c := &lidar.Cloud{Laser: lidar.LaserTop}
	for i := 0; i < n; i++ {
		x := float32(i%50) - 25
		c.Points = append(c.Points, [4]float32{x, -x / 2, 1, float32(i%7) / 7})
	}
	return c
}

func TestBirdsEyeDataDecimates(t *testing.T) {
	tests := []struct {
		n, max     int
		wantStride int
	}{
		{10, 100, 1},
		{100, 100, 1},
		{101, 100, 2},
		{1000, 100, 10},
		{1001, 100, 11},
	}
	for _, tt := range tests {
		data, stride, _, _, _ := birdsEyeData(ringCloud(tt.n), tt.max)
		if stride != tt.wantStride {
			t.Errorf("n=%d max=%d: stride = %d, want %d", tt.n, tt.max, stride, tt.wantStride)
		}
		if len(data) > tt.max {
			t.Errorf("n=%d max=%d: kept %d points", tt.n, tt.max, len(data))
		}
	}
}

func TestBirdsEyeDataExtent(t *testing.T) {
	_, _, extent, minI, maxI := birdsEyeData(ringCloud(50), 0)
	if extent != 25 {
		t.Errorf("extent = %v, want 25", extent)
	}
	if minI != 0 || maxI != float64(float32(6)/7) {
		t.Errorf("intensity range = [%v, %v]", minI, maxI)
	}
}

func TestRenderBirdsEye(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderBirdsEye(ringCloud(500), "segment-1 frame 0", &buf); err != nil {
		t.Fatalf("RenderBirdsEye: %v", err)
	}
	html := buf.String()
	for _, want := range []string{"<html", "segment-1 frame 0", "points=500"} {
		if !strings.Contains(html, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}

func TestRenderBirdsEyeEmpty(t *testing.T) {
	if err := RenderBirdsEye(&lidar.Cloud{}, "empty", &bytes.Buffer{}); !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}
