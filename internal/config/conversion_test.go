package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/waymo2bag/internal/convert"
	"github.com/banshee-data/waymo2bag/internal/lidar"
	"github.com/banshee-data/waymo2bag/internal/rosbag"
	"github.com/banshee-data/waymo2bag/internal/waymo"
	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestDefaultConversionConfig(t *testing.T) {
	cfg := DefaultConversionConfig()

	if cfg.NormalizeIntensity == nil || *cfg.NormalizeIntensity != true {
		t.Errorf("Expected NormalizeIntensity true, got %v", cfg.NormalizeIntensity)
	}
	if cfg.ChunkThresholdBytes == nil || *cfg.ChunkThresholdBytes != 786432 {
		t.Errorf("Expected ChunkThresholdBytes 786432, got %v", cfg.ChunkThresholdBytes)
	}
	if diff := cmp.Diff([]string{"top"}, cfg.GetLidarSensors()); diff != "" {
		t.Errorf("GetLidarSensors() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"front"}, cfg.GetCameraSensors()); diff != "" {
		t.Errorf("GetCameraSensors() mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyConfigUsesDefaults(t *testing.T) {
	cfg := EmptyConversionConfig()
	if cfg.GetFilterNoLabelZone() {
		t.Error("GetFilterNoLabelZone() = true, want false")
	}
	if !cfg.GetNormalizeIntensity() {
		t.Error("GetNormalizeIntensity() = false, want true")
	}
	if cfg.GetConcatenatedCloud() || cfg.GetPublishTF() {
		t.Error("concatenated cloud and /tf should default off")
	}
	if got := cfg.GetChunkThresholdBytes(); got != rosbag.DefaultChunkThreshold {
		t.Errorf("GetChunkThresholdBytes() = %d, want %d", got, rosbag.DefaultChunkThreshold)
	}

	opts, err := cfg.ToOptions()
	if err != nil {
		t.Fatalf("ToOptions: %v", err)
	}
	if diff := cmp.Diff(convert.DefaultOptions(), opts); diff != "" {
		t.Errorf("ToOptions() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if diff := cmp.Diff(DefaultConversionConfig(), cfg); diff != "" {
		t.Errorf("%s differs from DefaultConversionConfig (-want +got):\n%s", DefaultConfigPath, diff)
	}
}

func TestLoadConversionConfig(t *testing.T) {
	path := writeConfig(t, "test_config.json", `{
  "lidar_sensors": ["top", "FRONT"],
  "camera_sensors": ["front_left", "side_right"],
  "filter_no_label_zone": true,
  "normalize_intensity": false,
  "concatenated_cloud": true,
  "publish_tf": true,
  "chunk_threshold_bytes": 4096
}`)

	cfg, err := LoadConversionConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	opts, err := cfg.ToOptions()
	if err != nil {
		t.Fatalf("ToOptions: %v", err)
	}
	want := convert.Options{
		Lasers:             []lidar.LaserName{lidar.LaserTop, lidar.LaserFront},
		Cameras:            []waymo.CameraName{waymo.CameraFrontLeft, waymo.CameraSideRight},
		FilterNoLabelZone:  true,
		NormalizeIntensity: false,
		ConcatenatedCloud:  true,
		PublishTF:          true,
		ChunkThreshold:     4096,
	}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConversionConfigPartial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"publish_tf": true}`)

	cfg, err := LoadConversionConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !cfg.GetPublishTF() {
		t.Error("Expected PublishTF true")
	}
	if !cfg.GetNormalizeIntensity() {
		t.Error("Expected default NormalizeIntensity true")
	}
	if diff := cmp.Diff([]string{"top"}, cfg.GetLidarSensors()); diff != "" {
		t.Errorf("GetLidarSensors() mismatch (-want +got):\n%s", diff)
	}
}

func TestExplicitEmptySensorList(t *testing.T) {
	path := writeConfig(t, "cams_only.json", `{"lidar_sensors": [], "camera_sensors": ["front"]}`)

	cfg, err := LoadConversionConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	opts, err := cfg.ToOptions()
	if err != nil {
		t.Fatalf("ToOptions: %v", err)
	}
	if len(opts.Lasers) != 0 {
		t.Errorf("Lasers = %v, want none", opts.Lasers)
	}
}

func TestLoadConversionConfigMissing(t *testing.T) {
	if _, err := LoadConversionConfig("/nonexistent/path/to/config.json"); err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadConversionConfigInvalidJSON(t *testing.T) {
	path := writeConfig(t, "invalid.json", `{"publish_tf": "yes"`)
	if _, err := LoadConversionConfig(path); err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadConversionConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadConversionConfig("/some/path/config.yaml"); err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
	if _, err := LoadConversionConfig("../../etc/passwd"); err == nil {
		t.Error("Expected error for non-.json path, got nil")
	}
}

func TestLoadConversionConfigRejectsLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.json")
	if err := os.WriteFile(path, make([]byte, 2*1024*1024), 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}
	if _, err := LoadConversionConfig(path); err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"unknown lidar", `{"lidar_sensors": ["roof"]}`, "lidar_sensors"},
		{"duplicate lidar", `{"lidar_sensors": ["top", "TOP"]}`, "listed twice"},
		{"unknown camera", `{"camera_sensors": ["rear"]}`, "camera_sensors"},
		{"zero chunk threshold", `{"chunk_threshold_bytes": 0}`, "chunk_threshold_bytes"},
		{"concatenated without lidar", `{"lidar_sensors": [], "concatenated_cloud": true}`, "concatenated_cloud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, "cfg.json", tt.body)
			_, err := LoadConversionConfig(path)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
