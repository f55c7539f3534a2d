// Package config loads the JSON conversion settings used by the
// waymo2bag command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/waymo2bag/internal/convert"
	"github.com/banshee-data/waymo2bag/internal/rosbag"
	"github.com/banshee-data/waymo2bag/internal/waymo"
)

// DefaultConfigPath is the canonical defaults file, relative to the
// repository root.
const DefaultConfigPath = "config/convert.defaults.json"

// ConversionConfig mirrors the JSON file. Every field is a pointer so an
// absent key can be told apart from a zero value; the Get* methods fall
// back to the defaults below.
type ConversionConfig struct {
	LidarSensors        []string `json:"lidar_sensors,omitempty"`
	CameraSensors       []string `json:"camera_sensors,omitempty"`
	FilterNoLabelZone   *bool    `json:"filter_no_label_zone,omitempty"`
	NormalizeIntensity  *bool    `json:"normalize_intensity,omitempty"`
	ConcatenatedCloud   *bool    `json:"concatenated_cloud,omitempty"`
	PublishTF           *bool    `json:"publish_tf,omitempty"`
	ChunkThresholdBytes *int     `json:"chunk_threshold_bytes,omitempty"`
}

var (
	defaultLidarSensors  = []string{"top"}
	defaultCameraSensors = []string{"front"}
)

const maxConfigSize = 1 << 20

func ptrBool(v bool) *bool { return &v }
func ptrInt(v int) *int    { return &v }

// EmptyConversionConfig returns a config with every field unset.
func EmptyConversionConfig() *ConversionConfig {
	return &ConversionConfig{}
}

// DefaultConversionConfig returns a config with every field set to its
// default.
func DefaultConversionConfig() *ConversionConfig {
	return &ConversionConfig{
		LidarSensors:        append([]string(nil), defaultLidarSensors...),
		CameraSensors:       append([]string(nil), defaultCameraSensors...),
		FilterNoLabelZone:   ptrBool(false),
		NormalizeIntensity:  ptrBool(true),
		ConcatenatedCloud:   ptrBool(false),
		PublishTF:           ptrBool(false),
		ChunkThresholdBytes: ptrInt(rosbag.DefaultChunkThreshold),
	}
}

// LoadConversionConfig reads and validates a JSON config file.
func LoadConversionConfig(path string) (*ConversionConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConversionConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from
// the working directory so tests in nested packages find it.
func MustLoadDefaultConfig() *ConversionConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadConversionConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks sensor names and numeric ranges.
func (c *ConversionConfig) Validate() error {
	var errs []error
	if _, err := waymo.ParseLaserNames(c.LidarSensors); err != nil {
		errs = append(errs, fmt.Errorf("lidar_sensors: %w", err))
	}
	if _, err := waymo.ParseCameraNames(c.CameraSensors); err != nil {
		errs = append(errs, fmt.Errorf("camera_sensors: %w", err))
	}
	if c.ChunkThresholdBytes != nil && *c.ChunkThresholdBytes <= 0 {
		errs = append(errs, fmt.Errorf("chunk_threshold_bytes must be positive, got %d", *c.ChunkThresholdBytes))
	}
	if c.GetConcatenatedCloud() && len(c.GetLidarSensors()) == 0 {
		errs = append(errs, errors.New("concatenated_cloud requires at least one lidar sensor"))
	}
	return errors.Join(errs...)
}

// GetLidarSensors returns the selected lidar names. An explicit empty
// list selects no lidar.
func (c *ConversionConfig) GetLidarSensors() []string {
	if c.LidarSensors == nil {
		return defaultLidarSensors
	}
	return c.LidarSensors
}

// GetCameraSensors returns the selected camera names.
func (c *ConversionConfig) GetCameraSensors() []string {
	if c.CameraSensors == nil {
		return defaultCameraSensors
	}
	return c.CameraSensors
}

func (c *ConversionConfig) GetFilterNoLabelZone() bool {
	if c.FilterNoLabelZone == nil {
		return false
	}
	return *c.FilterNoLabelZone
}

func (c *ConversionConfig) GetNormalizeIntensity() bool {
	if c.NormalizeIntensity == nil {
		return true
	}
	return *c.NormalizeIntensity
}

func (c *ConversionConfig) GetConcatenatedCloud() bool {
	if c.ConcatenatedCloud == nil {
		return false
	}
	return *c.ConcatenatedCloud
}

func (c *ConversionConfig) GetPublishTF() bool {
	if c.PublishTF == nil {
		return false
	}
	return *c.PublishTF
}

func (c *ConversionConfig) GetChunkThresholdBytes() int {
	if c.ChunkThresholdBytes == nil {
		return rosbag.DefaultChunkThreshold
	}
	return *c.ChunkThresholdBytes
}

// ToOptions resolves the config into the explicit options value the
// converter takes.
func (c *ConversionConfig) ToOptions() (convert.Options, error) {
	lasers, err := waymo.ParseLaserNames(c.GetLidarSensors())
	if err != nil {
		return convert.Options{}, fmt.Errorf("lidar_sensors: %w", err)
	}
	cameras, err := waymo.ParseCameraNames(c.GetCameraSensors())
	if err != nil {
		return convert.Options{}, fmt.Errorf("camera_sensors: %w", err)
	}
	opts := convert.Options{
		Lasers:             lasers,
		Cameras:            cameras,
		FilterNoLabelZone:  c.GetFilterNoLabelZone(),
		NormalizeIntensity: c.GetNormalizeIntensity(),
		ConcatenatedCloud:  c.GetConcatenatedCloud(),
		PublishTF:          c.GetPublishTF(),
		ChunkThreshold:     c.GetChunkThresholdBytes(),
	}
	return opts, opts.Validate()
}
