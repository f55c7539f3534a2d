// Package convert turns Waymo segments into ROS bags: one bag per input
// unit, frames written in arrival order.
package convert

import (
	"errors"
	"fmt"

	"github.com/banshee-data/waymo2bag/internal/lidar"
	"github.com/banshee-data/waymo2bag/internal/rosbag"
	"github.com/banshee-data/waymo2bag/internal/waymo"
)

// Options selects the sensors to convert and how their data is written.
// It is passed explicitly to every conversion; there is no package-level
// sensor selection.
type Options struct {
	Lasers  []lidar.LaserName
	Cameras []waymo.CameraName

	FilterNoLabelZone  bool
	NormalizeIntensity bool
	// ConcatenatedCloud also publishes every selected laser merged into
	// /lidar/concatenated/pointcloud.
	ConcatenatedCloud bool
	// PublishTF writes the dynamic map -> base_link transform on /tf.
	PublishTF bool

	ChunkThreshold int
}

// DefaultOptions converts the top lidar and the front camera with
// normalized intensities.
func DefaultOptions() Options {
	return Options{
		Lasers:             []lidar.LaserName{lidar.LaserTop},
		Cameras:            []waymo.CameraName{waymo.CameraFront},
		NormalizeIntensity: true,
		ChunkThreshold:     rosbag.DefaultChunkThreshold,
	}
}

// Validate checks that the selection is usable.
func (o Options) Validate() error {
	var errs []error
	seenL := make(map[lidar.LaserName]bool)
	for _, l := range o.Lasers {
		if l <= lidar.LaserUnknown || l > lidar.LaserRear {
			errs = append(errs, fmt.Errorf("invalid laser %s", l))
		}
		if seenL[l] {
			errs = append(errs, fmt.Errorf("laser %s selected twice", l))
		}
		seenL[l] = true
	}
	seenC := make(map[waymo.CameraName]bool)
	for _, c := range o.Cameras {
		if c <= waymo.CameraUnknown || c > waymo.CameraSideRight {
			errs = append(errs, fmt.Errorf("invalid camera %s", c))
		}
		if seenC[c] {
			errs = append(errs, fmt.Errorf("camera %s selected twice", c))
		}
		seenC[c] = true
	}
	if o.ConcatenatedCloud && len(o.Lasers) == 0 {
		errs = append(errs, errors.New("concatenated cloud requires at least one laser"))
	}
	if o.ChunkThreshold < 0 {
		errs = append(errs, fmt.Errorf("chunk threshold must be non-negative, got %d", o.ChunkThreshold))
	}
	return errors.Join(errs...)
}
