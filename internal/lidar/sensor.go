package lidar

import (
	"fmt"
	"strings"
)

// LaserName identifies a range sensor on the vehicle. Values match the
// dataset's LaserName enum.
type LaserName int32

const (
	LaserUnknown   LaserName = 0
	LaserTop       LaserName = 1
	LaserFront     LaserName = 2
	LaserSideLeft  LaserName = 3
	LaserSideRight LaserName = 4
	LaserRear      LaserName = 5
)

var laserNames = map[LaserName]string{
	LaserUnknown:   "unknown",
	LaserTop:       "top",
	LaserFront:     "front",
	LaserSideLeft:  "side_left",
	LaserSideRight: "side_right",
	LaserRear:      "rear",
}

// String returns the lower-case name used in topics and frame ids.
func (n LaserName) String() string {
	if s, ok := laserNames[n]; ok {
		return s
	}
	return fmt.Sprintf("laser_%d", int32(n))
}

// ParseLaserName accepts the lower-case form ("top", "side_left") or the
// upper-case enum spelling ("SIDE_LEFT").
func ParseLaserName(s string) (LaserName, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for n, name := range laserNames {
		if n != LaserUnknown && name == key {
			return n, nil
		}
	}
	return LaserUnknown, fmt.Errorf("unknown laser name %q", s)
}

// ReturnIndex selects the first or second detected reflection of a pulse.
type ReturnIndex int

const (
	FirstReturn ReturnIndex = iota
	SecondReturn
	// NumReturns is the number of return indices per laser.
	NumReturns
)

// Calibration is the per-sensor calibration record.
type Calibration struct {
	Laser LaserName
	// Extrinsic maps sensor frame → vehicle frame.
	Extrinsic Transform
	// BeamInclinations is the explicit per-beam list (radians), in native
	// beam order. Empty when only the bounds are known.
	BeamInclinations []float64
	InclinationMin   float64
	InclinationMax   float64
}

// Scan bundles everything the geometry engine needs for one sensor in one
// frame.
type Scan struct {
	Calibration Calibration
	// Returns holds the range image per return index; nil when absent.
	Returns [NumReturns]*RangeImage
	// PixelPose is only honoured for LaserTop.
	PixelPose *PixelPoseGrid
}
