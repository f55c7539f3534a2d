package waymo

import (
	"fmt"
	"strings"

	"github.com/banshee-data/waymo2bag/internal/lidar"
)

// CameraName identifies a camera on the vehicle.
type CameraName int32

const (
	CameraUnknown    CameraName = 0
	CameraFront      CameraName = 1
	CameraFrontLeft  CameraName = 2
	CameraFrontRight CameraName = 3
	CameraSideLeft   CameraName = 4
	CameraSideRight  CameraName = 5
)

var cameraNames = map[CameraName]string{
	CameraUnknown:    "unknown",
	CameraFront:      "front",
	CameraFrontLeft:  "front_left",
	CameraFrontRight: "front_right",
	CameraSideLeft:   "side_left",
	CameraSideRight:  "side_right",
}

// String returns the lower-case name used in topics and frame ids.
func (n CameraName) String() string {
	if s, ok := cameraNames[n]; ok {
		return s
	}
	return fmt.Sprintf("camera_%d", int32(n))
}

// ParseCameraName accepts "front_left" or "FRONT_LEFT".
func ParseCameraName(s string) (CameraName, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for n, name := range cameraNames {
		if n != CameraUnknown && name == key {
			return n, nil
		}
	}
	return CameraUnknown, fmt.Errorf("unknown camera name %q", s)
}

// ParseCameraNames parses a list of camera names, rejecting duplicates.
func ParseCameraNames(names []string) ([]CameraName, error) {
	out := make([]CameraName, 0, len(names))
	seen := make(map[CameraName]bool, len(names))
	for _, s := range names {
		n, err := ParseCameraName(s)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			return nil, fmt.Errorf("camera %s listed twice", n)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

// ParseLaserNames parses a list of lidar names, rejecting duplicates.
func ParseLaserNames(names []string) ([]lidar.LaserName, error) {
	out := make([]lidar.LaserName, 0, len(names))
	seen := make(map[lidar.LaserName]bool, len(names))
	for _, s := range names {
		n, err := lidar.ParseLaserName(s)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			return nil, fmt.Errorf("lidar %s listed twice", n)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}
