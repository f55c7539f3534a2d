package waymo

import (
	"fmt"

	"github.com/banshee-data/waymo2bag/internal/lidar"
)

// Frame is one sample of a segment: the vehicle pose, the sensor
// calibrations and the raw sensor payloads at TimestampMicros.
type Frame struct {
	Context         Context
	TimestampMicros int64
	// Pose is the row-major 4x4 vehicle-to-world transform.
	Pose   []float64
	Images []CameraImage
	Lasers []Laser
}

// Context carries the segment name and the calibrations.
type Context struct {
	Name               string
	CameraCalibrations []CameraCalibration
	LaserCalibrations  []LaserCalibration
}

// CameraCalibration holds the pinhole intrinsics and the camera-to-vehicle
// extrinsic. Intrinsic is [f_u, f_v, c_u, c_v, k1, k2, p1, p2, k3].
type CameraCalibration struct {
	Name      CameraName
	Intrinsic []float64
	Extrinsic []float64
	Width     int32
	Height    int32
}

// LaserCalibration describes one lidar's beam geometry and mounting.
type LaserCalibration struct {
	Name               lidar.LaserName
	BeamInclinations   []float64
	BeamInclinationMin float64
	BeamInclinationMax float64
	Extrinsic          []float64
}

// CameraImage is one JPEG-encoded camera image.
type CameraImage struct {
	Name  CameraName
	Image []byte
}

// Laser holds the compressed range images for both returns of one lidar.
type Laser struct {
	Name    lidar.LaserName
	Return1 *RangeImage
	Return2 *RangeImage
}

// RangeImage holds zlib-compressed MatrixFloat payloads.
type RangeImage struct {
	RangeImageCompressed       []byte
	CameraProjectionCompressed []byte
	RangeImagePoseCompressed   []byte
}

// MatrixFloat is a dense row-major float tensor with its shape.
type MatrixFloat struct {
	Data []float32
	Dims []int32
}

// rigidTransform parses a row-major 4x4 and rejects anything that is not a
// rigid transform.
func rigidTransform(v []float64) (lidar.Transform, error) {
	t, err := lidar.TransformFromSlice(v)
	if err != nil {
		return t, err
	}
	return t, t.CheckRigid()
}

// PoseTransform returns the frame pose as a transform.
func (f *Frame) PoseTransform() (lidar.Transform, error) {
	t, err := rigidTransform(f.Pose)
	if err != nil {
		return t, fmt.Errorf("%w: frame pose: %v", lidar.ErrMalformedFrame, err)
	}
	return t, nil
}

// ExtrinsicTransform returns the camera-to-vehicle transform.
func (c CameraCalibration) ExtrinsicTransform() (lidar.Transform, error) {
	t, err := rigidTransform(c.Extrinsic)
	if err != nil {
		return t, fmt.Errorf("%w: camera %s extrinsic: %v", lidar.ErrMalformedFrame, c.Name, err)
	}
	return t, nil
}

// ExtrinsicTransform returns the laser-to-vehicle transform.
func (c LaserCalibration) ExtrinsicTransform() (lidar.Transform, error) {
	t, err := rigidTransform(c.Extrinsic)
	if err != nil {
		return t, fmt.Errorf("%w: lidar %s extrinsic: %v", lidar.ErrMalformedFrame, c.Name, err)
	}
	return t, nil
}

// CameraCalibration returns the calibration for name.
func (f *Frame) CameraCalibration(name CameraName) (CameraCalibration, bool) {
	for _, c := range f.Context.CameraCalibrations {
		if c.Name == name {
			return c, true
		}
	}
	return CameraCalibration{}, false
}

// LaserCalibration returns the calibration for name.
func (f *Frame) LaserCalibration(name lidar.LaserName) (LaserCalibration, bool) {
	for _, c := range f.Context.LaserCalibrations {
		if c.Name == name {
			return c, true
		}
	}
	return LaserCalibration{}, false
}

// Image returns the camera image for name.
func (f *Frame) Image(name CameraName) (CameraImage, bool) {
	for _, img := range f.Images {
		if img.Name == name {
			return img, true
		}
	}
	return CameraImage{}, false
}

// Laser returns the laser record for name.
func (f *Frame) Laser(name lidar.LaserName) (Laser, bool) {
	for _, l := range f.Lasers {
		if l.Name == name {
			return l, true
		}
	}
	return Laser{}, false
}
