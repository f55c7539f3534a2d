package lidar

import "errors"

var (
	// ErrMalformedFrame marks a frame that lacks calibration or range-image
	// data for a selected sensor, or whose arrays have inconsistent shapes.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrInvalidSensorData marks a selected sensor with no range image for
	// either return index.
	ErrInvalidSensorData = errors.New("invalid sensor data")
)
