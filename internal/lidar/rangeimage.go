package lidar

import (
	"fmt"
)

// Range image channel layout.
const (
	ChannelRange       = 0
	ChannelIntensity   = 1
	ChannelElongation  = 2
	ChannelNoLabelZone = 3
	RangeImageChannels = 4

	PixelPoseChannels = 6

	// noLabelZoneFlag is the channel-3 value for pixels inside a no-label zone.
	noLabelZoneFlag = 1.0
)

// RangeImage is a Height×Width grid of 4-channel pixels stored row-major
// as [row][col][channel]. Rows are beams, columns are azimuth samples.
type RangeImage struct {
	Height int
	Width  int
	Data   []float32
}

// NewRangeImage allocates a zeroed range image.
func NewRangeImage(height, width int) *RangeImage {
	return &RangeImage{
		Height: height,
		Width:  width,
		Data:   make([]float32, height*width*RangeImageChannels),
	}
}

// Validate checks dimensions against the data length.
func (ri *RangeImage) Validate() error {
	if ri == nil {
		return fmt.Errorf("%w: range image is nil", ErrMalformedFrame)
	}
	if ri.Height <= 0 || ri.Width <= 0 {
		return fmt.Errorf("%w: range image shape %dx%d", ErrMalformedFrame, ri.Height, ri.Width)
	}
	if want := ri.Height * ri.Width * RangeImageChannels; len(ri.Data) != want {
		return fmt.Errorf("%w: range image %dx%dx%d needs %d values, got %d",
			ErrMalformedFrame, ri.Height, ri.Width, RangeImageChannels, want, len(ri.Data))
	}
	return nil
}

// Pixel returns the 4 channels of (row, col) as a subslice of Data.
func (ri *RangeImage) Pixel(row, col int) []float32 {
	i := (row*ri.Width + col) * RangeImageChannels
	return ri.Data[i : i+RangeImageChannels]
}

// SetPixel writes all 4 channels of (row, col).
func (ri *RangeImage) SetPixel(row, col int, rng, intensity, elongation, nlz float32) {
	p := ri.Pixel(row, col)
	p[ChannelRange] = rng
	p[ChannelIntensity] = intensity
	p[ChannelElongation] = elongation
	p[ChannelNoLabelZone] = nlz
}

// PixelPoseGrid holds, per pixel of the top range image, the vehicle pose
// (roll, pitch, yaw, tx, ty, tz) at the instant that pixel was scanned.
type PixelPoseGrid struct {
	Height int
	Width  int
	Data   []float32
}

// NewPixelPoseGrid allocates a zeroed grid. A zero entry is the identity pose.
func NewPixelPoseGrid(height, width int) *PixelPoseGrid {
	return &PixelPoseGrid{
		Height: height,
		Width:  width,
		Data:   make([]float32, height*width*PixelPoseChannels),
	}
}

// Validate checks dimensions against the data length.
func (g *PixelPoseGrid) Validate() error {
	if g == nil {
		return fmt.Errorf("%w: pixel pose grid is nil", ErrMalformedFrame)
	}
	if want := g.Height * g.Width * PixelPoseChannels; g.Height <= 0 || g.Width <= 0 || len(g.Data) != want {
		return fmt.Errorf("%w: pixel pose grid %dx%dx%d with %d values",
			ErrMalformedFrame, g.Height, g.Width, PixelPoseChannels, len(g.Data))
	}
	return nil
}

// Set stores the 6-tuple for (row, col).
func (g *PixelPoseGrid) Set(row, col int, roll, pitch, yaw, tx, ty, tz float32) {
	i := (row*g.Width + col) * PixelPoseChannels
	copy(g.Data[i:i+PixelPoseChannels], []float32{roll, pitch, yaw, tx, ty, tz})
}

// Pose returns the transform for (row, col).
func (g *PixelPoseGrid) Pose(row, col int) Transform {
	v := g.Data[(row*g.Width+col)*PixelPoseChannels:]
	return TransformFromPose6(
		float64(v[0]), float64(v[1]), float64(v[2]),
		float64(v[3]), float64(v[4]), float64(v[5]),
	)
}

// ResolveInclinations returns the beam inclination for each image row.
// An explicit list is used as-is; otherwise inclinations are spaced evenly
// between the calibration bounds at row centres. The result is reversed so
// that row 0 holds the highest native beam index.
func ResolveInclinations(cal Calibration, height int) ([]float64, error) {
	var inc []float64
	if len(cal.BeamInclinations) > 0 {
		if len(cal.BeamInclinations) != height {
			return nil, fmt.Errorf("%w: %s has %d beam inclinations for %d rows",
				ErrMalformedFrame, cal.Laser, len(cal.BeamInclinations), height)
		}
		inc = make([]float64, height)
		copy(inc, cal.BeamInclinations)
	} else {
		inc = make([]float64, height)
		diff := cal.InclinationMax - cal.InclinationMin
		for i := range inc {
			inc[i] = (0.5+float64(i))/float64(height)*diff + cal.InclinationMin
		}
	}

	for i, j := 0, len(inc)-1; i < j; i, j = i+1, j-1 {
		inc[i], inc[j] = inc[j], inc[i]
	}
	return inc, nil
}

// ValidMask marks pixels with a strictly positive range and, when
// filterNoLabelZone is set, outside any no-label zone.
func ValidMask(ri *RangeImage, filterNoLabelZone bool) []bool {
	mask := make([]bool, ri.Height*ri.Width)
	for i := range mask {
		px := ri.Data[i*RangeImageChannels : (i+1)*RangeImageChannels]
		valid := px[ChannelRange] > 0
		if valid && filterNoLabelZone {
			valid = px[ChannelNoLabelZone] != noLabelZoneFlag
		}
		mask[i] = valid
	}
	return mask
}

// CountValid returns the number of true entries in mask.
func CountValid(mask []bool) int {
	n := 0
	for _, v := range mask {
		if v {
			n++
		}
	}
	return n
}
