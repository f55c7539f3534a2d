package lidar

import (
	"fmt"
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/waymo2bag/internal/monitoring"
)

// GeometryOptions configures range-image conversion.
type GeometryOptions struct {
	// FilterNoLabelZone drops pixels flagged as inside a no-label zone.
	FilterNoLabelZone bool
}

// ReturnCloud holds the points and intensities recovered from one range
// image. Points[i] and Intensity[i] always come from the same pixel.
type ReturnCloud struct {
	Points    []r3.Vector
	Intensity []float32
}

// Len returns the number of points.
func (c *ReturnCloud) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// SensorReturns holds the per-return clouds for one laser. A nil entry
// means the frame carried no range image for that return.
type SensorReturns struct {
	Laser   LaserName
	Returns [NumReturns]*ReturnCloud
}

// Azimuths returns the azimuth (radians) of every column for an image of
// the given width, corrected for the sensor's yaw in the vehicle frame.
// Column 0 sits at +pi, sweeping clockwise through a full revolution.
func Azimuths(width int, extrinsic Transform) []float64 {
	correction := math.Atan2(extrinsic.At(1, 0), extrinsic.At(0, 0))
	az := make([]float64, width)
	for c := range az {
		ratio := (float64(width-c) - 0.5) / float64(width)
		az[c] = (ratio*2-1)*math.Pi - correction
	}
	return az
}

// ConvertRangeImage produces a point and an intensity for every valid pixel
// of ri. Points are expressed in the vehicle frame. For LaserTop each point
// is additionally carried through its pixel pose and back through the
// inverse frame pose, compensating for vehicle motion during the sweep;
// other lasers ignore pixelPose.
func ConvertRangeImage(ri *RangeImage, cal Calibration, framePose Transform, pixelPose *PixelPoseGrid, opts GeometryOptions) (*ReturnCloud, error) {
	if err := ri.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", cal.Laser, err)
	}

	inclinations, err := ResolveInclinations(cal, ri.Height)
	if err != nil {
		return nil, err
	}
	azimuths := Azimuths(ri.Width, cal.Extrinsic)

	var worldToVehicle Transform
	usePixelPose := cal.Laser == LaserTop
	if usePixelPose {
		if err := pixelPose.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", cal.Laser, err)
		}
		if pixelPose.Height != ri.Height || pixelPose.Width != ri.Width {
			return nil, fmt.Errorf("%w: %s pixel pose grid %dx%d does not match range image %dx%d",
				ErrMalformedFrame, cal.Laser, pixelPose.Height, pixelPose.Width, ri.Height, ri.Width)
		}
		worldToVehicle, err = framePose.Inverse()
		if err != nil {
			return nil, fmt.Errorf("%w: frame pose: %v", ErrMalformedFrame, err)
		}
	}

	mask := ValidMask(ri, opts.FilterNoLabelZone)
	n := CountValid(mask)
	out := &ReturnCloud{
		Points:    make([]r3.Vector, 0, n),
		Intensity: make([]float32, 0, n),
	}

	for row := 0; row < ri.Height; row++ {
		for col := 0; col < ri.Width; col++ {
			if !mask[row*ri.Width+col] {
				continue
			}
			px := ri.Pixel(row, col)
			p := SphericalToCartesian(float64(px[ChannelRange]), azimuths[col], inclinations[row])
			p = cal.Extrinsic.Apply(p)
			if usePixelPose {
				p = pixelPose.Pose(row, col).Apply(p)
				p = worldToVehicle.Apply(p)
			}
			out.Points = append(out.Points, p)
			out.Intensity = append(out.Intensity, px[ChannelIntensity])
		}
	}

	return out, nil
}

// Engine converts all scans of one frame.
type Engine struct {
	opts GeometryOptions
}

// NewEngine creates an Engine with the given options.
func NewEngine(opts GeometryOptions) *Engine {
	return &Engine{opts: opts}
}

// ConvertScans converts every return of every scan. Scans are processed in
// ascending laser order so that output ordering is reproducible.
func (e *Engine) ConvertScans(framePose Transform, scans []Scan) ([]SensorReturns, error) {
	ordered := make([]Scan, len(scans))
	copy(ordered, scans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Calibration.Laser < ordered[j].Calibration.Laser
	})

	out := make([]SensorReturns, 0, len(ordered))
	for _, scan := range ordered {
		sr := SensorReturns{Laser: scan.Calibration.Laser}
		for ri := FirstReturn; ri < NumReturns; ri++ {
			img := scan.Returns[ri]
			if img == nil {
				continue
			}
			cloud, err := ConvertRangeImage(img, scan.Calibration, framePose, scan.PixelPose, e.opts)
			if err != nil {
				return nil, fmt.Errorf("return %d: %w", ri, err)
			}
			sr.Returns[ri] = cloud
			monitoring.Tracef("laser %s return %d: %d/%d valid pixels",
				sr.Laser, ri, cloud.Len(), img.Height*img.Width)
		}
		out = append(out, sr)
	}
	return out, nil
}
