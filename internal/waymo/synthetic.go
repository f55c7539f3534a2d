package waymo

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/waymo2bag/internal/lidar"
)

// SyntheticGenerator produces plausible segments for tests and demos: a
// vehicle driving straight at constant speed, small range images for each
// lidar, a per-pixel pose grid for the top lidar and a gradient JPEG per
// camera.
type SyntheticGenerator struct {
	segment    string
	frameIndex int

	// Configuration
	Lasers            []lidar.LaserName
	Cameras           []CameraName
	BeamCount         int     // range image rows
	AzimuthSamples    int     // range image columns
	ImageWidth        int     // camera pixels
	ImageHeight       int     // camera pixels
	StartMicros       int64   // first frame timestamp
	FramePeriodMicros int64   // 10 Hz by default
	SpeedMPS          float64 // forward speed
	MaxRange          float64 // metres
	SecondReturnRatio float64 // fraction of pixels with a second return
	NoLabelZoneRatio  float64 // fraction of pixels flagged as no-label zone

	drift map[int]float64
	rng   *rand.Rand
}

// SyntheticOption configures a SyntheticGenerator.
type SyntheticOption func(*SyntheticGenerator)

// WithSeed fixes the random source.
func WithSeed(seed int64) SyntheticOption {
	return func(g *SyntheticGenerator) { g.rng = rand.New(rand.NewSource(seed)) }
}

// WithSensors replaces the generated lidars and cameras.
func WithSensors(lasers []lidar.LaserName, cameras []CameraName) SyntheticOption {
	return func(g *SyntheticGenerator) {
		g.Lasers = lasers
		g.Cameras = cameras
	}
}

// WithExtrinsicDrift shifts the front camera's mounting forward by dx
// metres on frame index frame (0-based), simulating a calibration change
// inside a segment.
func WithExtrinsicDrift(frame int, dx float64) SyntheticOption {
	return func(g *SyntheticGenerator) { g.drift[frame] = dx }
}

// NewSyntheticGenerator creates a generator for a segment with every lidar
// and every camera.
func NewSyntheticGenerator(segment string, opts ...SyntheticOption) *SyntheticGenerator {
	g := &SyntheticGenerator{
		segment:           segment,
		Lasers:            []lidar.LaserName{lidar.LaserTop, lidar.LaserFront, lidar.LaserSideLeft, lidar.LaserSideRight, lidar.LaserRear},
		Cameras:           []CameraName{CameraFront, CameraFrontLeft, CameraFrontRight, CameraSideLeft, CameraSideRight},
		BeamCount:         16,
		AzimuthSamples:    64,
		ImageWidth:        64,
		ImageHeight:       48,
		StartMicros:       1_550_000_000_000_000,
		FramePeriodMicros: 100_000,
		SpeedMPS:          8.0,
		MaxRange:          60.0,
		SecondReturnRatio: 0.05,
		NoLabelZoneRatio:  0.02,
		drift:             make(map[int]float64),
		rng:               rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// laserMount is the nominal mounting of each lidar: (yaw, tx, ty, tz).
var laserMount = map[lidar.LaserName][4]float64{
	lidar.LaserTop:       {0.0148, 1.43, 0, 2.184},
	lidar.LaserFront:     {0, 4.07, 0, 0.691},
	lidar.LaserSideLeft:  {math.Pi / 2, 3.245, 1.025, 0.981},
	lidar.LaserSideRight: {-math.Pi / 2, 3.245, -1.025, 0.981},
	lidar.LaserRear:      {math.Pi, -1.154, 0, 0.460},
}

var cameraMount = map[CameraName][4]float64{
	CameraFront:      {0, 1.54, -0.02, 2.115},
	CameraFrontLeft:  {0.78, 1.50, 0.09, 2.115},
	CameraFrontRight: {-0.78, 1.50, -0.13, 2.115},
	CameraSideLeft:   {1.57, 1.43, 0.12, 2.115},
	CameraSideRight:  {-1.57, 1.43, -0.16, 2.115},
}

func mountTransform(m [4]float64) []float64 {
	t := lidar.TransformFromPose6(0, 0, m[0], m[1], m[2], m[3])
	return append([]float64(nil), t[:]...)
}

// FrameIndex returns the index of the next frame to be generated.
func (g *SyntheticGenerator) FrameIndex() int {
	return g.frameIndex
}

// NextFrame generates the next frame.
func (g *SyntheticGenerator) NextFrame() (*Frame, error) {
	idx := g.frameIndex
	g.frameIndex++

	ts := g.StartMicros + int64(idx)*g.FramePeriodMicros
	pose := g.vehiclePose(ts)

	f := &Frame{
		Context:         g.context(idx),
		TimestampMicros: ts,
		Pose:            append([]float64(nil), pose[:]...),
	}

	for _, name := range g.Lasers {
		laser, err := g.laser(name, ts)
		if err != nil {
			return nil, fmt.Errorf("laser %s: %w", name, err)
		}
		f.Lasers = append(f.Lasers, laser)
	}
	for _, name := range g.Cameras {
		jpeg, err := g.cameraImage(name, idx)
		if err != nil {
			return nil, fmt.Errorf("camera %s: %w", name, err)
		}
		f.Images = append(f.Images, CameraImage{Name: name, Image: jpeg})
	}
	return f, nil
}

// WriteSegment writes n frames as a TFRecord stream.
func (g *SyntheticGenerator) WriteSegment(w io.Writer, n int) error {
	tw := NewWriter(w)
	for i := 0; i < n; i++ {
		f, err := g.NextFrame()
		if err != nil {
			return err
		}
		if err := tw.Write(AppendFrame(nil, f)); err != nil {
			return err
		}
	}
	return nil
}

// vehiclePose returns the vehicle-to-world transform at ts: a straight
// drive along a constant heading.
func (g *SyntheticGenerator) vehiclePose(ts int64) lidar.Transform {
	const heading = 0.1
	dt := float64(ts-g.StartMicros) / 1e6
	d := g.SpeedMPS * dt
	return lidar.TransformFromPose6(0, 0, heading, 1000+d*math.Cos(heading), 2000+d*math.Sin(heading), 30)
}

func (g *SyntheticGenerator) context(idx int) Context {
	c := Context{Name: g.segment}
	for _, name := range g.Cameras {
		mount := cameraMount[name]
		if name == CameraFront {
			mount[1] += g.drift[idx]
		}
		fu := 1.25 * float64(g.ImageWidth)
		c.CameraCalibrations = append(c.CameraCalibrations, CameraCalibration{
			Name:      name,
			Intrinsic: []float64{fu, fu, float64(g.ImageWidth) / 2, float64(g.ImageHeight) / 2, -0.32, 0.12, 0.0005, -0.0003, 0},
			Extrinsic: mountTransform(mount),
			Width:     int32(g.ImageWidth),
			Height:    int32(g.ImageHeight),
		})
	}
	for _, name := range g.Lasers {
		cal := LaserCalibration{
			Name:               name,
			BeamInclinationMin: -math.Pi / 2,
			BeamInclinationMax: 0.52,
			Extrinsic:          mountTransform(laserMount[name]),
		}
		if name == lidar.LaserTop {
			cal.BeamInclinationMin, cal.BeamInclinationMax = -0.31, 0.04
			cal.BeamInclinations = make([]float64, g.BeamCount)
			for i := range cal.BeamInclinations {
				// Denser near the horizon, like the real sensor.
				u := (float64(i) + 0.5) / float64(g.BeamCount)
				cal.BeamInclinations[i] = -0.31 + 0.35*math.Sqrt(u)
			}
		}
		c.LaserCalibrations = append(c.LaserCalibrations, cal)
	}
	return c
}

func (g *SyntheticGenerator) laser(name lidar.LaserName, ts int64) (Laser, error) {
	first := lidar.NewRangeImage(g.BeamCount, g.AzimuthSamples)
	second := lidar.NewRangeImage(g.BeamCount, g.AzimuthSamples)
	for row := 0; row < g.BeamCount; row++ {
		for col := 0; col < g.AzimuthSamples; col++ {
			nlz := float32(-1)
			if g.rng.Float64() < g.NoLabelZoneRatio {
				nlz = 1
			}
			if g.rng.Float64() < 0.1 {
				first.SetPixel(row, col, -1, 0, 0, nlz)
				continue
			}
			rng := 2 + g.rng.Float64()*(g.MaxRange-2)
			first.SetPixel(row, col, float32(rng), float32(g.rng.ExpFloat64()), float32(g.rng.Float64()), nlz)
			if g.rng.Float64() < g.SecondReturnRatio {
				second.SetPixel(row, col, float32(rng+0.5+g.rng.Float64()*5), float32(g.rng.ExpFloat64()*0.3), 0, nlz)
			}
		}
	}

	r1, err := CompressMatrix(MatrixFromRangeImage(first))
	if err != nil {
		return Laser{}, err
	}
	r2, err := CompressMatrix(MatrixFromRangeImage(second))
	if err != nil {
		return Laser{}, err
	}
	laser := Laser{
		Name:    name,
		Return1: &RangeImage{RangeImageCompressed: r1},
		Return2: &RangeImage{RangeImageCompressed: r2},
	}

	if name == lidar.LaserTop {
		grid := g.pixelPoses(ts)
		poses, err := CompressMatrix(MatrixFromPixelPoseGrid(grid))
		if err != nil {
			return Laser{}, err
		}
		laser.Return1.RangeImagePoseCompressed = poses
	}
	return laser, nil
}

// pixelPoses spreads the sweep over one frame period centred on ts: column
// 0 fires half a period early, the last column half a period late.
func (g *SyntheticGenerator) pixelPoses(ts int64) *lidar.PixelPoseGrid {
	const heading = 0.1
	grid := lidar.NewPixelPoseGrid(g.BeamCount, g.AzimuthSamples)
	for col := 0; col < g.AzimuthSamples; col++ {
		offset := (float64(col)/float64(g.AzimuthSamples) - 0.5) * float64(g.FramePeriodMicros)
		p := g.vehiclePose(ts + int64(offset))
		for row := 0; row < g.BeamCount; row++ {
			grid.Set(row, col, 0, 0, heading, float32(p[3]), float32(p[7]), float32(p[11]))
		}
	}
	return grid
}

func (g *SyntheticGenerator) cameraImage(name CameraName, idx int) ([]byte, error) {
	img := image.NewNRGBA(image.Rect(0, 0, g.ImageWidth, g.ImageHeight))
	for y := 0; y < g.ImageHeight; y++ {
		for x := 0; x < g.ImageWidth; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8(255 * x / g.ImageWidth),
				G: uint8(255 * y / g.ImageHeight),
				B: uint8(40*int(name) + 5*idx),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
