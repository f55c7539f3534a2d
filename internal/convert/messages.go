package convert

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/banshee-data/waymo2bag/internal/lidar"
	"github.com/banshee-data/waymo2bag/internal/rosmsg"
	"github.com/banshee-data/waymo2bag/internal/waymo"
)

// Topic names.
const (
	TopicOdom              = "/odom"
	TopicTF                = "/tf"
	TopicTFStatic          = "/tf_static"
	TopicConcatenatedCloud = "/lidar/concatenated/pointcloud"
)

// ImageTopic returns the image topic for a camera.
func ImageTopic(c waymo.CameraName) string {
	return fmt.Sprintf("/camera/%s/image", c)
}

// CameraInfoTopic returns the calibration topic for a camera.
func CameraInfoTopic(c waymo.CameraName) string {
	return fmt.Sprintf("/camera/%s/camera_info", c)
}

// PointCloudTopic returns the point cloud topic for a laser.
func PointCloudTopic(l lidar.LaserName) string {
	return fmt.Sprintf("/lidar/%s/pointcloud", l)
}

// LaserFrameID is the tf frame of a laser. Lasers and cameras share names
// ("front"), so laser frames carry a prefix.
func LaserFrameID(l lidar.LaserName) string {
	return "lidar_" + l.String()
}

func odometryMessage(pose lidar.Transform, stamp rosmsg.Time) *rosmsg.Odometry {
	tf := rosTransform(pose)
	m := &rosmsg.Odometry{
		Header:       rosmsg.Header{Stamp: stamp, FrameID: frameMap},
		ChildFrameID: frameBaseLink,
	}
	m.Pose.Pose.Position = tf.Translation
	m.Pose.Pose.Orientation = tf.Rotation
	return m
}

func dynamicTFMessage(pose lidar.Transform, stamp rosmsg.Time) *rosmsg.TFMessage {
	return &rosmsg.TFMessage{Transforms: []rosmsg.TransformStamped{
		transformStamped(frameMap, frameBaseLink, stamp, pose),
	}}
}

// staticTFMessage builds base_link -> sensor transforms for every selected
// camera (into its optical frame) and laser. The stamp is left zero.
func staticTFMessage(f *waymo.Frame, opts Options) (*rosmsg.TFMessage, error) {
	msg := &rosmsg.TFMessage{}
	for _, name := range opts.Cameras {
		cal, ok := f.CameraCalibration(name)
		if !ok {
			return nil, fmt.Errorf("%w: no calibration for camera %s", lidar.ErrMalformedFrame, name)
		}
		ext, err := cal.ExtrinsicTransform()
		if err != nil {
			return nil, err
		}
		msg.Transforms = append(msg.Transforms,
			transformStamped(frameBaseLink, name.String(), rosmsg.Time{}, ext.Mul(cameraToImage)))
	}
	for _, name := range opts.Lasers {
		cal, ok := f.LaserCalibration(name)
		if !ok {
			return nil, fmt.Errorf("%w: no calibration for lidar %s", lidar.ErrMalformedFrame, name)
		}
		ext, err := cal.ExtrinsicTransform()
		if err != nil {
			return nil, err
		}
		msg.Transforms = append(msg.Transforms,
			transformStamped(frameBaseLink, LaserFrameID(name), rosmsg.Time{}, ext))
	}
	return msg, nil
}

// imageMessage decodes a JPEG into an rgb8 image.
func imageMessage(img waymo.CameraImage, stamp rosmsg.Time) (*rosmsg.Image, error) {
	decoded, err := imaging.Decode(bytes.NewReader(img.Image))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", img.Name, err)
	}
	rgb := packRGB8(imaging.Clone(decoded))
	b := rgb.bounds
	return &rosmsg.Image{
		Header:   rosmsg.Header{Stamp: stamp, FrameID: img.Name.String()},
		Height:   uint32(b.Dy()),
		Width:    uint32(b.Dx()),
		Encoding: rosmsg.EncodingRGB8,
		Step:     uint32(3 * b.Dx()),
		Data:     rgb.data,
	}, nil
}

type rgb8 struct {
	bounds image.Rectangle
	data   []byte
}

// packRGB8 drops the alpha channel. Camera JPEGs are opaque.
func packRGB8(src *image.NRGBA) rgb8 {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, 3*w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+4*w]
		for x := 0; x < w; x++ {
			out = append(out, row[4*x], row[4*x+1], row[4*x+2])
		}
	}
	return rgb8{bounds: b, data: out}
}

// cameraInfoMessage maps the intrinsics [f_u, f_v, c_u, c_v, k1, k2, p1,
// p2, k3] onto a plumb_bob model.
func cameraInfoMessage(cal waymo.CameraCalibration, stamp rosmsg.Time) (*rosmsg.CameraInfo, error) {
	if len(cal.Intrinsic) < 4 {
		return nil, fmt.Errorf("%w: camera %s has %d intrinsics",
			lidar.ErrMalformedFrame, cal.Name, len(cal.Intrinsic))
	}
	fu, fv, cu, cv := cal.Intrinsic[0], cal.Intrinsic[1], cal.Intrinsic[2], cal.Intrinsic[3]
	m := &rosmsg.CameraInfo{
		Header:          rosmsg.Header{Stamp: stamp, FrameID: cal.Name.String()},
		Height:          uint32(cal.Height),
		Width:           uint32(cal.Width),
		DistortionModel: rosmsg.DistortionPlumbBob,
		D:               append([]float64{}, cal.Intrinsic[4:]...),
		K:               [9]float64{fu, 0, cu, 0, fv, cv, 0, 0, 1},
		R:               [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		P:               [12]float64{fu, 0, cu, 0, 0, fv, cv, 0, 0, 0, 1, 0},
	}
	return m, nil
}

var cloudFields = []rosmsg.PointField{
	{Name: "x", Offset: 0, Datatype: rosmsg.PointFieldFloat32, Count: 1},
	{Name: "y", Offset: 4, Datatype: rosmsg.PointFieldFloat32, Count: 1},
	{Name: "z", Offset: 8, Datatype: rosmsg.PointFieldFloat32, Count: 1},
	{Name: "intensity", Offset: 12, Datatype: rosmsg.PointFieldFloat32, Count: 1},
}

const cloudPointStep = 16

// pointCloudMessage packs an N×4 cloud as an unordered little-endian
// PointCloud2 in base_link.
func pointCloudMessage(c *lidar.Cloud, stamp rosmsg.Time) *rosmsg.PointCloud2 {
	n := c.Len()
	data := make([]byte, n*cloudPointStep)
	for i, p := range c.Points {
		off := i * cloudPointStep
		for j, v := range p {
			binary.LittleEndian.PutUint32(data[off+4*j:], math.Float32bits(v))
		}
	}
	return &rosmsg.PointCloud2{
		Header:    rosmsg.Header{Stamp: stamp, FrameID: frameBaseLink},
		Height:    1,
		Width:     uint32(n),
		Fields:    cloudFields,
		PointStep: cloudPointStep,
		RowStep:   uint32(cloudPointStep * n),
		Data:      data,
	}
}
