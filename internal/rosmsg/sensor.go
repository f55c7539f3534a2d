package rosmsg

import (
	"bytes"
	"fmt"
)

var (
	MsgImage = &MessageType{
		Name:   "sensor_msgs/Image",
		MD5Sum: "060021388200f6f0f447d0fcd9c64743",
		Text: `Header header
uint32 height
uint32 width
string encoding
uint8 is_bigendian
uint32 step
uint8[] data
`,
		Deps: []*MessageType{MsgHeader},
	}
	MsgRegionOfInterest = &MessageType{
		Name:   "sensor_msgs/RegionOfInterest",
		MD5Sum: "bdb633039d588fcccb441a4d43ccfe09",
		Text:   "uint32 x_offset\nuint32 y_offset\nuint32 height\nuint32 width\nbool do_rectify\n",
	}
	MsgCameraInfo = &MessageType{
		Name:   "sensor_msgs/CameraInfo",
		MD5Sum: "c9a58c1b0b154e0e6da7578cb991d214",
		Text: `Header header
uint32 height
uint32 width
string distortion_model
float64[] D
float64[9]  K
float64[9]  R
float64[12] P
uint32 binning_x
uint32 binning_y
RegionOfInterest roi
`,
		Deps: []*MessageType{MsgHeader, MsgRegionOfInterest},
	}
	MsgPointField = &MessageType{
		Name:   "sensor_msgs/PointField",
		MD5Sum: "268eacb2962780ceac86cbd17e328150",
		Text: `uint8 INT8    = 1
uint8 UINT8   = 2
uint8 INT16   = 3
uint8 UINT16  = 4
uint8 INT32   = 5
uint8 UINT32  = 6
uint8 FLOAT32 = 7
uint8 FLOAT64 = 8

string name
uint32 offset
uint8  datatype
uint32 count
`,
	}
	MsgPointCloud2 = &MessageType{
		Name:   "sensor_msgs/PointCloud2",
		MD5Sum: "1158d486dd51d683ce2f1be655c3c181",
		Text: `Header header
uint32 height
uint32 width
PointField[] fields
bool    is_bigendian
uint32  point_step
uint32  row_step
uint8[] data
bool is_dense
`,
		Deps: []*MessageType{MsgHeader, MsgPointField},
	}
)

// Image encodings.
const (
	EncodingRGB8  = "rgb8"
	EncodingMono8 = "mono8"
)

// Image is sensor_msgs/Image.
type Image struct {
	Header      Header
	Height      uint32
	Width       uint32
	Encoding    string
	IsBigEndian uint8
	Step        uint32
	Data        []byte
}

func (m *Image) Type() *MessageType {
	return MsgImage
}

func (m *Image) Serialize(buf *bytes.Buffer) error {
	if want := int(m.Step) * int(m.Height); len(m.Data) != want {
		return fmt.Errorf("image data is %d bytes, step*height is %d", len(m.Data), want)
	}
	if err := m.Header.Serialize(buf); err != nil {
		return err
	}
	putUint32(buf, m.Height)
	putUint32(buf, m.Width)
	putString(buf, m.Encoding)
	putUint8(buf, m.IsBigEndian)
	putUint32(buf, m.Step)
	putBytes(buf, m.Data)
	return nil
}

// RegionOfInterest is sensor_msgs/RegionOfInterest.
type RegionOfInterest struct {
	XOffset   uint32
	YOffset   uint32
	Height    uint32
	Width     uint32
	DoRectify bool
}

// DistortionPlumbBob is the 5-parameter radial-tangential model.
const DistortionPlumbBob = "plumb_bob"

// CameraInfo is sensor_msgs/CameraInfo.
type CameraInfo struct {
	Header          Header
	Height          uint32
	Width           uint32
	DistortionModel string
	D               []float64
	K               [9]float64
	R               [9]float64
	P               [12]float64
	BinningX        uint32
	BinningY        uint32
	ROI             RegionOfInterest
}

func (m *CameraInfo) Type() *MessageType {
	return MsgCameraInfo
}

func (m *CameraInfo) Serialize(buf *bytes.Buffer) error {
	if err := m.Header.Serialize(buf); err != nil {
		return err
	}
	putUint32(buf, m.Height)
	putUint32(buf, m.Width)
	putString(buf, m.DistortionModel)
	putFloat64Slice(buf, m.D)
	putFloat64s(buf, m.K[:])
	putFloat64s(buf, m.R[:])
	putFloat64s(buf, m.P[:])
	putUint32(buf, m.BinningX)
	putUint32(buf, m.BinningY)
	putUint32(buf, m.ROI.XOffset)
	putUint32(buf, m.ROI.YOffset)
	putUint32(buf, m.ROI.Height)
	putUint32(buf, m.ROI.Width)
	putBool(buf, m.ROI.DoRectify)
	return nil
}

// PointField datatypes.
const (
	PointFieldInt8    uint8 = 1
	PointFieldUint8   uint8 = 2
	PointFieldInt16   uint8 = 3
	PointFieldUint16  uint8 = 4
	PointFieldInt32   uint8 = 5
	PointFieldUint32  uint8 = 6
	PointFieldFloat32 uint8 = 7
	PointFieldFloat64 uint8 = 8
)

// PointField is sensor_msgs/PointField.
type PointField struct {
	Name     string
	Offset   uint32
	Datatype uint8
	Count    uint32
}

func (f *PointField) serialize(buf *bytes.Buffer) {
	putString(buf, f.Name)
	putUint32(buf, f.Offset)
	putUint8(buf, f.Datatype)
	putUint32(buf, f.Count)
}

// PointCloud2 is sensor_msgs/PointCloud2.
type PointCloud2 struct {
	Header      Header
	Height      uint32
	Width       uint32
	Fields      []PointField
	IsBigEndian bool
	PointStep   uint32
	RowStep     uint32
	Data        []byte
	IsDense     bool
}

func (m *PointCloud2) Type() *MessageType {
	return MsgPointCloud2
}

func (m *PointCloud2) Serialize(buf *bytes.Buffer) error {
	if want := int(m.RowStep) * int(m.Height); len(m.Data) != want {
		return fmt.Errorf("point cloud data is %d bytes, row_step*height is %d", len(m.Data), want)
	}
	if err := m.Header.Serialize(buf); err != nil {
		return err
	}
	putUint32(buf, m.Height)
	putUint32(buf, m.Width)
	putUint32(buf, uint32(len(m.Fields)))
	for i := range m.Fields {
		m.Fields[i].serialize(buf)
	}
	putBool(buf, m.IsBigEndian)
	putUint32(buf, m.PointStep)
	putUint32(buf, m.RowStep)
	putBytes(buf, m.Data)
	putBool(buf, m.IsDense)
	return nil
}
