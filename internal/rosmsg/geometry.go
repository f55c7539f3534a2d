package rosmsg

import "bytes"

var (
	MsgVector3 = &MessageType{
		Name:   "geometry_msgs/Vector3",
		MD5Sum: "4a842b65f413084dc2b10fb484ea7f17",
		Text:   "float64 x\nfloat64 y\nfloat64 z\n",
	}
	MsgPoint = &MessageType{
		Name:   "geometry_msgs/Point",
		MD5Sum: "4a842b65f413084dc2b10fb484ea7f17",
		Text:   "float64 x\nfloat64 y\nfloat64 z\n",
	}
	MsgQuaternion = &MessageType{
		Name:   "geometry_msgs/Quaternion",
		MD5Sum: "a779879fadf0160734f906b8c19c7004",
		Text:   "float64 x\nfloat64 y\nfloat64 z\nfloat64 w\n",
	}
	MsgTransform = &MessageType{
		Name:   "geometry_msgs/Transform",
		MD5Sum: "ac9eff44abf714214112b05d54a3cf9b",
		Text:   "Vector3 translation\nQuaternion rotation\n",
		Deps:   []*MessageType{MsgVector3, MsgQuaternion},
	}
	MsgTransformStamped = &MessageType{
		Name:   "geometry_msgs/TransformStamped",
		MD5Sum: "b5764a33bfeb3588febc2682852579b0",
		Text: `# The frame id in the header is the parent frame, child_frame_id the child.
Header header
string child_frame_id
Transform transform
`,
		Deps: []*MessageType{MsgHeader, MsgTransform, MsgVector3, MsgQuaternion},
	}
	MsgPose = &MessageType{
		Name:   "geometry_msgs/Pose",
		MD5Sum: "e45d45a5a1ce597b249e23fb30fc871f",
		Text:   "Point position\nQuaternion orientation\n",
		Deps:   []*MessageType{MsgPoint, MsgQuaternion},
	}
	MsgPoseWithCovariance = &MessageType{
		Name:   "geometry_msgs/PoseWithCovariance",
		MD5Sum: "c23e848cf1b7533a8d7c259073a97e6f",
		Text:   "Pose pose\n# Row-major 6x6 covariance: x, y, z, rotation about X, Y, Z.\nfloat64[36] covariance\n",
		Deps:   []*MessageType{MsgPose, MsgPoint, MsgQuaternion},
	}
	MsgTwist = &MessageType{
		Name:   "geometry_msgs/Twist",
		MD5Sum: "9f195f881246fdfa2798d1d3eebca84a",
		Text:   "Vector3  linear\nVector3  angular\n",
		Deps:   []*MessageType{MsgVector3},
	}
	MsgTwistWithCovariance = &MessageType{
		Name:   "geometry_msgs/TwistWithCovariance",
		MD5Sum: "1fe8a28e6890a4cc3ae4c3ca5c7d82e6",
		Text:   "Twist twist\nfloat64[36] covariance\n",
		Deps:   []*MessageType{MsgTwist, MsgVector3},
	}
)

// Vector3 is geometry_msgs/Vector3; it also stands in for Point.
type Vector3 struct {
	X, Y, Z float64
}

func (v Vector3) serialize(buf *bytes.Buffer) {
	putFloat64(buf, v.X)
	putFloat64(buf, v.Y)
	putFloat64(buf, v.Z)
}

// Quaternion is geometry_msgs/Quaternion.
type Quaternion struct {
	X, Y, Z, W float64
}

// IdentityQuaternion is the zero rotation.
var IdentityQuaternion = Quaternion{W: 1}

func (q Quaternion) serialize(buf *bytes.Buffer) {
	putFloat64(buf, q.X)
	putFloat64(buf, q.Y)
	putFloat64(buf, q.Z)
	putFloat64(buf, q.W)
}

// Transform is geometry_msgs/Transform.
type Transform struct {
	Translation Vector3
	Rotation    Quaternion
}

func (t Transform) serialize(buf *bytes.Buffer) {
	t.Translation.serialize(buf)
	t.Rotation.serialize(buf)
}

// TransformStamped is geometry_msgs/TransformStamped.
type TransformStamped struct {
	Header       Header
	ChildFrameID string
	Transform    Transform
}

func (m *TransformStamped) Type() *MessageType {
	return MsgTransformStamped
}

func (m *TransformStamped) Serialize(buf *bytes.Buffer) error {
	if err := m.Header.Serialize(buf); err != nil {
		return err
	}
	putString(buf, m.ChildFrameID)
	m.Transform.serialize(buf)
	return nil
}

// Pose is geometry_msgs/Pose.
type Pose struct {
	Position    Vector3
	Orientation Quaternion
}

// PoseWithCovariance is geometry_msgs/PoseWithCovariance.
type PoseWithCovariance struct {
	Pose       Pose
	Covariance [36]float64
}

func (p *PoseWithCovariance) serialize(buf *bytes.Buffer) {
	p.Pose.Position.serialize(buf)
	p.Pose.Orientation.serialize(buf)
	putFloat64s(buf, p.Covariance[:])
}

// Twist is geometry_msgs/Twist.
type Twist struct {
	Linear  Vector3
	Angular Vector3
}

// TwistWithCovariance is geometry_msgs/TwistWithCovariance.
type TwistWithCovariance struct {
	Twist      Twist
	Covariance [36]float64
}

func (t *TwistWithCovariance) serialize(buf *bytes.Buffer) {
	t.Twist.Linear.serialize(buf)
	t.Twist.Angular.serialize(buf)
	putFloat64s(buf, t.Covariance[:])
}
