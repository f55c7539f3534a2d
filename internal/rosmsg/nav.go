package rosmsg

import "bytes"

var MsgOdometry = &MessageType{
	Name:   "nav_msgs/Odometry",
	MD5Sum: "cd5e73d190d741a2f92e81eda573aca7",
	Text: `# Pose is in header.frame_id, twist in child_frame_id.
Header header
string child_frame_id
geometry_msgs/PoseWithCovariance pose
geometry_msgs/TwistWithCovariance twist
`,
	Deps: []*MessageType{
		MsgHeader, MsgPoseWithCovariance, MsgPose, MsgPoint, MsgQuaternion,
		MsgTwistWithCovariance, MsgTwist, MsgVector3,
	},
}

// Odometry is nav_msgs/Odometry.
type Odometry struct {
	Header       Header
	ChildFrameID string
	Pose         PoseWithCovariance
	Twist        TwistWithCovariance
}

func (m *Odometry) Type() *MessageType {
	return MsgOdometry
}

func (m *Odometry) Serialize(buf *bytes.Buffer) error {
	if err := m.Header.Serialize(buf); err != nil {
		return err
	}
	putString(buf, m.ChildFrameID)
	m.Pose.serialize(buf)
	m.Twist.serialize(buf)
	return nil
}
