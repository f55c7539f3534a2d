package rosmsg

import "bytes"

var MsgHeader = &MessageType{
	Name:   "std_msgs/Header",
	MD5Sum: "2176decaecbce78abc3b96ef049fabed",
	Text: `# Standard metadata for higher-level stamped data types.
uint32 seq
time stamp
string frame_id
`,
}

// Header is std_msgs/Header.
type Header struct {
	Seq     uint32
	Stamp   Time
	FrameID string
}

func (m *Header) Type() *MessageType {
	return MsgHeader
}

func (m *Header) Serialize(buf *bytes.Buffer) error {
	putUint32(buf, m.Seq)
	putTime(buf, m.Stamp)
	putString(buf, m.FrameID)
	return nil
}
