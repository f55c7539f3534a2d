package rosmsg

import "bytes"

var MsgTFMessage = &MessageType{
	Name:   "tf2_msgs/TFMessage",
	MD5Sum: "94810edda583a504dfda3829e70d7eec",
	Text:   "geometry_msgs/TransformStamped[] transforms\n",
	Deps:   []*MessageType{MsgTransformStamped, MsgHeader, MsgTransform, MsgVector3, MsgQuaternion},
}

// TFMessage is tf2_msgs/TFMessage.
type TFMessage struct {
	Transforms []TransformStamped
}

func (m *TFMessage) Type() *MessageType {
	return MsgTFMessage
}

func (m *TFMessage) Serialize(buf *bytes.Buffer) error {
	putUint32(buf, uint32(len(m.Transforms)))
	for i := range m.Transforms {
		if err := m.Transforms[i].Serialize(buf); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether m and o carry the same transforms in the same
// order. Values are compared exactly.
func (m *TFMessage) Equal(o *TFMessage) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.Transforms) != len(o.Transforms) {
		return false
	}
	for i := range m.Transforms {
		if m.Transforms[i] != o.Transforms[i] {
			return false
		}
	}
	return true
}
