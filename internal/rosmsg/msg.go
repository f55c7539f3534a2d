// Package rosmsg implements the ROS1 messages written by the converter and
// their little-endian wire serialization.
package rosmsg

import (
	"bytes"
	"strings"
)

// MessageType describes a ROS message type as recorded in a bag
// connection header.
type MessageType struct {
	Name   string
	MD5Sum string
	// Text is the type's own definition without its dependencies.
	Text string
	// Deps lists every message type Text refers to, transitively, in the
	// order they appear in the full definition.
	Deps []*MessageType
}

const definitionSeparator = "================================================================================\n"

// Definition returns the full message definition with all dependencies
// appended, as roscpp and rospy write it into bag connection records.
func (t *MessageType) Definition() string {
	var sb strings.Builder
	sb.WriteString(t.Text)
	for _, dep := range t.Deps {
		sb.WriteString(definitionSeparator)
		sb.WriteString("MSG: ")
		sb.WriteString(dep.Name)
		sb.WriteByte('\n')
		sb.WriteString(dep.Text)
	}
	return sb.String()
}

// Message is implemented by every serializable message.
type Message interface {
	Type() *MessageType
	Serialize(buf *bytes.Buffer) error
}

// Time is a ROS time: seconds and nanoseconds since the epoch.
type Time struct {
	Sec  uint32
	NSec uint32
}

// TimeFromMicros converts microseconds since the epoch.
func TimeFromMicros(us int64) Time {
	return Time{Sec: uint32(us / 1_000_000), NSec: uint32(us%1_000_000) * 1000}
}

// Nanos returns the time as nanoseconds since the epoch.
func (t Time) Nanos() int64 {
	return int64(t.Sec)*1_000_000_000 + int64(t.NSec)
}

// IsZero reports whether t is the zero time.
func (t Time) IsZero() bool {
	return t.Sec == 0 && t.NSec == 0
}

// Before reports whether t is earlier than u.
func (t Time) Before(u Time) bool {
	return t.Sec < u.Sec || (t.Sec == u.Sec && t.NSec < u.NSec)
}
