package convert

import (
	"errors"
	"fmt"

	"github.com/banshee-data/waymo2bag/internal/rosmsg"
)

// ErrStaticTransformMismatch is matched by StaticTransformMismatchError.
var ErrStaticTransformMismatch = errors.New("static transform mismatch")

// StaticTransformMismatchError reports a frame whose sensor-to-vehicle
// transforms differ from those of the unit's first frame.
type StaticTransformMismatchError struct {
	Frame int
	First *rosmsg.TFMessage
	Got   *rosmsg.TFMessage
}

func (e *StaticTransformMismatchError) Error() string {
	for i := range e.Got.Transforms {
		if i >= len(e.First.Transforms) {
			break
		}
		if e.Got.Transforms[i] != e.First.Transforms[i] {
			return fmt.Sprintf("static transform for %s changed at frame %d",
				e.Got.Transforms[i].ChildFrameID, e.Frame)
		}
	}
	return fmt.Sprintf("static transforms changed at frame %d: %d transforms, first frame had %d",
		e.Frame, len(e.Got.Transforms), len(e.First.Transforms))
}

func (e *StaticTransformMismatchError) Is(target error) bool {
	return target == ErrStaticTransformMismatch
}

// UnitError wraps a failure while converting one input unit. Frame is -1
// when the failure is not tied to a frame.
type UnitError struct {
	Unit  string
	Frame int
	Err   error
}

func (e *UnitError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("unit %s: %v", e.Unit, e.Err)
	}
	return fmt.Sprintf("unit %s frame %d: %v", e.Unit, e.Frame, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}
