package convert

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/banshee-data/waymo2bag/internal/lidar"
	"github.com/banshee-data/waymo2bag/internal/rosmsg"
)

// Frame ids used in the output.
const (
	frameMap      = "map"
	frameBaseLink = "base_link"
)

// cameraToImage rotates the camera body frame (x forward, y left, z up)
// into the optical frame (z forward, x right, y down).
var cameraToImage = lidar.Transform{
	0, 0, 1, 0,
	-1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0, 1,
}

// toMat4 converts a row-major transform into mathgl's column-major layout.
func toMat4(t lidar.Transform) mgl64.Mat4 {
	var m mgl64.Mat4
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			m[col*4+row] = t.At(row, col)
		}
	}
	return m
}

// rosTransform splits t into a translation and a unit quaternion.
func rosTransform(t lidar.Transform) rosmsg.Transform {
	q := mgl64.Mat4ToQuat(toMat4(t)).Normalize()
	p := t.Translation()
	return rosmsg.Transform{
		Translation: rosmsg.Vector3{X: p.X, Y: p.Y, Z: p.Z},
		Rotation:    rosmsg.Quaternion{X: q.V[0], Y: q.V[1], Z: q.V[2], W: q.W},
	}
}

func transformStamped(parent, child string, stamp rosmsg.Time, t lidar.Transform) rosmsg.TransformStamped {
	return rosmsg.TransformStamped{
		Header:       rosmsg.Header{Stamp: stamp, FrameID: parent},
		ChildFrameID: child,
		Transform:    rosTransform(t),
	}
}
