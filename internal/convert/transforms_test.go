package convert

import (
	"math"
	"testing"

	"github.com/banshee-data/waymo2bag/internal/lidar"
	"github.com/banshee-data/waymo2bag/internal/rosmsg"
)

const tol = 1e-9

// quatMatrix expands a unit quaternion into a row-major rotation.
func quatMatrix(q rosmsg.Quaternion) [9]float64 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return [9]float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	}
}

func assertRotation(t *testing.T, tf lidar.Transform, q rosmsg.Quaternion) {
	t.Helper()
	norm := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if math.Abs(norm-1) > tol {
		t.Fatalf("quaternion %+v has norm %v", q, norm)
	}
	m := quatMatrix(q)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if got, want := m[row*3+col], tf.At(row, col); math.Abs(got-want) > 1e-9 {
				t.Errorf("R[%d][%d] = %v, want %v", row, col, got, want)
			}
		}
	}
}

func TestRosTransformIdentity(t *testing.T) {
	got := rosTransform(lidar.IdentityTransform())
	want := rosmsg.Transform{Rotation: rosmsg.IdentityQuaternion}
	if got != want {
		t.Fatalf("rosTransform(identity) = %+v, want %+v", got, want)
	}
}

func TestRosTransformYaw(t *testing.T) {
	tf := lidar.TransformFromPose6(0, 0, math.Pi/2, 1, 2, 3)
	got := rosTransform(tf)

	if got.Translation != (rosmsg.Vector3{X: 1, Y: 2, Z: 3}) {
		t.Errorf("translation = %+v, want (1, 2, 3)", got.Translation)
	}
	h := math.Sqrt2 / 2
	q := got.Rotation
	if math.Abs(q.X) > tol || math.Abs(q.Y) > tol || math.Abs(q.Z-h) > tol || math.Abs(q.W-h) > tol {
		t.Errorf("rotation = %+v, want (0, 0, %v, %v)", q, h, h)
	}
}

func TestRosTransformRoundTrip(t *testing.T) {
	cases := map[string]lidar.Transform{
		"camera to image":   cameraToImage,
		"rear lidar":        lidar.TransformFromPose6(0, 0, math.Pi, -1.154, 0, 0.46),
		"rolled and tilted": lidar.TransformFromPose6(0.3, -0.2, 2.5, 0, 0, 0),
		"side camera":       lidar.TransformFromPose6(0, 0, -1.57, 1.43, -0.16, 2.115).Mul(cameraToImage),
	}
	for name, tf := range cases {
		t.Run(name, func(t *testing.T) {
			assertRotation(t, tf, rosTransform(tf).Rotation)
		})
	}
}

func TestCameraToImageAxes(t *testing.T) {
	// The optical z axis looks along the body x axis, optical x points
	// right (body -y) and optical y points down (body -z).
	checks := []struct {
		name string
		col  int
		want [3]float64
	}{
		{"optical x", 0, [3]float64{0, -1, 0}},
		{"optical y", 1, [3]float64{0, 0, -1}},
		{"optical z", 2, [3]float64{1, 0, 0}},
	}
	for _, c := range checks {
		for row := 0; row < 3; row++ {
			if got := cameraToImage.At(row, c.col); got != c.want[row] {
				t.Errorf("%s row %d = %v, want %v", c.name, row, got, c.want[row])
			}
		}
	}
}

func TestToMat4ColumnMajor(t *testing.T) {
	tf := lidar.TransformFromPose6(0, 0, 0, 4, 5, 6)
	m := toMat4(tf)
	if m[12] != 4 || m[13] != 5 || m[14] != 6 {
		t.Fatalf("translation column = (%v, %v, %v), want (4, 5, 6)", m[12], m[13], m[14])
	}
}
