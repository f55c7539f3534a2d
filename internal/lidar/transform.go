package lidar

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Transform is a 4x4 homogeneous transform stored row-major:
// m00,m01,m02,m03, m10,... This matches the on-disk layout of frame poses
// and calibration extrinsics.
type Transform [16]float64

// RigidTolerance bounds how far a transform's rotation block may drift from
// orthonormal before CheckRigid rejects it.
const RigidTolerance = 0.01

// IdentityTransform returns the 4x4 identity.
func IdentityTransform() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// TransformFromSlice copies a row-major 16-element slice into a Transform.
func TransformFromSlice(v []float64) (Transform, error) {
	var t Transform
	if len(v) != len(t) {
		return t, fmt.Errorf("transform needs 16 values, got %d", len(v))
	}
	copy(t[:], v)
	return t, nil
}

// At returns element (row, col).
func (t Transform) At(row, col int) float64 {
	return t[row*4+col]
}

// Mul returns the composition t * o (o is applied first).
func (t Transform) Mul(o Transform) Transform {
	var out Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += t[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// Apply transforms point p (rotation then translation).
func (t Transform) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z + t[3],
		Y: t[4]*p.X + t[5]*p.Y + t[6]*p.Z + t[7],
		Z: t[8]*p.X + t[9]*p.Y + t[10]*p.Z + t[11],
	}
}

// Translation returns the translation column.
func (t Transform) Translation() r3.Vector {
	return r3.Vector{X: t[3], Y: t[7], Z: t[11]}
}

// Inverse returns the inverse transform. Poses are not assumed rigid, so the
// full 4x4 inverse is taken.
func (t Transform) Inverse() (Transform, error) {
	data := make([]float64, 16)
	copy(data, t[:])
	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(4, 4, data)); err != nil {
		return Transform{}, fmt.Errorf("transform is not invertible: %w", err)
	}
	var out Transform
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = inv.At(r, c)
		}
	}
	return out, nil
}

// RotationFromRPY builds the rotation Rz(yaw) * Ry(pitch) * Rx(roll) as a
// transform with zero translation.
func RotationFromRPY(roll, pitch, yaw float64) Transform {
	sr, cr := math.Sincos(roll)
	sp, cp := math.Sincos(pitch)
	sy, cy := math.Sincos(yaw)
	return Transform{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr, 0,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr, 0,
		-sp, cp * sr, cp * cr, 0,
		0, 0, 0, 1,
	}
}

// TransformFromPose6 builds a transform from (roll, pitch, yaw, tx, ty, tz).
func TransformFromPose6(roll, pitch, yaw, tx, ty, tz float64) Transform {
	t := RotationFromRPY(roll, pitch, yaw)
	t[3], t[7], t[11] = tx, ty, tz
	return t
}

// SphericalToCartesian converts range (meters), azimuth and inclination
// (radians) into sensor-frame coordinates. Convention: X forward, Y left,
// Z up, azimuth measured counter-clockwise from X.
func SphericalToCartesian(rng, azimuth, inclination float64) r3.Vector {
	sinInc, cosInc := math.Sincos(inclination)
	sinAz, cosAz := math.Sincos(azimuth)
	return r3.Vector{
		X: rng * cosInc * cosAz,
		Y: rng * cosInc * sinAz,
		Z: rng * sinInc,
	}
}

// CheckRigid reports an error unless t is a proper rigid transform: the
// rotation block satisfies R·Rᵀ = I with det(R) = +1 (within
// RigidTolerance) and the bottom row is [0 0 0 1]. Scaled, sheared or
// reflected matrices are rejected; Inverse and the quaternion conversion
// require a rotation.
func (t Transform) CheckRigid() error {
	for _, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite element %v", v)
		}
	}
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			dot := t.At(i, 0)*t.At(j, 0) + t.At(i, 1)*t.At(j, 1) + t.At(i, 2)*t.At(j, 2)
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(dot-want) > RigidTolerance {
				return fmt.Errorf("rotation rows %d,%d not orthonormal (dot %.4f)", i, j, dot)
			}
		}
	}
	det := t[0]*(t[5]*t[10]-t[6]*t[9]) - t[1]*(t[4]*t[10]-t[6]*t[8]) + t[2]*(t[4]*t[9]-t[5]*t[8])
	if math.Abs(det-1) > RigidTolerance {
		return fmt.Errorf("rotation determinant %.4f, want 1", det)
	}
	if t[12] != 0 || t[13] != 0 || t[14] != 0 || t[15] != 1 {
		return fmt.Errorf("bottom row %v, want [0 0 0 1]", t[12:])
	}
	return nil
}
