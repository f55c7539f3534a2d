package waymo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/waymo2bag/internal/lidar"
)

func syntheticFrame(t *testing.T, opts ...SyntheticOption) *Frame {
	t.Helper()
	g := NewSyntheticGenerator("scan-test", append([]SyntheticOption{WithSeed(7)}, opts...)...)
	g.BeamCount, g.AzimuthSamples = 4, 8
	f, err := g.NextFrame()
	require.NoError(t, err)
	return f
}

func TestLidarScans_Selected(t *testing.T) {
	f := syntheticFrame(t)

	scans, err := f.LidarScans([]lidar.LaserName{lidar.LaserFront, lidar.LaserTop})
	require.NoError(t, err)
	require.Len(t, scans, 2)

	front, top := scans[0], scans[1]
	assert.Equal(t, lidar.LaserFront, front.Calibration.Laser)
	assert.Nil(t, front.PixelPose)
	assert.Empty(t, front.Calibration.BeamInclinations)

	assert.Equal(t, lidar.LaserTop, top.Calibration.Laser)
	require.NotNil(t, top.PixelPose)
	assert.Equal(t, 4, top.PixelPose.Height)
	assert.Equal(t, 8, top.PixelPose.Width)
	assert.Len(t, top.Calibration.BeamInclinations, 4)
	for _, ri := range top.Returns {
		require.NotNil(t, ri)
		assert.NoError(t, ri.Validate())
	}
	assert.NoError(t, top.Calibration.Extrinsic.CheckRigid())
}

func TestLidarScans_MissingCalibration(t *testing.T) {
	f := syntheticFrame(t)
	f.Context.LaserCalibrations = f.Context.LaserCalibrations[1:] // drop top

	_, err := f.LidarScans([]lidar.LaserName{lidar.LaserTop})
	require.ErrorIs(t, err, lidar.ErrMalformedFrame)
	assert.Contains(t, err.Error(), "top")
}

func TestLidarScans_MissingLaserRecord(t *testing.T) {
	f := syntheticFrame(t, WithSensors([]lidar.LaserName{lidar.LaserTop}, nil))
	f.Lasers = nil

	_, err := f.LidarScans([]lidar.LaserName{lidar.LaserTop})
	require.ErrorIs(t, err, lidar.ErrMalformedFrame)
}

func TestLidarScans_TopWithoutPoseGrid(t *testing.T) {
	f := syntheticFrame(t)
	f.Lasers[0].Return1.RangeImagePoseCompressed = nil

	_, err := f.LidarScans([]lidar.LaserName{lidar.LaserTop})
	require.ErrorIs(t, err, lidar.ErrMalformedFrame)
}

func TestLidarScans_CorruptPayload(t *testing.T) {
	f := syntheticFrame(t)
	f.Lasers[1].Return1.RangeImageCompressed = []byte{0x78, 0x9c, 0x00}

	_, err := f.LidarScans([]lidar.LaserName{lidar.LaserFront})
	require.ErrorIs(t, err, lidar.ErrMalformedFrame)
}

func TestLidarScans_EmptyReturnsLeftToAssembler(t *testing.T) {
	f := syntheticFrame(t)
	f.Lasers[2].Return1 = nil
	f.Lasers[2].Return2 = &RangeImage{}

	scans, err := f.LidarScans([]lidar.LaserName{lidar.LaserSideLeft})
	require.NoError(t, err)
	assert.Nil(t, scans[0].Returns[lidar.FirstReturn])
	assert.Nil(t, scans[0].Returns[lidar.SecondReturn])

	returns, err := lidar.NewEngine(lidar.GeometryOptions{}).ConvertScans(lidar.IdentityTransform(), scans)
	require.NoError(t, err)
	_, err = lidar.AssembleClouds(returns, []lidar.LaserName{lidar.LaserSideLeft}, true)
	assert.True(t, errors.Is(err, lidar.ErrInvalidSensorData))
}

func TestLidarScans_UnselectedNotInspected(t *testing.T) {
	f := syntheticFrame(t)
	// Corrupt everything about the rear lidar.
	f.Lasers[4].Return1.RangeImageCompressed = []byte("garbage")
	f.Context.LaserCalibrations[4].Extrinsic = nil

	_, err := f.LidarScans([]lidar.LaserName{lidar.LaserTop})
	assert.NoError(t, err)
}

func TestLidarScans_NonRigidExtrinsic(t *testing.T) {
	f := syntheticFrame(t)
	ext := f.Context.LaserCalibrations[0].Extrinsic
	for _, i := range []int{0, 5, 10} {
		ext[i] *= 2 // scale the rotation block
	}

	_, err := f.LidarScans([]lidar.LaserName{lidar.LaserTop})
	require.Error(t, err)
	assert.True(t, errors.Is(err, lidar.ErrMalformedFrame), "got %v", err)
	assert.Contains(t, err.Error(), "extrinsic")
}

func TestPoseTransform_Rigid(t *testing.T) {
	f := syntheticFrame(t)
	pose, err := f.PoseTransform()
	require.NoError(t, err)
	assert.NoError(t, pose.CheckRigid())

	f.Pose[1] = 0.7 // shear
	_, err = f.PoseTransform()
	assert.True(t, errors.Is(err, lidar.ErrMalformedFrame), "got %v", err)

	f.Pose = f.Pose[:12]
	_, err = f.PoseTransform()
	assert.True(t, errors.Is(err, lidar.ErrMalformedFrame), "got %v", err)
}
