package waymo

import (
	"fmt"

	"github.com/banshee-data/waymo2bag/internal/lidar"
)

// LidarScans extracts the calibration, range images and (for the top lidar)
// the per-pixel pose grid of every selected laser. Lasers that are not
// selected are never decoded.
func (f *Frame) LidarScans(selected []lidar.LaserName) ([]lidar.Scan, error) {
	scans := make([]lidar.Scan, 0, len(selected))
	for _, name := range selected {
		scan, err := f.lidarScan(name)
		if err != nil {
			return nil, fmt.Errorf("lidar %s: %w", name, err)
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

func (f *Frame) lidarScan(name lidar.LaserName) (lidar.Scan, error) {
	cal, ok := f.LaserCalibration(name)
	if !ok {
		return lidar.Scan{}, fmt.Errorf("%w: no calibration", lidar.ErrMalformedFrame)
	}
	extrinsic, err := cal.ExtrinsicTransform()
	if err != nil {
		return lidar.Scan{}, err
	}
	laser, ok := f.Laser(name)
	if !ok {
		return lidar.Scan{}, fmt.Errorf("%w: no laser record", lidar.ErrMalformedFrame)
	}

	scan := lidar.Scan{
		Calibration: lidar.Calibration{
			Laser:            name,
			Extrinsic:        extrinsic,
			BeamInclinations: cal.BeamInclinations,
			InclinationMin:   cal.BeamInclinationMin,
			InclinationMax:   cal.BeamInclinationMax,
		},
	}

	for i, ri := range []*RangeImage{laser.Return1, laser.Return2} {
		if ri == nil || len(ri.RangeImageCompressed) == 0 {
			continue
		}
		m, err := DecompressMatrix(ri.RangeImageCompressed)
		if err != nil {
			return lidar.Scan{}, fmt.Errorf("%w: return %d: %v", lidar.ErrMalformedFrame, i+1, err)
		}
		img, err := m.RangeImage()
		if err != nil {
			return lidar.Scan{}, fmt.Errorf("return %d: %w", i+1, err)
		}
		scan.Returns[i] = img
	}

	// The pose grid travels with the first return and serves both.
	if name == lidar.LaserTop && (scan.Returns[lidar.FirstReturn] != nil || scan.Returns[lidar.SecondReturn] != nil) {
		if laser.Return1 == nil || len(laser.Return1.RangeImagePoseCompressed) == 0 {
			return lidar.Scan{}, fmt.Errorf("%w: no range image pose", lidar.ErrMalformedFrame)
		}
		m, err := DecompressMatrix(laser.Return1.RangeImagePoseCompressed)
		if err != nil {
			return lidar.Scan{}, fmt.Errorf("%w: range image pose: %v", lidar.ErrMalformedFrame, err)
		}
		grid, err := m.PixelPoseGrid()
		if err != nil {
			return lidar.Scan{}, fmt.Errorf("range image pose: %w", err)
		}
		scan.PixelPose = grid
	}

	return scan, nil
}
