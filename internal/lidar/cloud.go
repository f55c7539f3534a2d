package lidar

import (
	"fmt"
	"math"
)

// Cloud is an N×4 (x, y, z, intensity) array for one laser. Laser is
// LaserUnknown for a concatenated multi-sensor cloud.
type Cloud struct {
	Laser  LaserName
	Points [][4]float32
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

var (
	intensityUpper = math.Nextafter32(1, 0)
	intensityLower = math.Nextafter32(-1, 0)
)

// NormalizeIntensity squashes a raw sensor intensity into (-1, 1) with tanh.
// Saturated values are pulled to the nearest float32 inside the open
// interval.
func NormalizeIntensity(v float32) float32 {
	n := float32(math.Tanh(float64(v)))
	switch {
	case n >= 1:
		return intensityUpper
	case n <= -1:
		return intensityLower
	}
	return n
}

// AssembleCloud concatenates first then second return into one N×4 array.
// It fails with ErrInvalidSensorData when neither return is present.
func AssembleCloud(sr SensorReturns, normalize bool) (*Cloud, error) {
	total := 0
	present := 0
	for _, rc := range sr.Returns {
		if rc == nil {
			continue
		}
		if len(rc.Points) != len(rc.Intensity) {
			return nil, fmt.Errorf("%w: %s has %d points but %d intensities",
				ErrInvalidSensorData, sr.Laser, len(rc.Points), len(rc.Intensity))
		}
		present++
		total += rc.Len()
	}
	if present == 0 {
		return nil, fmt.Errorf("%w: no range image for laser %s", ErrInvalidSensorData, sr.Laser)
	}

	cloud := &Cloud{Laser: sr.Laser, Points: make([][4]float32, 0, total)}
	for _, rc := range sr.Returns {
		if rc == nil {
			continue
		}
		for i, p := range rc.Points {
			intensity := rc.Intensity[i]
			if normalize {
				intensity = NormalizeIntensity(intensity)
			}
			cloud.Points = append(cloud.Points, [4]float32{float32(p.X), float32(p.Y), float32(p.Z), intensity})
		}
	}
	return cloud, nil
}

// AssembleClouds builds one cloud per requested laser, in the requested
// order. A requested laser missing from returns fails with
// ErrInvalidSensorData.
func AssembleClouds(returns []SensorReturns, lasers []LaserName, normalize bool) ([]*Cloud, error) {
	byLaser := make(map[LaserName]SensorReturns, len(returns))
	for _, sr := range returns {
		byLaser[sr.Laser] = sr
	}

	clouds := make([]*Cloud, 0, len(lasers))
	for _, laser := range lasers {
		sr, ok := byLaser[laser]
		if !ok {
			sr = SensorReturns{Laser: laser}
		}
		cloud, err := AssembleCloud(sr, normalize)
		if err != nil {
			return nil, err
		}
		clouds = append(clouds, cloud)
	}
	return clouds, nil
}

// ConcatenateClouds joins clouds in order into one cloud without sensor
// identity.
func ConcatenateClouds(clouds []*Cloud) *Cloud {
	total := 0
	for _, c := range clouds {
		total += c.Len()
	}
	out := &Cloud{Laser: LaserUnknown, Points: make([][4]float32, 0, total)}
	for _, c := range clouds {
		if c == nil {
			continue
		}
		out.Points = append(out.Points, c.Points...)
	}
	return out
}
