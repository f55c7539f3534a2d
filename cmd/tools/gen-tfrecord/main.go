// Command gen-tfrecord writes synthetic Waymo segments for testing the
// converter.
package main

import (
	"bufio"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/banshee-data/waymo2bag/internal/convert"
	"github.com/banshee-data/waymo2bag/internal/lidar"
	"github.com/banshee-data/waymo2bag/internal/waymo"
)

func main() {
	output := flag.String("o", "segment-synthetic.tfrecord", "output path")
	frames := flag.Int("n", 20, "number of frames")
	seed := flag.Int64("seed", 1, "random seed")
	lasers := flag.String("lidars", "top,front,side_left,side_right,rear", "comma-separated lidars to generate")
	cameras := flag.String("cameras", "front,front_left,front_right,side_left,side_right", "comma-separated cameras to generate")
	driftFrame := flag.Int("drift-frame", -1, "frame on which the front camera calibration changes (-1 disables)")
	driftMetres := flag.Float64("drift", 0.05, "size of the calibration change in metres")
	flag.Parse()

	laserNames, err := waymo.ParseLaserNames(splitList(*lasers))
	if err != nil {
		log.Fatalf("Invalid -lidars: %v", err)
	}
	cameraNames, err := waymo.ParseCameraNames(splitList(*cameras))
	if err != nil {
		log.Fatalf("Invalid -cameras: %v", err)
	}

	opts := []waymo.SyntheticOption{
		waymo.WithSeed(*seed),
		waymo.WithSensors(laserNames, cameraNames),
	}
	if *driftFrame >= 0 {
		opts = append(opts, waymo.WithExtrinsicDrift(*driftFrame, *driftMetres))
	}
	gen := waymo.NewSyntheticGenerator(convert.UnitName(*output), opts...)

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *output, err)
	}
	w := bufio.NewWriter(f)
	if err := gen.WriteSegment(w, *frames); err != nil {
		f.Close()
		os.Remove(*output)
		log.Fatalf("Failed to generate segment: %v", err)
	}
	if err := w.Flush(); err != nil {
		log.Fatalf("Failed to write %s: %v", *output, err)
	}
	if err := f.Close(); err != nil {
		log.Fatalf("Failed to close %s: %v", *output, err)
	}
	log.Printf("✓ Created: %s (%d frames, lidars=%v)", *output, *frames, lidarList(laserNames))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lidarList(names []lidar.LaserName) string {
	s := make([]string, len(names))
	for i, n := range names {
		s[i] = n.String()
	}
	return strings.Join(s, ",")
}
