// Command conversion-report draws charts from a conversion catalog or a
// single segment.
//
// Point counts per frame for one unit of a catalogued run:
//
//	conversion-report -db waymo2bag.db -unit segment-1 -o points.png
//
// Bird's-eye preview of one frame of a segment:
//
//	conversion-report -tfrecord segment-1.tfrecord -frame 10 -o preview.html
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/waymo2bag/internal/config"
	"github.com/banshee-data/waymo2bag/internal/convert"
	"github.com/banshee-data/waymo2bag/internal/db"
	"github.com/banshee-data/waymo2bag/internal/lidar"
	"github.com/banshee-data/waymo2bag/internal/report"
	"github.com/banshee-data/waymo2bag/internal/waymo"
)

func main() {
	dbPath := flag.String("db", "", "conversion catalog")
	runID := flag.String("run", "", "run id (default: latest run)")
	unit := flag.String("unit", "", "unit to chart; lists the run's units when empty")
	tfrecord := flag.String("tfrecord", "", "segment to preview instead of reading a catalog")
	frame := flag.Int("frame", 0, "frame index to preview")
	configPath := flag.String("config", "", "conversion config selecting the lidars to preview")
	output := flag.String("o", "", "output file (.png for point counts, .html for previews)")
	flag.Parse()

	switch {
	case *tfrecord != "":
		if *output == "" {
			*output = "preview.html"
		}
		if err := preview(*tfrecord, *frame, *configPath, *output); err != nil {
			log.Fatalf("Preview failed: %v", err)
		}
	case *dbPath != "":
		if err := catalogReport(*dbPath, *runID, *unit, *output); err != nil {
			log.Fatalf("Report failed: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func catalogReport(path, runID, unit, output string) error {
	store, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return fmt.Errorf("no runs in %s", path)
	}
	if runID == "" {
		runID = runs[0].RunID
	}

	if unit == "" {
		return listUnits(store, runs, runID)
	}

	stats, err := store.FrameStats(runID, unit)
	if err != nil {
		return err
	}
	if output == "" {
		output = unit + "-points.png"
	}
	if err := report.PlotPointCounts(stats, output); err != nil {
		return err
	}
	log.Printf("✓ Created: %s (%d samples)", output, len(stats))
	return nil
}

func listUnits(store *db.DB, runs []db.ConversionRun, runID string) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "RUN\tSTARTED\tUNITS\tFAILED")
	for _, r := range runs {
		marker := ""
		if r.RunID == runID {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%d\t%d\n", r.RunID, marker, r.StartedAt.Format(time.RFC3339), r.Units, r.Failed)
	}
	fmt.Fprintln(tw)

	units, err := store.UnitResults(runID)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "UNIT\tSTATUS\tFRAMES\tMESSAGES\tERROR")
	for _, u := range units {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", u.Unit, u.Status, u.Frames, u.Messages, u.Error)
	}
	return nil
}

func preview(path string, index int, configPath, output string) error {
	cfg := config.EmptyConversionConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadConversionConfig(configPath); err != nil {
			return err
		}
	}
	opts, err := cfg.ToOptions()
	if err != nil {
		return err
	}
	if len(opts.Lasers) == 0 {
		return fmt.Errorf("no lidar selected")
	}

	f, err := readFrame(path, index)
	if err != nil {
		return err
	}
	clouds, err := convert.FrameClouds(f, opts)
	if err != nil {
		return err
	}

	out, err := os.Create(output)
	if err != nil {
		return err
	}
	names := make([]string, len(clouds))
	for i, c := range clouds {
		names[i] = c.Laser.String()
	}
	title := fmt.Sprintf("%s frame %d (%s)", convert.UnitName(path), index, strings.Join(names, ","))
	if err := report.RenderBirdsEye(lidar.ConcatenateClouds(clouds), title, out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	log.Printf("✓ Created: %s", output)
	return nil
}

func readFrame(path string, index int) (*waymo.Frame, error) {
	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	r := waymo.NewReader(in)
	for i := 0; ; i++ {
		record, err := r.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%s has %d frames, frame %d requested", path, i, index)
		}
		if err != nil {
			return nil, err
		}
		if i == index {
			return waymo.DecodeFrame(record)
		}
	}
}
