package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cheggaaa/pb/v3"

	"github.com/banshee-data/waymo2bag/internal/db"
	"github.com/banshee-data/waymo2bag/internal/monitoring"
	"github.com/banshee-data/waymo2bag/internal/timeutil"
)

// Catalog records runs, units and per-frame statistics. *db.DB implements
// it.
type Catalog interface {
	StartRun(loadDir, saveDir, settings string) (string, error)
	RecordUnit(runID string, u db.UnitRecord) error
	RecordFrameStats(runID, unit string, stats []db.FrameStat) error
	FinishRun(runID string, units, failed int) error
}

// Converter converts every unit of a directory.
type Converter struct {
	Options Options
	// Catalog is optional.
	Catalog Catalog
	// Progress shows a progress bar per unit on stderr.
	Progress bool
	// Clock times each unit; nil uses the wall clock.
	Clock timeutil.Clock
}

func (c *Converter) clock() timeutil.Clock {
	if c.Clock == nil {
		return timeutil.RealClock{}
	}
	return c.Clock
}

// RunSummary is the outcome of Run.
type RunSummary struct {
	RunID string
	Units []*UnitResult
}

// Failed returns the number of units that did not convert.
func (s *RunSummary) Failed() int {
	n := 0
	for _, u := range s.Units {
		if !u.OK() {
			n++
		}
	}
	return n
}

// Err joins the errors of every failed unit.
func (s *RunSummary) Err() error {
	var errs []error
	for _, u := range s.Units {
		if u.Err != nil {
			errs = append(errs, u.Err)
		}
	}
	return errors.Join(errs...)
}

// ListUnits returns the *.tfrecord files of dir in sorted order.
func ListUnits(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.tfrecord"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Run converts every unit in loadDir into saveDir. A failed unit does not
// stop the run; the returned error is only set when the run could not
// start. Cancelling ctx stops after the current frame.
func (c *Converter) Run(ctx context.Context, loadDir, saveDir string) (*RunSummary, error) {
	if err := c.Options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	units, err := ListUnits(loadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", loadDir, err)
	}
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", saveDir, err)
	}
	if len(units) == 0 {
		monitoring.Opsf("no .tfrecord files in %s", loadDir)
	}

	summary := &RunSummary{}
	if c.Catalog != nil {
		id, err := c.Catalog.StartRun(loadDir, saveDir, c.settingsJSON())
		if err != nil {
			return nil, fmt.Errorf("failed to start catalog run: %w", err)
		}
		summary.RunID = id
	}

	monitoring.Opsf("converting %d units from %s to %s", len(units), loadDir, saveDir)
	seen := make(map[string]string, len(units))
	for i, src := range units {
		name := UnitName(src)
		dst := filepath.Join(saveDir, name+".bag")

		var res *UnitResult
		if prev, dup := seen[name]; dup {
			err := &UnitError{Unit: name, Frame: -1, Err: fmt.Errorf("output %s already written for %s", dst, prev)}
			res = &UnitResult{Name: name, Source: src, Output: dst, Err: err}
		} else {
			seen[name] = src
			res, _ = c.ConvertUnit(ctx, src, dst)
		}
		summary.Units = append(summary.Units, res)

		if res.OK() {
			monitoring.Opsf("[%d/%d] %s: %d frames", i+1, len(units), name, res.Frames)
		} else {
			monitoring.Opsf("[%d/%d] %s failed: %v", i+1, len(units), name, res.Err)
		}
		c.record(summary.RunID, res)

		if ctx.Err() != nil {
			monitoring.Opsf("run cancelled after %s", name)
			break
		}
	}

	if c.Catalog != nil {
		if err := c.Catalog.FinishRun(summary.RunID, len(summary.Units), summary.Failed()); err != nil {
			monitoring.Opsf("catalog: failed to finish run %s: %v", summary.RunID, err)
		}
	}
	return summary, nil
}

func (c *Converter) record(runID string, res *UnitResult) {
	if c.Catalog == nil {
		return
	}
	if err := c.Catalog.RecordUnit(runID, unitRecord(res)); err != nil {
		monitoring.Opsf("catalog: failed to record unit %s: %v", res.Name, err)
		return
	}
	if len(res.Stats) == 0 {
		return
	}
	if err := c.Catalog.RecordFrameStats(runID, res.Name, frameStats(res.Stats)); err != nil {
		monitoring.Opsf("catalog: failed to record frame stats for %s: %v", res.Name, err)
	}
}

func unitRecord(res *UnitResult) db.UnitRecord {
	rec := db.UnitRecord{
		Unit:       res.Name,
		Source:     res.Source,
		Output:     res.Output,
		Frames:     res.Frames,
		DurationMS: res.Duration.Milliseconds(),
		Status:     db.StatusOK,
	}
	for _, n := range res.Messages {
		rec.Messages += n
	}
	if res.Err != nil {
		rec.Status = db.StatusFailed
		rec.Error = res.Err.Error()
		var ue *UnitError
		if errors.As(res.Err, &ue) && ue.Frame >= 0 {
			rec.FailedFrame = &ue.Frame
		}
	}
	return rec
}

func frameStats(stats []FrameStats) []db.FrameStat {
	var out []db.FrameStat
	for _, fs := range stats {
		for _, sp := range fs.Points {
			out = append(out, db.FrameStat{
				FrameIndex:      fs.Index,
				TimestampMicros: fs.TimestampMicros,
				Sensor:          sp.Laser.String(),
				Points:          sp.Points,
			})
		}
	}
	return out
}

// settingsJSON describes the options with sensor names rather than enum
// values.
func (c *Converter) settingsJSON() string {
	lasers := make([]string, len(c.Options.Lasers))
	for i, l := range c.Options.Lasers {
		lasers[i] = l.String()
	}
	cameras := make([]string, len(c.Options.Cameras))
	for i, cam := range c.Options.Cameras {
		cameras[i] = cam.String()
	}
	b, err := json.Marshal(map[string]interface{}{
		"lidar_sensors":         lasers,
		"camera_sensors":        cameras,
		"filter_no_label_zone":  c.Options.FilterNoLabelZone,
		"normalize_intensity":   c.Options.NormalizeIntensity,
		"concatenated_cloud":    c.Options.ConcatenatedCloud,
		"publish_tf":            c.Options.PublishTF,
		"chunk_threshold_bytes": c.Options.ChunkThreshold,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

const progressTemplate = `{{ string . "prefix" }} {{ counters . }} {{ bar . }} {{ percent . }} {{ etime . "%s elapsed" }}`

// newProgressBar tracks how much of the unit's file has been read.
func newProgressBar(name string, f *os.File) *pb.ProgressBar {
	var total int64
	if fi, err := f.Stat(); err == nil {
		total = fi.Size()
	}
	return pb.New64(total).
		SetTemplate(pb.ProgressBarTemplate(progressTemplate)).
		Set(pb.Bytes, true).
		Set("prefix", name).
		SetWriter(os.Stderr).
		Start()
}
