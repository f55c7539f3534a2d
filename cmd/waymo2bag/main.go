// Command waymo2bag converts a directory of Waymo Open Dataset segments
// (.tfrecord) into ROS1 bags, one bag per segment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/waymo2bag/internal/config"
	"github.com/banshee-data/waymo2bag/internal/convert"
	"github.com/banshee-data/waymo2bag/internal/db"
	"github.com/banshee-data/waymo2bag/internal/monitoring"
	"github.com/banshee-data/waymo2bag/internal/version"
)

var (
	loadDir     = flag.String("load-dir", "/data/tfrecord", "Directory of .tfrecord segments to convert")
	saveDir     = flag.String("save-dir", "/data/rosbag", "Directory the .bag files are written to")
	configPath  = flag.String("config", "", "Path to a JSON conversion config (defaults apply when empty)")
	dbPath      = flag.String("db", "", "Optional SQLite catalog recording runs and per-frame statistics")
	progress    = flag.Bool("progress", false, "Show a progress bar per segment")
	diag        = flag.Bool("diag", false, "Enable the diagnostic log stream")
	trace       = flag.Bool("trace", false, "Enable the per-frame trace log stream")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx))
}

// run performs one conversion from the parsed flags and returns the exit
// status.
func run(ctx context.Context) int {
	configureLogging(*diag, *trace)

	opts, err := loadOptions(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 2
	}

	c := &convert.Converter{Options: opts, Progress: *progress}
	if *dbPath != "" {
		store, err := db.NewDB(*dbPath)
		if err != nil {
			log.Printf("Failed to open catalog %s: %v", *dbPath, err)
			return 2
		}
		defer store.Close()
		c.Catalog = store
	}

	summary, err := c.Run(ctx, *loadDir, *saveDir)
	if err != nil {
		log.Printf("Conversion failed: %v", err)
		return 1
	}
	ok := len(summary.Units) - summary.Failed()
	monitoring.Opsf("converted %d/%d units into %s", ok, len(summary.Units), *saveDir)
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Print("Interrupted")
		return 1
	}
	if summary.Failed() > 0 {
		return 1
	}
	return 0
}

func configureLogging(diag, trace bool) {
	w := monitoring.LogWriters{Ops: os.Stderr}
	if diag {
		w.Diag = os.Stderr
	}
	if trace {
		w.Trace = os.Stderr
	}
	monitoring.SetLogWriters(w)
}

func loadOptions(path string) (convert.Options, error) {
	cfg := config.EmptyConversionConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadConversionConfig(path); err != nil {
			return convert.Options{}, err
		}
	}
	return cfg.ToOptions()
}

func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	path := fs.String("db", "waymo2bag.db", "SQLite catalog path")
	fs.Usage = db.PrintMigrateHelp
	if len(args) == 0 {
		db.PrintMigrateHelp()
		os.Exit(1)
	}
	action := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		os.Exit(1)
	}
	db.RunMigrateCommand([]string{action}, *path)
}
