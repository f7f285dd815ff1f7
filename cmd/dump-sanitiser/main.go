// Command dump-sanitiser extracts media files from a whole-drive dump and
// clears out OS junk and the directories it leaves empty.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dump-sanitiser/internal/config"
	"dump-sanitiser/internal/database"
	"dump-sanitiser/internal/exitcodes"
	"dump-sanitiser/internal/logging"
	"dump-sanitiser/internal/metrics"
	"dump-sanitiser/internal/safety"
	"dump-sanitiser/internal/sanitise"
)

var errInvalidConfig = errors.New("invalid configuration")

// flagValues holds every flag; only the ones set on the command line
// override the configuration file
type flagValues struct {
	configPath       string
	dumpPath         string
	extractTo        string
	extensions       []string
	excludeDirs      []string
	removeCommonJunk bool
	removeSystemJunk bool
	removeWindowsDir bool
	removeEmptyDirs  bool
	makeDest         bool
	dryRun           bool
	dbPath           string
	metricsTextfile  string
	logLevel         string
	logFile          string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(
		ctx,
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	); err != nil {
		stop()
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	var fv flagValues

	cmd := &cobra.Command{
		Use:   "dump-sanitiser",
		Short: "Extract media from a drive dump and remove the junk",
		Long: `dump-sanitiser sanitises a directory tree copied off a storage device.
It deletes Windows system directories and well-known junk files, moves
media files (by extension) into a destination tree that mirrors the
source layout, and finally removes the directories left empty.

Settings come from an optional YAML file; flags given on the command
line take precedence over it.`,
		Example: `dump-sanitiser -d /mnt/dump -e /srv/media --make-dest
dump-sanitiser --config sanitise.yaml --dry-run
dump-sanitiser -d /mnt/dump -e /srv/media --extensions .jpg,.png --remove-empty-dirs=false`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.Flags(), &fv)
		},
	}

	bindFlags(cmd.Flags(), &fv)

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	})

	return cmd
}

func bindFlags(f *pflag.FlagSet, fv *flagValues) {
	f.StringVarP(&fv.configPath, "config", "c", "", "path to a YAML configuration file")
	f.StringVarP(&fv.dumpPath, "dump-path", "d", "", "top-level directory of the dump to sanitise")
	f.StringVarP(&fv.extractTo, "extract-to", "e", "", "directory that receives the extracted media files")
	f.StringSliceVar(&fv.extensions, "extensions", nil, "case-insensitive file name suffixes treated as media (default: built-in media list)")
	f.StringSliceVar(&fv.excludeDirs, "exclude-dirs", nil, "directories, relative to the dump, never extracted from (default: common Windows system dirs)")
	f.BoolVarP(&fv.removeCommonJunk, "remove-common-junk", "j", true, "remove common junk files such as Thumbs.db and .DS_Store")
	f.BoolVar(&fv.removeSystemJunk, "remove-system-junk", true, "remove system junk files such as pagefile.sys")
	f.BoolVar(&fv.removeWindowsDir, "remove-windows-dirs", true, "remove WINDOWS directories that contain system32")
	f.BoolVarP(&fv.removeEmptyDirs, "remove-empty-dirs", "r", true, "remove directories left empty afterwards")
	f.BoolVar(&fv.makeDest, "make-dest", false, "create the extraction directory if it does not exist")
	f.BoolVar(&fv.dryRun, "dry-run", false, "log every action without changing anything")
	f.StringVar(&fv.dbPath, "db", "", "SQLite file recording every action (default: no history)")
	f.StringVar(&fv.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
	f.StringVar(&fv.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	f.StringVar(&fv.logFile, "log-file", "", "also write logs to this file")
}

func run(ctx context.Context, flags *pflag.FlagSet, fv *flagValues) error {
	cfg := config.Default()
	if fv.configPath != "" {
		loaded, err := config.Load(fv.configPath)
		if err != nil {
			return fmt.Errorf("%w: %v", errInvalidConfig, err)
		}
		cfg = loaded
	}
	applyFlags(cfg, flags, fv)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}

	logger, err := logging.NewWithConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidConfig, err)
	}
	defer logger.Close()

	logger.Info("dump-sanitiser starting", "version", version, "config", fv.configPath)
	if cfg.DryRun {
		logger.Info("DRY RUN MODE: no files will be moved or deleted")
	}

	if cfg.MakeDest {
		if err := os.MkdirAll(cfg.ExtractTo, 0o755); err != nil {
			return &sanitise.InvalidPathError{Op: "create destination", Path: cfg.ExtractTo, Err: err}
		}
	}

	opts := []sanitise.Option{sanitise.WithDryRun(cfg.DryRun)}
	if cfg.DatabasePath != "" && !cfg.DryRun {
		logger.Info("Opening action history", "path", cfg.DatabasePath)
		db, err := database.NewActionDB(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open action history: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error("Failed to close database", "error", err)
			}
		}()
		opts = append(opts, sanitise.WithRecorder(db))
	}

	s := sanitise.New(logger, opts...)
	_, runErr := s.Run(ctx, cfg)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Error("Failed to write metrics", "error", err)
		}
	}

	if runErr != nil {
		if hint := sanitise.GetHint(runErr); hint != "" {
			logger.Error("Hint", "hint", hint)
		}
		return runErr
	}
	return nil
}

// applyFlags copies every explicitly set flag over cfg
func applyFlags(cfg *config.Config, flags *pflag.FlagSet, fv *flagValues) {
	set := func(name string) bool { return flags.Changed(name) }

	if set("dump-path") {
		cfg.DumpPath = fv.dumpPath
	}
	if set("extract-to") {
		cfg.ExtractTo = fv.extractTo
	}
	if set("extensions") {
		cfg.Extensions = fv.extensions
	}
	if set("exclude-dirs") {
		cfg.ExcludeDirs = fv.excludeDirs
	}
	if set("remove-common-junk") {
		cfg.RemoveCommonJunk = fv.removeCommonJunk
	}
	if set("remove-system-junk") {
		cfg.RemoveSystemJunk = fv.removeSystemJunk
	}
	if set("remove-windows-dirs") {
		cfg.RemoveWindowsDirs = fv.removeWindowsDir
	}
	if set("remove-empty-dirs") {
		cfg.RemoveEmptyDirs = fv.removeEmptyDirs
	}
	if set("make-dest") {
		cfg.MakeDest = fv.makeDest
	}
	if set("dry-run") {
		cfg.DryRun = fv.dryRun
	}
	if set("db") {
		cfg.DatabasePath = fv.dbPath
	}
	if set("metrics-textfile") {
		cfg.MetricsTextfile = fv.metricsTextfile
	}
	if set("log-level") {
		cfg.Logging.Level = fv.logLevel
	}
	if set("log-file") {
		cfg.Logging.File = fv.logFile
	}
}

// exitCode maps a run failure onto the process exit code contract
func exitCode(err error) int {
	var pathErr *sanitise.InvalidPathError
	switch {
	case err == nil:
		return exitcodes.Success
	case errors.Is(err, errInvalidConfig):
		return exitcodes.InvalidConfig
	case safety.IsViolation(err):
		return exitcodes.SafetyViolation
	case errors.As(err, &pathErr):
		return exitcodes.InvalidPath
	default:
		return exitcodes.RuntimeError
	}
}
