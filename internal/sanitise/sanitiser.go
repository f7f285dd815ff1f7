// Package sanitise relocates media out of a drive dump, deletes known junk
// and prunes the directories left empty.
package sanitise

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"dump-sanitiser/internal/config"
	"dump-sanitiser/internal/database"
	"dump-sanitiser/internal/disk"
	"dump-sanitiser/internal/fsops"
	"dump-sanitiser/internal/logging"
	"dump-sanitiser/internal/metrics"
	"dump-sanitiser/internal/safety"
	"dump-sanitiser/internal/scan"
)

// Phase names, in the order a run executes them
const (
	PhaseSystemDirs = "system_dirs"
	PhaseCommonJunk = "common_junk"
	PhaseSystemJunk = "system_junk"
	PhaseExtract    = "extract"
	PhasePrune      = "prune"
)

// Logger is the leveled logging the sanitiser writes to
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// Recorder persists one row per mutating action
type Recorder interface {
	RecordAction(rec database.ActionRecord) error
}

// Sanitiser performs sanitise operations with structured logging
type Sanitiser struct {
	logger   Logger
	fs       fsops.FS
	recorder Recorder
	dryRun   bool
	runID    string

	// paths a dry run has treated as deleted or moved; later walks skip them
	simulated DeletedDirs
}

// Option configures a Sanitiser
type Option func(*Sanitiser)

// WithFS routes every mutation through fs
func WithFS(fs fsops.FS) Option {
	return func(s *Sanitiser) { s.fs = fs }
}

// WithRecorder stores every action in r
func WithRecorder(r Recorder) Option {
	return func(s *Sanitiser) { s.recorder = r }
}

// WithDryRun logs every action without touching the filesystem
func WithDryRun(dryRun bool) Option {
	return func(s *Sanitiser) { s.dryRun = dryRun }
}

// WithRunID overrides the generated run id
func WithRunID(id string) Option {
	return func(s *Sanitiser) { s.runID = id }
}

// New creates a Sanitiser. A nil logger logs to stdout.
func New(logger Logger, opts ...Option) *Sanitiser {
	metrics.Init()

	s := &Sanitiser{
		logger: logger,
		fs:        fsops.OSDeleter{},
		runID:     uuid.NewString(),
		simulated: DeletedDirs{},
	}
	if s.logger == nil {
		s.logger = logging.New()
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, isOS := s.fs.(fsops.OSDeleter); isOS && s.dryRun {
		s.fs = &fsops.FakeDeleter{}
	}
	return s
}

// RunID identifies this sanitiser's rows in the action history
func (s *Sanitiser) RunID() string {
	return s.runID
}

// Report summarises a run. On failure it holds what completed before the
// failing step.
type Report struct {
	RunID             string
	DryRun            bool
	SystemDirsRemoved int
	CommonJunkRemoved int
	SystemJunkRemoved int
	FilesMoved        int
	BytesMoved        int64
	Pruned            DeletedDirs
	Duration          time.Duration
}

type phase struct {
	name    string
	enabled bool
	run     func() error
}

// Run sanitises cfg.DumpPath in fixed order: system directories, common
// junk, system junk, media extraction, empty directory pruning. The first
// failure stops the run; steps already applied stand. ctx is honoured
// between phases only.
func (s *Sanitiser) Run(ctx context.Context, cfg *config.Config) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: s.runID, DryRun: s.dryRun, Pruned: DeletedDirs{}}
	s.simulated = DeletedDirs{}

	src, err := absClean(cfg.DumpPath)
	if err != nil {
		return report, &InvalidPathError{Op: "resolve source", Path: cfg.DumpPath, Err: err}
	}
	dst, err := absClean(cfg.ExtractTo)
	if err != nil {
		return report, &InvalidPathError{Op: "resolve destination", Path: cfg.ExtractTo, Err: err}
	}

	if err := s.preflight(src, dst); err != nil {
		return report, err
	}

	s.logger.Info("Starting sanitise run",
		"run_id", s.runID,
		"dump_path", src,
		"extract_to", dst,
		"dry_run", s.dryRun,
	)

	// A destination nested in the dump must survive pruning
	var keep []string
	if nestedIn(dst, src) {
		keep = append(keep, dst)
	}

	phases := []phase{
		{PhaseSystemDirs, cfg.RemoveWindowsDirs, func() (err error) {
			report.SystemDirsRemoved, err = s.RemoveSystemDirectories(src, cfg.SystemDirs)
			return err
		}},
		{PhaseCommonJunk, cfg.RemoveCommonJunk, func() (err error) {
			report.CommonJunkRemoved, err = s.RemoveJunk(src, cfg.CommonJunkFiles, "common")
			return err
		}},
		{PhaseSystemJunk, cfg.RemoveSystemJunk, func() (err error) {
			report.SystemJunkRemoved, err = s.RemoveJunk(src, cfg.SystemJunkFiles, "system")
			return err
		}},
		{PhaseExtract, true, func() (err error) {
			report.FilesMoved, report.BytesMoved, err = s.Extract(src, dst, cfg.Extensions, cfg.ExcludeDirs)
			return err
		}},
		{PhasePrune, cfg.RemoveEmptyDirs, func() (err error) {
			report.Pruned, err = s.PruneEmptyDirectories(src, keep...)
			return err
		}},
	}

	for _, p := range phases {
		if !p.enabled {
			s.logger.Debug("Skipping disabled phase", "phase", p.name)
			continue
		}
		if err := ctx.Err(); err != nil {
			return s.finish(report, start, fmt.Errorf("run stopped before %s: %w", p.name, err))
		}

		s.logger.Info("Starting phase", "phase", p.name)
		phaseStart := time.Now()
		err := p.run()
		metrics.RecordPhase(p.name, time.Since(phaseStart))
		if err != nil {
			metrics.ErrorsTotal.WithLabelValues(p.name).Inc()
			s.logger.Error("Phase failed", "phase", p.name, "error", err)
			return s.finish(report, start, err)
		}
	}

	return s.finish(report, start, nil)
}

func (s *Sanitiser) finish(report *Report, start time.Time, err error) (*Report, error) {
	report.Duration = time.Since(start)
	if err == nil {
		metrics.RecordRun(report.Duration)
	}

	s.logger.Info("Sanitise run complete",
		"run_id", report.RunID,
		"ok", err == nil,
		"system_dirs", report.SystemDirsRemoved,
		"common_junk", report.CommonJunkRemoved,
		"system_junk", report.SystemJunkRemoved,
		"moved", report.FilesMoved,
		"moved_size", humanize.IBytes(uint64(report.BytesMoved)),
		"pruned", report.Pruned.Len(),
		"duration", report.Duration.Round(time.Millisecond),
	)
	return report, err
}

// preflight checks both roots before anything is mutated
func (s *Sanitiser) preflight(src, dst string) error {
	if err := checkRoot("open source", src); err != nil {
		return err
	}
	if err := checkRoot("open destination", dst); err != nil {
		return err
	}
	if src == dst {
		return &InvalidPathError{
			Op:   "compare roots",
			Path: dst,
			Err:  errors.New("destination is the dump directory itself"),
			Hint: "choose an extraction directory outside the dump",
		}
	}

	if same, err := disk.SameDevice(src, dst); err == nil && !same {
		s.logger.Warn("Source and destination are on different devices; moves will fail",
			"dump_path", src, "extract_to", dst)
	}
	if _, free, _, err := disk.GetDiskUsage(dst); err == nil {
		s.logger.Debug("Destination free space", "extract_to", dst, "free", humanize.IBytes(uint64(free)))
	}
	return nil
}

func checkRoot(op, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &InvalidPathError{Op: op, Path: path, Err: err, Hint: "the directory must exist before the run starts"}
	}
	if !info.IsDir() {
		return &InvalidPathError{Op: op, Path: path, Err: ErrNotDirectory}
	}
	return nil
}

// record logs one action and stores it in the history. A failed action is
// stored as ERROR with its cause. History write failures never fail a run.
func (s *Sanitiser) record(rec database.ActionRecord, cause error) {
	rec.RunID = s.runID
	rec.Timestamp = time.Now()

	if cause != nil {
		s.logger.Error("Action failed", "phase", rec.Phase, "path", rec.Path, "error", cause)
		rec.Action = database.ActionError
		rec.ErrorMessage = cause.Error()
	} else {
		msg := actionMessages[rec.Action]
		if s.dryRun {
			msg = "[DRY RUN] " + msg
		}
		args := []interface{}{"path", rec.Path}
		if rec.Destination != "" {
			args = append(args, "to", rec.Destination)
		}
		if rec.Size > 0 {
			args = append(args, "size", rec.Size)
		}
		s.logger.Info(msg, args...)
		if s.dryRun {
			s.simulated.Add(rec.Path)
		}
	}

	if s.recorder == nil || s.dryRun {
		return
	}
	if err := s.recorder.RecordAction(rec); err != nil {
		s.logger.Error("Failed to record action to database", "error", err)
	}
}

var actionMessages = map[string]string{
	database.ActionMove:       "Moving file",
	database.ActionDeleteFile: "Deleting junk file",
	database.ActionDeleteDir:  "Deleting system directory",
	database.ActionPruneDir:   "Deleting empty directory",
}

// walk feeds every entry under root to fn; a read failure becomes a ScanError.
// Entries a dry run already removed or moved are passed over, so each phase
// sees the tree a real run would leave behind.
func (s *Sanitiser) walk(op, root string, includeDirs bool, fn func(scan.Entry) error) error {
	err := scan.Walk(root, true, func(e scan.Entry) error {
		if s.simulated.Contains(e.Path) {
			if e.IsDir {
				return filepath.SkipDir
			}
			return nil
		}
		if e.IsDir && !includeDirs {
			return nil
		}
		return fn(e)
	})
	var readErr *scan.ReadError
	if errors.As(err, &readErr) {
		return &ScanError{Op: op, Err: err}
	}
	return err
}

func objectType(e scan.Entry) string {
	switch {
	case e.IsSymlink:
		return database.ObjectSymlink
	case e.IsDir:
		return database.ObjectDirectory
	default:
		return database.ObjectFile
	}
}

// sizeOf returns the size of path itself, never of a symlink target
func sizeOf(path string) int64 {
	info, err := os.Lstat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func absClean(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// nestedIn reports whether path lies strictly beneath root
func nestedIn(path, root string) bool {
	return path != root && safety.HasPathPrefix(path, root)
}
