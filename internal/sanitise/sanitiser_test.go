package sanitise

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"dump-sanitiser/internal/config"
	"dump-sanitiser/internal/database"
	"dump-sanitiser/internal/fsops"
	"dump-sanitiser/internal/logging"
)

func testConfig(src, dst string) *config.Config {
	cfg := config.Default()
	cfg.DumpPath = src
	cfg.ExtractTo = dst
	cfg.Extensions = []string{".jpg"}
	cfg.ExcludeDirs = nil
	cfg.CommonJunkFiles = []string{"Thumbs.db"}
	cfg.SystemJunkFiles = []string{"pagefile.sys"}
	return cfg
}

func TestRunScenario(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mkTree(t, src,
		"photo.JPG",
		"notes.txt",
		"cache/Thumbs.db",
		"sys/WINDOWS/system32/x.dll",
	)

	rec := &memRecorder{}
	s := newTestSanitiser(WithRecorder(rec), WithRunID("run-1"))
	report, err := s.Run(context.Background(), testConfig(src, dst))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !exists(t, filepath.Join(dst, "photo.JPG")) {
		t.Error("Expected photo.JPG in destination")
	}
	if !exists(t, filepath.Join(src, "notes.txt")) {
		t.Error("Expected notes.txt to remain in source")
	}
	for _, gone := range []string{"photo.JPG", "cache", "sys"} {
		if exists(t, filepath.Join(src, gone)) {
			t.Errorf("Expected %s to be gone from source", gone)
		}
	}

	if report.RunID != "run-1" || report.SystemDirsRemoved != 1 || report.CommonJunkRemoved != 1 ||
		report.SystemJunkRemoved != 0 || report.FilesMoved != 1 {
		t.Errorf("Unexpected report: %+v", report)
	}
	wantPruned := []string{filepath.Join(src, "cache"), filepath.Join(src, "sys")}
	if got := report.Pruned.Sorted(); !slices.Equal(got, wantPruned) {
		t.Errorf("Expected pruned %v, got %v", wantPruned, got)
	}

	// Fixed phase order shows up in the history
	wantActions := []string{
		database.ActionDeleteDir,
		database.ActionDeleteFile,
		database.ActionMove,
		database.ActionPruneDir,
		database.ActionPruneDir,
	}
	if got := rec.actions(); !slices.Equal(got, wantActions) {
		t.Errorf("Expected actions %v, got %v", wantActions, got)
	}
	for _, r := range rec.records {
		if r.RunID != "run-1" {
			t.Errorf("Expected run id on every record, got %q", r.RunID)
		}
	}
}

func TestRunTogglesDisablePhases(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mkTree(t, src, "a/photo.jpg", "cache/Thumbs.db", "WINDOWS/system32/x.dll", "empty/")

	cfg := testConfig(src, dst)
	cfg.RemoveCommonJunk = false
	cfg.RemoveSystemJunk = false
	cfg.RemoveWindowsDirs = false
	cfg.RemoveEmptyDirs = false

	report, err := newTestSanitiser().Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.FilesMoved != 1 || !exists(t, filepath.Join(dst, "a", "photo.jpg")) {
		t.Error("Extraction always runs")
	}
	for _, kept := range []string{"cache/Thumbs.db", "WINDOWS/system32/x.dll", "empty", "a"} {
		if !exists(t, filepath.Join(src, kept)) {
			t.Errorf("Expected %s to survive with its phase disabled", kept)
		}
	}
}

func TestRunPreflightStopsBeforeAnyMutation(t *testing.T) {
	src := t.TempDir()
	mkTree(t, src, "Thumbs.db", "WINDOWS/system32/x.dll")

	fake := &fsops.FakeDeleter{}
	_, err := newTestSanitiser(WithFS(fake)).Run(context.Background(), testConfig(src, filepath.Join(t.TempDir(), "missing")))

	var pathErr *InvalidPathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("Expected InvalidPathError, got %v", err)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("Expected no mutation before extraction could start, got %v", fake.Calls)
	}
}

func TestRunRejectsSameRoots(t *testing.T) {
	src := t.TempDir()
	_, err := newTestSanitiser().Run(context.Background(), testConfig(src, src))

	var pathErr *InvalidPathError
	if !errors.As(err, &pathErr) {
		t.Fatalf("Expected InvalidPathError, got %v", err)
	}
}

func TestRunCancelledContext(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mkTree(t, src, "photo.jpg", "Thumbs.db")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fsops.FakeDeleter{}
	_, err := newTestSanitiser(WithFS(fake)).Run(ctx, testConfig(src, dst))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(fake.Calls) != 0 {
		t.Errorf("Expected no phase to run, got %v", fake.Calls)
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mkTree(t, src, "WINDOWS/system32/x.dll", "Thumbs.db", "photo.jpg")

	boom := errors.New("read-only file system")
	fake := &fsops.FakeDeleter{FailOn: map[string]error{"rm:" + filepath.Join(src, "Thumbs.db"): boom}}
	report, err := newTestSanitiser(WithFS(fake)).Run(context.Background(), testConfig(src, dst))

	var delErr *DeletionError
	if !errors.As(err, &delErr) {
		t.Fatalf("Expected DeletionError, got %v", err)
	}
	if report.SystemDirsRemoved != 1 {
		t.Errorf("Steps before the failure stand, got %+v", report)
	}
	for _, c := range fake.Calls {
		if strings.HasPrefix(c, "mv:") {
			t.Errorf("Extraction must not run after a failed phase: %v", fake.Calls)
		}
	}
}

func TestRunDryRun(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mkTree(t, src, "photo.jpg", "cache/Thumbs.db", "WINDOWS/system32/x.dll")

	var buf bytes.Buffer
	rec := &memRecorder{}
	s := New(logging.NewWriter(&buf, "info"), WithDryRun(true), WithRecorder(rec))
	report, err := s.Run(context.Background(), testConfig(src, dst))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, kept := range []string{"photo.jpg", "cache/Thumbs.db", "WINDOWS/system32/x.dll"} {
		if !exists(t, filepath.Join(src, kept)) {
			t.Errorf("Dry run must not touch %s", kept)
		}
	}
	if exists(t, filepath.Join(dst, "photo.jpg")) {
		t.Error("Dry run must not move files")
	}
	if !report.DryRun || report.FilesMoved != 1 || report.SystemDirsRemoved != 1 || report.CommonJunkRemoved != 1 {
		t.Errorf("Dry run should report what it would do, got %+v", report)
	}
	if len(rec.records) != 0 {
		t.Errorf("Dry run must not write history, got %d records", len(rec.records))
	}
	if !strings.Contains(buf.String(), "[DRY RUN] Moving file") {
		t.Errorf("Expected dry-run log lines, got:\n%s", buf.String())
	}
}

func TestRunDryRunMatchesRealRun(t *testing.T) {
	tree := []string{
		"WINDOWS/system32/Thumbs.db",
		"WINDOWS/pic.jpg",
		"Users/me/cat.jpg",
		"Users/me/Thumbs.db",
		"Users/me/notes.txt",
		"Users/empty/",
		"pagefile.sys",
		"old/a/b/photo.jpg",
	}

	runOnce := func(dryRun bool) (*Report, string) {
		src, dst := t.TempDir(), t.TempDir()
		mkTree(t, src, tree...)
		s := newTestSanitiser(WithDryRun(dryRun))
		report, err := s.Run(context.Background(), testConfig(src, dst))
		if err != nil {
			t.Fatalf("Run(dryRun=%v) failed: %v", dryRun, err)
		}
		return report, src
	}

	relPruned := func(report *Report, src string) []string {
		var out []string
		for _, p := range report.Pruned.Sorted() {
			rel, err := filepath.Rel(src, p)
			if err != nil {
				t.Fatalf("Rel: %v", err)
			}
			out = append(out, rel)
		}
		return out
	}

	dry, dryRoot := runOnce(true)
	live, liveRoot := runOnce(false)

	if dry.SystemDirsRemoved != live.SystemDirsRemoved ||
		dry.CommonJunkRemoved != live.CommonJunkRemoved ||
		dry.SystemJunkRemoved != live.SystemJunkRemoved ||
		dry.FilesMoved != live.FilesMoved ||
		dry.BytesMoved != live.BytesMoved {
		t.Errorf("Dry run counts differ from real run:\ndry:  %+v\nreal: %+v", dry, live)
	}
	if live.CommonJunkRemoved != 1 || live.FilesMoved != 2 {
		t.Errorf("Unexpected real run counts: %+v", live)
	}

	dryPruned, livePruned := relPruned(dry, dryRoot), relPruned(live, liveRoot)
	if !slices.Equal(dryPruned, livePruned) {
		t.Errorf("Dry run pruned %v, real run pruned %v", dryPruned, livePruned)
	}
	if !exists(t, filepath.Join(dryRoot, "WINDOWS", "pic.jpg")) {
		t.Error("Dry run must leave the tree untouched")
	}
}

func TestRunHistoryFailureIsNotFatal(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mkTree(t, src, "photo.jpg")

	var buf bytes.Buffer
	rec := &memRecorder{err: errors.New("database is locked")}
	s := New(logging.NewWriter(&buf, "info"), WithRecorder(rec))
	if _, err := s.Run(context.Background(), testConfig(src, dst)); err != nil {
		t.Fatalf("History write failures must not fail the run: %v", err)
	}
	if !strings.Contains(buf.String(), "Failed to record action to database") {
		t.Errorf("Expected history failure to be logged, got:\n%s", buf.String())
	}
}

func TestRunLogsOneLinePerAction(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	mkTree(t, src, "a/photo.jpg", "b/Thumbs.db")

	var buf bytes.Buffer
	s := New(logging.NewWriter(&buf, "info"))
	if _, err := s.Run(context.Background(), testConfig(src, dst)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"[INFO] Moving file path=" + filepath.Join(src, "a", "photo.jpg") + " to=" + filepath.Join(dst, "a", "photo.jpg"),
		"[INFO] Deleting junk file path=" + filepath.Join(src, "b", "Thumbs.db"),
		"[INFO] Deleting empty directory path=" + filepath.Join(src, "a"),
		"[INFO] Sanitise run complete",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log to contain %q, got:\n%s", want, out)
		}
	}
}

func TestGetHint(t *testing.T) {
	err := &InvalidPathError{Op: "open", Path: "/x", Err: ErrNotDirectory, Hint: "make it a directory"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"direct", err, "make it a directory"},
		{"wrapped", fmt.Errorf("run: %w", err), "make it a directory"},
		{"joined", errors.Join(errors.New("other"), err), "make it a directory"},
		{"plain", errors.New("plain"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHint(tt.err); got != tt.want {
				t.Errorf("GetHint() = %q, want %q", got, tt.want)
			}
		})
	}
}
