package sanitise

import (
	"os"
	"path/filepath"

	"dump-sanitiser/internal/database"
	"dump-sanitiser/internal/defaults"
	"dump-sanitiser/internal/metrics"
	"dump-sanitiser/internal/safety"
	"dump-sanitiser/internal/scan"
)

// RemoveSystemDirectories deletes, with all contents, every directory under
// root whose name exactly matches a signature and which holds that
// signature's marker subdirectory. A same-named directory without the
// marker is left alone.
func (s *Sanitiser) RemoveSystemDirectories(root string, sigs []defaults.SystemDir) (int, error) {
	if len(sigs) == 0 {
		return 0, nil
	}
	abs, err := absClean(root)
	if err != nil {
		return 0, &InvalidPathError{Op: "resolve system dir root", Path: root, Err: err}
	}
	root = abs

	v := safety.NewValidator([]string{root}, nil)
	removed := 0

	err = s.walk(PhaseSystemDirs, root, true, func(e scan.Entry) error {
		if !e.IsDir {
			return nil
		}
		if !matchesSignature(e, sigs) {
			return nil
		}

		rec := database.ActionRecord{
			Action:     database.ActionDeleteDir,
			Phase:      PhaseSystemDirs,
			Path:       e.Path,
			ObjectType: database.ObjectDirectory,
		}

		if err := v.ValidateTarget(e.Path); err != nil {
			s.record(rec, err)
			return &DeletionError{Op: "delete system directory", Path: e.Path, Err: err}
		}
		if err := s.fs.RemoveAll(e.Path); err != nil {
			s.record(rec, err)
			return &DeletionError{Op: "delete system directory", Path: e.Path, Err: err}
		}

		s.record(rec, nil)
		if !s.dryRun {
			metrics.SystemDirsDeletedTotal.Inc()
		}
		removed++

		// The subtree is gone (or, in a dry run, treated as gone)
		return filepath.SkipDir
	})
	return removed, err
}

// matchesSignature reports whether e is named like a system directory and
// holds its marker subdirectory
func matchesSignature(e scan.Entry, sigs []defaults.SystemDir) bool {
	for _, sig := range sigs {
		if e.Name != sig.Name {
			continue
		}
		info, err := os.Stat(filepath.Join(e.Path, sig.Marker))
		if err == nil && info.IsDir() {
			return true
		}
	}
	return false
}
