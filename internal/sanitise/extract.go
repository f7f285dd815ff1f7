package sanitise

import (
	"path/filepath"
	"strings"

	"dump-sanitiser/internal/database"
	"dump-sanitiser/internal/defaults"
	"dump-sanitiser/internal/metrics"
	"dump-sanitiser/internal/safety"
	"dump-sanitiser/internal/scan"
)

// Extract moves every file under src whose lowercased name ends with one of
// exts into dst at the same relative path, creating directories as needed.
// Files whose relative path equals or lies under an entry of excludes are
// left in place, as is anything inside dst when dst is nested in src. An
// empty exts means the default media extensions.
//
// Both roots must already be directories. The first failed move aborts the
// pass; earlier moves stand.
func (s *Sanitiser) Extract(src, dst string, exts, excludes []string) (int, int64, error) {
	absSrc, err := absClean(src)
	if err != nil {
		return 0, 0, &InvalidPathError{Op: "resolve source", Path: src, Err: err}
	}
	absDst, err := absClean(dst)
	if err != nil {
		return 0, 0, &InvalidPathError{Op: "resolve destination", Path: dst, Err: err}
	}
	src, dst = absSrc, absDst

	if err := checkRoot("extract from", src); err != nil {
		return 0, 0, err
	}
	if err := checkRoot("extract to", dst); err != nil {
		return 0, 0, err
	}

	suffixes := lowerSuffixes(exts)
	if len(suffixes) == 0 {
		suffixes = lowerSuffixes(defaults.MediaExtensions)
	}

	skip := make([]string, 0, len(excludes)+1)
	for _, ex := range excludes {
		if ex = strings.TrimSpace(ex); ex != "" {
			skip = append(skip, filepath.Clean(ex))
		}
	}
	if nestedIn(dst, src) {
		rel, err := filepath.Rel(src, dst)
		if err == nil {
			skip = append(skip, rel)
		}
	}

	v := safety.NewValidator([]string{src, dst}, nil)
	moved := 0
	var bytes int64

	err = s.walk(PhaseExtract, src, false, func(e scan.Entry) error {
		rel, err := filepath.Rel(src, e.Path)
		if err != nil {
			return &ScanError{Op: PhaseExtract, Err: err}
		}
		if excluded(rel, skip) {
			return nil
		}
		if !hasAnySuffix(strings.ToLower(e.Name), suffixes) {
			return nil
		}

		target := filepath.Join(dst, rel)
		rec := database.ActionRecord{
			Action:      database.ActionMove,
			Phase:       PhaseExtract,
			Path:        e.Path,
			Destination: target,
			ObjectType:  objectType(e),
			Size:        sizeOf(e.Path),
		}

		for _, p := range []string{e.Path, target} {
			if err := v.ValidateTarget(p); err != nil {
				s.record(rec, err)
				return &TransferError{Op: "move", Path: e.Path, Dest: target, Err: err}
			}
		}
		if err := s.fs.MkdirAll(filepath.Dir(target)); err != nil {
			s.record(rec, err)
			return &TransferError{Op: "create directory for", Path: e.Path, Dest: target, Err: err}
		}
		if err := s.fs.Rename(e.Path, target); err != nil {
			s.record(rec, err)
			return newTransferError(e.Path, target, err)
		}

		s.record(rec, nil)
		if !s.dryRun {
			metrics.RecordMove(rec.Size)
		}
		moved++
		bytes += rec.Size
		return nil
	})
	return moved, bytes, err
}

func lowerSuffixes(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		if ext = strings.ToLower(strings.TrimSpace(ext)); ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

func hasAnySuffix(name string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// excluded reports whether rel equals or lies under one of prefixes,
// comparing whole path components
func excluded(rel string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "." || safety.HasPathPrefix(rel, p) {
			return true
		}
	}
	return false
}
