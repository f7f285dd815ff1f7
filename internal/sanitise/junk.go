package sanitise

import (
	"dump-sanitiser/internal/database"
	"dump-sanitiser/internal/metrics"
	"dump-sanitiser/internal/safety"
	"dump-sanitiser/internal/scan"
)

// RemoveJunk deletes every file under root whose base name exactly matches
// one of names (case-sensitive). set labels the name list in logs and
// metrics. The first failed delete aborts the pass.
func (s *Sanitiser) RemoveJunk(root string, names []string, set string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}
	abs, err := absClean(root)
	if err != nil {
		return 0, &InvalidPathError{Op: "resolve junk root", Path: root, Err: err}
	}
	root = abs

	junk := make(map[string]struct{}, len(names))
	for _, n := range names {
		junk[n] = struct{}{}
	}

	phase := set + "_junk"
	v := safety.NewValidator([]string{root}, nil)
	removed := 0

	err = s.walk(phase, root, false, func(e scan.Entry) error {
		if _, ok := junk[e.Name]; !ok {
			return nil
		}

		rec := database.ActionRecord{
			Action:     database.ActionDeleteFile,
			Phase:      phase,
			Path:       e.Path,
			ObjectType: objectType(e),
			Size:       sizeOf(e.Path),
		}

		if err := v.ValidateTarget(e.Path); err != nil {
			s.record(rec, err)
			return &DeletionError{Op: "delete junk file", Path: e.Path, Err: err}
		}
		if err := s.fs.Remove(e.Path); err != nil {
			s.record(rec, err)
			return &DeletionError{Op: "delete junk file", Path: e.Path, Err: err}
		}

		s.record(rec, nil)
		if !s.dryRun {
			metrics.JunkFilesDeletedTotal.WithLabelValues(set).Inc()
		}
		removed++
		return nil
	})
	return removed, err
}
