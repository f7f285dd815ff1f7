package sanitise

import (
	"maps"
	"os"
	"path/filepath"
	"slices"

	"dump-sanitiser/internal/database"
	"dump-sanitiser/internal/metrics"
	"dump-sanitiser/internal/safety"
	"dump-sanitiser/internal/scan"
)

// DeletedDirs is the set of directories removed by one pruning pass, keyed
// by cleaned absolute path
type DeletedDirs map[string]struct{}

func (d DeletedDirs) Add(path string) { d[path] = struct{}{} }

func (d DeletedDirs) Contains(path string) bool {
	_, ok := d[path]
	return ok
}

func (d DeletedDirs) Len() int { return len(d) }

// Sorted returns the removed paths in lexical order
func (d DeletedDirs) Sorted() []string {
	return slices.Sorted(maps.Keys(d))
}

type dirState struct {
	blocked bool // holds a file, symlink or kept directory
	subdirs []string
}

// PruneEmptyDirectories removes, deepest first, every directory under root
// (root included) that holds no files and whose subdirectories were all
// removed earlier in the same pass. Directories listed in keep, and
// everything beneath them, are never removed. A root that no longer exists
// yields an empty set.
func (s *Sanitiser) PruneEmptyDirectories(root string, keep ...string) (DeletedDirs, error) {
	deleted := DeletedDirs{}

	abs, err := absClean(root)
	if err != nil {
		return deleted, &InvalidPathError{Op: "resolve prune root", Path: root, Err: err}
	}
	root = abs

	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return deleted, nil
	}
	if err != nil {
		return deleted, &InvalidPathError{Op: "open prune root", Path: root, Err: err}
	}
	if !info.IsDir() {
		return deleted, &InvalidPathError{Op: "open prune root", Path: root, Err: ErrNotDirectory}
	}

	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		if k, err := absClean(k); err == nil {
			kept[k] = true
		}
	}

	// Pre-order listing; walked backwards every directory comes after all
	// of its descendants
	order := []string{root}
	dirs := map[string]*dirState{root: {}}

	err = s.walk(PhasePrune, root, true, func(e scan.Entry) error {
		parent := dirs[filepath.Dir(e.Path)]
		if !e.IsDir || kept[e.Path] {
			parent.blocked = true
			if e.IsDir {
				return filepath.SkipDir
			}
			return nil
		}
		parent.subdirs = append(parent.subdirs, e.Path)
		dirs[e.Path] = &dirState{}
		order = append(order, e.Path)
		return nil
	})
	if err != nil {
		return deleted, err
	}

	v := safety.NewValidator([]string{root}, nil)

	for i := len(order) - 1; i >= 0; i-- {
		dir := order[i]
		if kept[dir] || !prunable(dirs[dir], deleted) {
			continue
		}

		rec := database.ActionRecord{
			Action:     database.ActionPruneDir,
			Phase:      PhasePrune,
			Path:       dir,
			ObjectType: database.ObjectDirectory,
		}
		if err := v.ValidateTarget(dir); err != nil {
			s.record(rec, err)
			return deleted, &DeletionError{Op: "remove empty directory", Path: dir, Err: err}
		}
		if err := s.fs.Remove(dir); err != nil {
			s.record(rec, err)
			return deleted, &DeletionError{Op: "remove empty directory", Path: dir, Err: err}
		}

		deleted.Add(dir)
		s.record(rec, nil)
		if !s.dryRun {
			metrics.DirsPrunedTotal.Inc()
		}
	}

	return deleted, nil
}

// prunable reports whether a directory holds no files and every
// subdirectory it listed has already been removed
func prunable(st *dirState, deleted DeletedDirs) bool {
	if st.blocked {
		return false
	}
	for _, sub := range st.subdirs {
		if !deleted.Contains(sub) {
			return false
		}
	}
	return true
}
