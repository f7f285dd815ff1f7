// Package scan enumerates a directory tree depth-first without recursion.
package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Entry is one file or directory found beneath the scan root.
// Symlinks are reported with IsDir false and are never descended into.
type Entry struct {
	Path      string
	Name      string
	IsDir     bool
	IsSymlink bool
}

// ReadError reports a directory that could not be enumerated
type ReadError struct {
	Dir string
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read directory %s: %v", e.Dir, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

var errSkipOutsideDir = errors.New("SkipDir called without a pending directory")

type frame struct {
	dir     string
	entries []os.DirEntry
	next    int
}

// Walker yields entries lazily from an explicit stack of open directories.
// Each Walker holds its own traversal state; create a new one per scan.
type Walker struct {
	root        string
	includeDirs bool
	stack       []*frame
	pending     string // directory yielded to the caller but not yet opened
	started     bool
	err         error
}

// New returns a Walker over root. When includeDirs is set, every directory
// entry is yielded before its contents.
func New(root string, includeDirs bool) *Walker {
	return &Walker{
		root:        filepath.Clean(root),
		includeDirs: includeDirs,
	}
}

// Next returns the next entry. ok is false once the tree is exhausted or
// after an error; a read failure is returned once and stops the walk.
func (w *Walker) Next() (entry Entry, ok bool, err error) {
	if w.err != nil {
		return Entry{}, false, nil
	}
	if !w.started {
		w.started = true
		if err := w.push(w.root); err != nil {
			return Entry{}, false, err
		}
	}

	for {
		if w.pending != "" {
			dir := w.pending
			w.pending = ""
			if err := w.push(dir); err != nil {
				return Entry{}, false, err
			}
		}
		if len(w.stack) == 0 {
			return Entry{}, false, nil
		}

		top := w.stack[len(w.stack)-1]
		if top.next >= len(top.entries) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		de := top.entries[top.next]
		top.next++

		e := Entry{
			Path:      filepath.Join(top.dir, de.Name()),
			Name:      de.Name(),
			IsSymlink: de.Type()&os.ModeSymlink != 0,
		}
		e.IsDir = de.IsDir() && !e.IsSymlink

		if !e.IsDir {
			return e, true, nil
		}
		w.pending = e.Path
		if w.includeDirs {
			return e, true, nil
		}
	}
}

// SkipDir stops the walker from descending into the directory entry it
// returned last. Callers that delete a yielded directory must call it.
func (w *Walker) SkipDir() error {
	if w.pending == "" {
		return errSkipOutsideDir
	}
	w.pending = ""
	return nil
}

func (w *Walker) push(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.err = &ReadError{Dir: dir, Err: err}
		return w.err
	}
	w.stack = append(w.stack, &frame{dir: dir, entries: entries})
	return nil
}

// Walk drives a fresh Walker to completion, calling fn for every entry.
// fn may return filepath.SkipDir for a directory entry to avoid descending.
func Walk(root string, includeDirs bool, fn func(Entry) error) error {
	w := New(root, includeDirs)
	for {
		e, ok, err := w.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(e); err != nil {
			if errors.Is(err, filepath.SkipDir) && e.IsDir {
				if err := w.SkipDir(); err != nil {
					return err
				}
				continue
			}
			return err
		}
	}
}
