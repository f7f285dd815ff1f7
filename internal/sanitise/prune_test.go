package sanitise

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"dump-sanitiser/internal/fsops"
)

func TestPruneBottomUp(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "root")
	mkTree(t, root, "a/b/")

	deleted, err := newTestSanitiser().PruneEmptyDirectories(root)
	if err != nil {
		t.Fatalf("PruneEmptyDirectories failed: %v", err)
	}

	want := []string{root, filepath.Join(root, "a"), filepath.Join(root, "a", "b")}
	if got := deleted.Sorted(); !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if exists(t, root) {
		t.Error("A root left empty is itself removed")
	}
}

func TestPruneKeepsDirectoriesWithFiles(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root,
		"keep.txt",
		"a/b/",
		"c/d/file.txt",
		"c/e/",
		"f/g/h/",
	)

	deleted, err := newTestSanitiser().PruneEmptyDirectories(root)
	if err != nil {
		t.Fatalf("PruneEmptyDirectories failed: %v", err)
	}

	for _, rel := range []string{"a", "a/b", "c/e", "f", "f/g", "f/g/h"} {
		p := filepath.Join(root, rel)
		if !deleted.Contains(p) {
			t.Errorf("Expected %s in deleted set", rel)
		}
		if exists(t, p) {
			t.Errorf("Expected %s to be removed", rel)
		}
	}
	for _, rel := range []string{".", "c", "c/d"} {
		if deleted.Contains(filepath.Join(root, rel)) {
			t.Errorf("%s holds files and must survive", rel)
		}
	}
	if deleted.Len() != 6 {
		t.Errorf("Expected 6 deletions, got %v", deleted.Sorted())
	}
}

func TestPruneIdempotent(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "keep.txt", "x/y/z/", "w/")

	s := newTestSanitiser()
	first, err := s.PruneEmptyDirectories(root)
	if err != nil {
		t.Fatalf("First prune failed: %v", err)
	}
	if first.Len() != 4 {
		t.Errorf("Expected 4 deletions on first pass, got %v", first.Sorted())
	}

	second, err := s.PruneEmptyDirectories(root)
	if err != nil {
		t.Fatalf("Second prune failed: %v", err)
	}
	if second.Len() != 0 {
		t.Errorf("Expected nothing left to prune, got %v", second.Sorted())
	}
}

func TestPruneMissingRoot(t *testing.T) {
	deleted, err := newTestSanitiser().PruneEmptyDirectories(filepath.Join(t.TempDir(), "gone"))
	if err != nil {
		t.Fatalf("Expected a missing root to be a no-op, got %v", err)
	}
	if deleted.Len() != 0 {
		t.Errorf("Expected empty set, got %v", deleted.Sorted())
	}
}

func TestPruneRootIsFile(t *testing.T) {
	base := t.TempDir()
	mkTree(t, base, "file")

	_, err := newTestSanitiser().PruneEmptyDirectories(filepath.Join(base, "file"))
	if !errors.Is(err, ErrNotDirectory) {
		t.Errorf("Expected ErrNotDirectory, got %v", err)
	}
}

func TestPruneSymlinkBlocks(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "target/", "holder/")
	if err := os.Symlink(filepath.Join(root, "target"), filepath.Join(root, "holder", "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	deleted, err := newTestSanitiser().PruneEmptyDirectories(root)
	if err != nil {
		t.Fatalf("PruneEmptyDirectories failed: %v", err)
	}
	if deleted.Contains(filepath.Join(root, "holder")) {
		t.Error("A directory holding a symlink is not empty")
	}
	if !deleted.Contains(filepath.Join(root, "target")) {
		t.Error("Expected the empty symlink target to be pruned")
	}
}

func TestPruneKeep(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "media/empty/", "junk/")
	media := filepath.Join(root, "media")

	deleted, err := newTestSanitiser().PruneEmptyDirectories(root, media)
	if err != nil {
		t.Fatalf("PruneEmptyDirectories failed: %v", err)
	}
	if !exists(t, filepath.Join(media, "empty")) {
		t.Error("Kept directories and their contents must survive")
	}
	if !deleted.Contains(filepath.Join(root, "junk")) || deleted.Contains(root) {
		t.Errorf("Unexpected deleted set %v", deleted.Sorted())
	}
}

func TestPruneDryRunReportsWholeChain(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "keep.txt", "a/b/c/")

	fake := &fsops.FakeDeleter{}
	deleted, err := newTestSanitiser(WithFS(fake), WithDryRun(true)).PruneEmptyDirectories(root)
	if err != nil {
		t.Fatalf("PruneEmptyDirectories failed: %v", err)
	}

	want := []string{
		"rm:" + filepath.Join(root, "a", "b", "c"),
		"rm:" + filepath.Join(root, "a", "b"),
		"rm:" + filepath.Join(root, "a"),
	}
	if !slices.Equal(fake.Calls, want) {
		t.Errorf("Expected deepest-first calls %v, got %v", want, fake.Calls)
	}
	if deleted.Len() != 3 || !exists(t, filepath.Join(root, "a", "b", "c")) {
		t.Errorf("Dry run must report without removing (deleted=%v)", deleted.Sorted())
	}
}

func TestPruneDeletionError(t *testing.T) {
	root := t.TempDir()
	mkTree(t, root, "keep.txt", "a/b/")

	boom := errors.New("busy")
	fake := &fsops.FakeDeleter{FailOn: map[string]error{"rm:" + filepath.Join(root, "a", "b"): boom}}
	deleted, err := newTestSanitiser(WithFS(fake)).PruneEmptyDirectories(root)

	var delErr *DeletionError
	if !errors.As(err, &delErr) || !errors.Is(err, boom) {
		t.Fatalf("Expected DeletionError wrapping cause, got %v", err)
	}
	if deleted.Len() != 0 {
		t.Errorf("Nothing was removed, got %v", deleted.Sorted())
	}
}
