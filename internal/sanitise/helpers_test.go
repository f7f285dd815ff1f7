package sanitise

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"dump-sanitiser/internal/database"
	"dump-sanitiser/internal/logging"
)

// mkTree creates the named files (and their parents) under root. Names
// ending in "/" create an empty directory instead.
func mkTree(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		p := filepath.Join(root, filepath.FromSlash(n))
		if n[len(n)-1] == '/' {
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatalf("Failed to create dir %s: %v", n, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("Failed to create dir for %s: %v", n, err)
		}
		if err := os.WriteFile(p, []byte("data:"+n), 0o644); err != nil {
			t.Fatalf("Failed to create file %s: %v", n, err)
		}
	}
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Lstat(path)
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		t.Fatalf("Lstat %s: %v", path, err)
	}
	return false
}

func newTestSanitiser(opts ...Option) *Sanitiser {
	return New(logging.NewWriter(io.Discard, "debug"), opts...)
}

// memRecorder keeps recorded actions in memory
type memRecorder struct {
	records []database.ActionRecord
	err     error
}

func (m *memRecorder) RecordAction(rec database.ActionRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

func (m *memRecorder) actions() []string {
	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Action)
	}
	return out
}
