package main

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dump-sanitiser/internal/database"
)

// seedDB writes one run with two moves, a junk deletion and a prune
func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := database.NewActionDB(path)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	now := time.Now()
	records := []database.ActionRecord{
		{Action: database.ActionMove, Phase: "extract", Path: "/dump/a/cat.jpg", Destination: "/media/a/cat.jpg", ObjectType: database.ObjectFile, Size: 2048},
		{Action: database.ActionMove, Phase: "extract", Path: "/dump/b/dog.png", Destination: "/media/b/dog.png", ObjectType: database.ObjectFile, Size: 1024},
		{Action: database.ActionDeleteFile, Phase: "common_junk", Path: "/dump/a/Thumbs.db", ObjectType: database.ObjectFile, Size: 10},
		{Action: database.ActionPruneDir, Phase: "prune", Path: "/dump/a", ObjectType: database.ObjectDirectory},
	}
	for i, rec := range records {
		rec.RunID = "run-1"
		rec.Timestamp = now.Add(time.Duration(i-len(records)) * time.Second)
		if err := db.RecordAction(rec); err != nil {
			t.Fatalf("Failed to record action: %v", err)
		}
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryCommands(t *testing.T) {
	dbPath := seedDB(t)
	today := time.Now().Format(dateLayout)

	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		contains []string
		excludes []string
	}{
		{"recent default", []string{"recent"}, false, []string{"/dump/a/cat.jpg", "/dump/a"}, nil},
		{"recent limited", []string{"recent", "1"}, false, []string{"PRUNE_DIR"}, []string{"cat.jpg"}},
		{"recent trailing garbage", []string{"recent", "10abc"}, true, nil, nil},
		{"recent zero", []string{"recent", "0"}, true, nil, nil},
		{"by action", []string{"actions", "--action", "MOVE"}, false, []string{"cat.jpg", "dog.png"}, []string{"Thumbs.db"}},
		{"by path", []string{"actions", "--path", "%/b/%"}, false, []string{"dog.png"}, []string{"cat.jpg"}},
		{"by run", []string{"actions", "--run", "run-1"}, false, []string{"Thumbs.db", "cat.jpg"}, nil},
		{"since today", []string{"actions", "--since", today}, false, []string{"cat.jpg", "Thumbs.db"}, nil},
		{"until long ago", []string{"actions", "--until", "2000-01-01"}, false, []string{"No records found"}, nil},
		{"bad since", []string{"actions", "--since", "yesterday"}, true, nil, nil},
		{"inverted range", []string{"actions", "--since", "2024-02-01", "--until", "2024-01-01"}, true, nil, nil},
		{"no filter", []string{"actions"}, true, nil, nil},
		{"runs", []string{"runs"}, false, []string{"run-1"}, nil},
		{"stats", []string{"stats", "--days", "7"}, false, []string{"Files Moved:      2 (3.0 KiB)", "Dirs Pruned:      1"}, nil},
		{"prune history", []string{"prune-history", "--older-than", "30"}, false, []string{"Removed 0 records older than 30 days"}, nil},
		{"prune history zero", []string{"prune-history", "--older-than", "0"}, true, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, append([]string{"--db", dbPath}, tt.args...)...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got output:\n%s", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("Expected %q in output:\n%s", want, out)
				}
			}
			for _, unwanted := range tt.excludes {
				if strings.Contains(out, unwanted) {
					t.Errorf("Did not expect %q in output:\n%s", unwanted, out)
				}
			}
		})
	}
}

func TestQueryJSONOutput(t *testing.T) {
	dbPath := seedDB(t)

	out, err := execute(t, "--db", dbPath, "--json", "actions", "--action", "MOVE")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var records []database.ActionRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("Output is not JSON: %v\n%s", err, out)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 moves, got %d", len(records))
	}
	for _, r := range records {
		if r.RunID != "run-1" || r.Destination == "" {
			t.Errorf("Unexpected record %+v", r)
		}
	}
}

func TestTimeRange(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.Local)

	start, end, err := timeRange("2024-05-01", "2024-05-10", now)
	if err != nil {
		t.Fatalf("timeRange failed: %v", err)
	}
	if want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2024, 5, 11, 0, 0, 0, 0, time.Local).Add(-time.Nanosecond); !end.Equal(want) {
		t.Errorf("A bare --until date must cover the whole day, got %v", end)
	}

	_, end, err = timeRange("2024-05-01", "", now)
	if err != nil || !end.Equal(now) {
		t.Errorf("Empty --until should default to now, got %v %v", end, err)
	}

	_, end, err = timeRange("", "2024-05-10T08:30:00Z", now)
	if err != nil || !end.Equal(time.Date(2024, 5, 10, 8, 30, 0, 0, time.UTC)) {
		t.Errorf("RFC3339 --until parsed wrong: %v %v", end, err)
	}
}
