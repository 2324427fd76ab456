package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()

	// Temp config with an OS-chosen port and throwaway data paths.
	tempConfig := `
server:
    address: localhost:0
log:
    server:
        path: "` + filepath.Join(dir, "server.log") + `"
        level: "debug"
    visits:
        path: "` + filepath.Join(dir, "visits.log") + `"
db:
    path: "` + filepath.Join(dir, "tourgo.db") + `"
engine:
    max_trigger_distance: 10m
    repeat_cooldown: 30m
catalog:
    seed_file: ""
`
	f, err := os.CreateTemp(dir, "tourgo_test_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp config: %v", err)
	}

	if _, err := f.WriteString(tempConfig); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	f.Close()

	// Create a context that cancels quickly to verify startup sequence
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	// Run with temp config
	if err := run(ctx, f.Name()); err != nil {
		t.Fatalf("run() failed: %v", err)
	}
}
