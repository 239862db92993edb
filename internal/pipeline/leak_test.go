package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/szibis/datasplit/internal/split"
)

func TestLeakCheck_Run(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", dataRows(300))
	s := New(Config{Input: input, ChunkSize: 7, Capacity: 1}, propSet(t, "a=0.6", "b=0.3"), split.NewRand(seeded(4)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestLeakCheck_FailedRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", dataRows(300))
	if err := os.WriteFile(filepath.Join(dir, "b"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Config{Input: input, ChunkSize: 5, Capacity: 1}, rowSet(t, "a=100", "b=100"), split.NewRand(seeded(4)))
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected failure when a split directory cannot be created")
	}
}
