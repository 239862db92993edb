package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/szibis/datasplit/internal/compression"
	"github.com/szibis/datasplit/internal/dataio"
	"github.com/szibis/datasplit/internal/logging"
	"github.com/szibis/datasplit/internal/split"
)

func init() {
	logging.SetOutput(io.Discard)
}

func writeInput(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func dataRows(n int) []string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = fmt.Sprintf("%d,value-%d", i+1, i+1)
	}
	return rows
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func seeded(v uint64) *uint64 { return &v }

func rowSet(t *testing.T, specs ...string) *split.Set {
	t.Helper()
	var rows []split.RowSplit
	for _, s := range specs {
		r, err := split.ParseRowSplit(s)
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, r)
	}
	set, err := split.NewRowSet(rows)
	if err != nil {
		t.Fatal(err)
	}
	return set
}

func propSet(t *testing.T, specs ...string) *split.Set {
	t.Helper()
	var props []split.ProportionSplit
	for _, s := range specs {
		p, err := split.ParseProportionSplit(s)
		if err != nil {
			t.Fatal(err)
		}
		props = append(props, p)
	}
	set, err := split.NewProportionSet(props)
	if err != nil {
		t.Fatal(err)
	}
	return set
}

type recorder struct {
	mu       sync.Mutex
	counts   map[string]uint64
	finished map[string]bool
	observed map[string][]string
}

func newRecorder() *recorder {
	return &recorder{counts: map[string]uint64{}, finished: map[string]bool{}, observed: map[string][]string{}}
}

func (r *recorder) Inc(split string, n uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[split] += n
}

func (r *recorder) Finish(split string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished[split] = true
}

func (r *recorder) Observe(split, row string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed[split] = append(r.observed[split], row)
}

func TestRowSplitsWithHeader(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", append([]string{"id,value"}, dataRows(15)...))
	rec := newRecorder()

	s := New(Config{Input: input, Header: true}, rowSet(t, "train=7", "test=3"), split.NewRand(seeded(42)),
		WithProgress(rec), WithObserver(rec))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	train := readLines(t, filepath.Join(dir, "train", "data.train.csv"))
	test := readLines(t, filepath.Join(dir, "test", "data.test.csv"))
	if len(train) != 8 || len(test) != 4 {
		t.Fatalf("got %d train and %d test lines, want 8 and 4", len(train), len(test))
	}
	if train[0] != "id,value" || test[0] != "id,value" {
		t.Errorf("header missing: %q / %q", train[0], test[0])
	}

	// Every data row appears once, in input order within each split.
	seen := map[string]bool{}
	for _, lines := range [][]string{train[1:], test[1:]} {
		prev := 0
		for _, l := range lines {
			if seen[l] {
				t.Errorf("row %q written twice", l)
			}
			seen[l] = true
			var n int
			fmt.Sscanf(l, "%d,", &n)
			if n <= prev {
				t.Errorf("row %q out of input order", l)
			}
			prev = n
		}
	}

	if rec.counts["train"] != 7 || rec.counts["test"] != 3 {
		t.Errorf("progress counts = %v", rec.counts)
	}
	if !rec.finished["train"] || !rec.finished["test"] {
		t.Errorf("progress not finished: %v", rec.finished)
	}
	if strings.Join(rec.observed["test"], "|") != strings.Join(test[1:], "|") {
		t.Errorf("observer saw %v, file has %v", rec.observed["test"], test[1:])
	}
}

func TestProportionSplitsCoverInput(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.txt", dataRows(1000))

	s := New(Config{Input: input}, propSet(t, "a=0.5", "b=0.5"), split.NewRand(seeded(1)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a := readLines(t, filepath.Join(dir, "a", "data.a.csv"))
	b := readLines(t, filepath.Join(dir, "b", "data.b.csv"))
	if len(a)+len(b) != 1000 {
		t.Errorf("got %d+%d rows, want 1000", len(a), len(b))
	}
	if len(a) < 400 || len(a) > 600 {
		t.Errorf("split a has %d rows, want about 500", len(a))
	}
	if s.rowsDropped != 0 {
		t.Errorf("rows dropped = %d, want 0", s.rowsDropped)
	}
}

func TestProportionShortfallDropsRows(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.txt", dataRows(2000))

	s := New(Config{Input: input}, propSet(t, "a=0.3"), split.NewRand(seeded(3)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a := readLines(t, filepath.Join(dir, "a", "data.a.csv"))
	if uint64(len(a))+s.rowsDropped != 2000 {
		t.Errorf("written %d + dropped %d != 2000", len(a), s.rowsDropped)
	}
	if len(a) < 500 || len(a) > 700 {
		t.Errorf("split a has %d rows, want about 600", len(a))
	}
}

func TestChunkedRowSplit(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", append([]string{"h"}, dataRows(5)...))

	s := New(Config{Input: input, Header: true, ChunkSize: 2}, rowSet(t, "a=5"), split.NewRand(seeded(9)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := map[string]int{"data.a.0000.csv": 3, "data.a.0001.csv": 3, "data.a.0002.csv": 2}
	for name, n := range want {
		lines := readLines(t, filepath.Join(dir, "a", name))
		if len(lines) != n || lines[0] != "h" {
			t.Errorf("%s = %v, want header plus %d rows", name, lines, n-1)
		}
	}
}

func TestChunkedProportionRotates(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", dataRows(200))

	s := New(Config{Input: input, ChunkSize: 10}, propSet(t, "a=0.5", "b=0.5"), split.NewRand(seeded(5)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		entries, err := os.ReadDir(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		total := 0
		for _, e := range entries {
			lines := readLines(t, filepath.Join(dir, name, e.Name()))
			if len(lines) > 10 {
				t.Errorf("%s has %d rows, more than the chunk size", e.Name(), len(lines))
			}
			total += len(lines)
		}
		if len(entries) < 2 || total == 0 {
			t.Errorf("split %s: %d files with %d rows", name, len(entries), total)
		}
	}
}

func TestSameSeedSameOutput(t *testing.T) {
	rows := dataRows(500)
	run := func() (string, string) {
		dir := t.TempDir()
		input := writeInput(t, dir, "data.csv", rows)
		s := New(Config{Input: input}, propSet(t, "train=0.7", "test=0.2"), split.NewRand(seeded(7)))
		if err := s.Run(context.Background()); err != nil {
			t.Fatalf("Run: %v", err)
		}
		train, _ := os.ReadFile(filepath.Join(dir, "train", "data.train.csv"))
		test, _ := os.ReadFile(filepath.Join(dir, "test", "data.test.csv"))
		return string(train), string(test)
	}
	train1, test1 := run()
	train2, test2 := run()
	if train1 != train2 || test1 != test2 {
		t.Error("same seed produced different outputs")
	}
}

func TestEmptyInput(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		header bool
	}{
		{"no rows", nil, false},
		{"no rows with header", nil, true},
		{"header only", []string{"id,value"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			input := writeInput(t, dir, "data.csv", tt.lines)
			s := New(Config{Input: input, Header: tt.header}, rowSet(t, "train=1"), split.NewRand(seeded(1)))
			err := s.Run(context.Background())
			if !errors.Is(err, ErrEmptyInput) {
				t.Fatalf("Run = %v, want ErrEmptyInput", err)
			}
			if _, err := os.Stat(filepath.Join(dir, "train")); !os.IsNotExist(err) {
				t.Error("no output should be created for empty input")
			}
		})
	}
}

func TestExhaustedStopsReading(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	// Rows past the targets are not valid UTF-8; reading them would fail.
	content := "1\n2\n3\n\xff\xfe\n\xff\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Config{Input: path}, rowSet(t, "a=2", "b=1"), split.NewRand(seeded(11)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a := readLines(t, filepath.Join(dir, "a", "data.a.csv"))
	b := readLines(t, filepath.Join(dir, "b", "data.b.csv"))
	if len(a) != 2 || len(b) != 1 {
		t.Errorf("got %d/%d rows, want 2/1", len(a), len(b))
	}
}

func TestRowTargetsLargerThanInput(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", dataRows(4))
	s := New(Config{Input: input}, rowSet(t, "a=10", "b=10"), split.NewRand(seeded(2)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a := readLines(t, filepath.Join(dir, "a", "data.a.csv"))
	b := readLines(t, filepath.Join(dir, "b", "data.b.csv"))
	if len(a)+len(b) != 4 {
		t.Errorf("got %d+%d rows, want 4", len(a), len(b))
	}
}

func TestOutputPrefix(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", dataRows(3))
	out := filepath.Join(dir, "out", "run1")
	s := New(Config{Input: input, OutputPrefix: out}, rowSet(t, "all=3"), split.NewRand(seeded(1)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := readLines(t, filepath.Join(dir, "out", "all", "run1.all.csv")); len(got) != 3 {
		t.Errorf("got %v", got)
	}
}

func TestCompressedInputAndOutput(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("h\n1\n2\n3\n"))
	zw.Close()
	input := filepath.Join(dir, "data.csv.gz")
	if err := os.WriteFile(input, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(Config{
		Input:            input,
		Header:           true,
		InputCompression: compression.TypeAuto,
		Output:           compression.Config{Type: compression.TypeGzip},
	}, rowSet(t, "all=3"), split.NewRand(seeded(1)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "all", "data.all.csv.gz"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := io.ReadAll(zr)
	if string(data) != "h\n1\n2\n3\n" {
		t.Errorf("output = %q", data)
	}
}

func TestCSVRecordsKeepEmbeddedNewlines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("id,text\n1,\"a\nb\"\n2,c\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Config{Input: path, Header: true, CSV: true}, rowSet(t, "all=2"), split.NewRand(seeded(1)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "all", "data.all.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "id,text\n1,\"a\nb\"\n2,c\n" {
		t.Errorf("output = %q", data)
	}
}

func TestCSVHeaderWrittenVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("\"id\",\"val\"\n\"1\",\"a\"\n\"2\",\"b\""), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Config{Input: path, Header: true, CSV: true}, rowSet(t, "a=2"), split.NewRand(seeded(1)))
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "a", "data.a.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "\"id\",\"val\"\n\"1\",\"a\"\n\"2\",\"b\"\n" {
		t.Errorf("output = %q", data)
	}
}

func TestWriteFailureFailsRun(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", dataRows(50))
	// A regular file where the split directory should go.
	if err := os.WriteFile(filepath.Join(dir, "train"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Config{Input: input}, rowSet(t, "train=30", "test=10"), split.NewRand(seeded(1)))
	err := s.Run(context.Background())
	if !errors.Is(err, dataio.ErrIO) {
		t.Fatalf("Run = %v, want ErrIO", err)
	}
	if Classify(err) != KindIOFailure {
		t.Errorf("Classify = %q, want %q", Classify(err), KindIOFailure)
	}
}

func TestDecodeFailureFailsRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("1\n2\n\xff\n3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(Config{Input: path}, propSet(t, "a=0.5", "b=0.5"), split.NewRand(seeded(1)))
	err := s.Run(context.Background())
	if Classify(err) != KindDecodeFailure {
		t.Fatalf("Run = %v, want decode failure", err)
	}
}

func TestMissingInput(t *testing.T) {
	s := New(Config{Input: filepath.Join(t.TempDir(), "missing.csv")}, rowSet(t, "a=1"), split.NewRand(seeded(1)))
	err := s.Run(context.Background())
	if Classify(err) != KindIOFailure {
		t.Fatalf("Run = %v, want io failure", err)
	}
}

func TestCancelledRun(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", dataRows(100))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(Config{Input: input}, propSet(t, "a=0.5", "b=0.5"), split.NewRand(seeded(1)))
	err := s.Run(ctx)
	if Classify(err) != KindCanceled {
		t.Fatalf("Run = %v, want canceled", err)
	}
}

func TestTargets(t *testing.T) {
	rows := Targets(rowSet(t, "train=7", "test=3"))
	if len(rows) != 2 || !rows[0].ByRows || rows[0].Rows != 7 || rows[1].Name != "test" {
		t.Errorf("row targets = %+v", rows)
	}
	props := Targets(propSet(t, "a=0.25"))
	if len(props) != 1 || props[0].ByRows || props[0].Proportion != 0.25 {
		t.Errorf("proportion targets = %+v", props)
	}
}

func TestTargetsUseRemainingRows(t *testing.T) {
	set, err := split.NewRowSet([]split.RowSplit{{Name: "a", Total: 10, Done: 4}})
	if err != nil {
		t.Fatal(err)
	}
	targets := Targets(set)
	if len(targets) != 1 || targets[0].Rows != 6 {
		t.Errorf("targets = %+v, want a with 6 rows", targets)
	}
}

func TestZeroRowTargetsReadNothing(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty input", ""},
		// Reading any row would fail.
		{"undecodable input", "\xff\xfe\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "data.csv")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			rec := newRecorder()
			s := New(Config{Input: path, Header: true}, rowSet(t, "a=0"), split.NewRand(seeded(1)), WithProgress(rec))
			if err := s.Run(context.Background()); err != nil {
				t.Fatalf("Run = %v, want nil", err)
			}
			if s.rowsRead != 0 {
				t.Errorf("rowsRead = %d, want 0", s.rowsRead)
			}
			if _, err := os.Stat(filepath.Join(dir, "a")); !os.IsNotExist(err) {
				t.Error("no output should be created when every target is 0")
			}
			if !rec.finished["a"] {
				t.Error("split a not marked finished")
			}
		})
	}
}

func TestFailedRunFinishesProgress(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "data.csv", dataRows(50))
	if err := os.WriteFile(filepath.Join(dir, "train"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	s := New(Config{Input: input}, rowSet(t, "train=30", "test=10"), split.NewRand(seeded(1)), WithProgress(rec))
	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected run to fail")
	}
	for _, name := range []string{"train", "test"} {
		if !rec.finished[name] {
			t.Errorf("split %s not marked finished after failure", name)
		}
	}
}

func TestBadOutputLevelLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir, "in.csv", dataRows(5))
	cfg := Config{Input: input, Output: compression.Config{Type: compression.TypeGzip, Level: 12}}
	err := New(cfg, rowSet(t, "a=5"), split.NewRand(seeded(1))).Run(context.Background())
	if Classify(err) != KindIOFailure {
		t.Fatalf("Run = %v (%s), want %s", err, Classify(err), KindIOFailure)
	}
	if _, err := os.Stat(filepath.Join(dir, "a", "in.a.csv.gz")); !os.IsNotExist(err) {
		t.Errorf("expected no output file, stat = %v", err)
	}
}
