package logger

import (
	"bufio"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/quaylabs/devsim/devs"
)

func testNode() *devs.Simulator {
	node := devs.NewAtomic("root/a", &devs.NopBehavior{}, nil, devs.Resources{})
	node.Init(devs.ValueTime(0), rand.New(rand.NewSource(0)))
	return node
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("unmarshal line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	return records
}

func TestLoggerWritesEventsInOrder(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "root/a")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	node := testNode()
	l.OnInit(node, devs.ValueTime(0), []byte(`null`), []byte(`{"n":0}`), devs.ValueTime(1))
	l.BeforeInternalTransition(node, devs.ValueTime(1))
	l.AfterInternalTransition(node, devs.ValueTime(1), []byte(`{"n":0}`), []byte(`{"n":1}`), devs.ValueTime(2))
	if _, ok := l.Finish(node, devs.ValueTime(2)); ok {
		t.Error("Finish should report no result")
	}

	path := filepath.Join(dir, "root", "a.log")
	records := readLines(t, path)
	if len(records) != 2 {
		t.Fatalf("got %d log records, want 2", len(records))
	}
	if records[0]["EVENT"] != "INIT" {
		t.Errorf("first record EVENT = %v, want INIT", records[0]["EVENT"])
	}
	if records[1]["EVENT"] != "INTERNAL_TRANSITION" {
		t.Errorf("second record EVENT = %v, want INTERNAL_TRANSITION", records[1]["EVENT"])
	}
	if l.Err() != nil {
		t.Errorf("Err() = %v, want nil after a clean run", l.Err())
	}
}

func TestLoggerWriteFailureAbortsViaErr(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "a")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Close the underlying file out from under the Logger so its next
	// write fails, the same way a real IO fault would.
	if err := l.f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	node := testNode()
	l.BeforeInternalTransition(node, devs.ValueTime(1))
	l.AfterInternalTransition(node, devs.ValueTime(1), []byte(`{}`), []byte(`{}`), devs.ValueTime(2))

	if l.Err() == nil {
		t.Fatal("Err() = nil, want a non-nil error after a write to a closed file")
	}
	if _, ok := l.Err().(*devs.IOError); !ok {
		t.Errorf("Err() = %T, want *devs.IOError", l.Err())
	}

	// A Logger that has already failed must not attempt further writes.
	firstErr := l.Err()
	l.BeforeInternalTransition(node, devs.ValueTime(2))
	l.AfterInternalTransition(node, devs.ValueTime(2), []byte(`{}`), []byte(`{}`), devs.ValueTime(3))
	if l.Err() != firstErr {
		t.Errorf("Err() changed after the Logger had already failed: %v -> %v", firstErr, l.Err())
	}
}

func TestLoggerIgnoresMismatchedAfterHook(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, "a")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// An After* hook with no matching Before* pending must not write a record.
	l.AfterExternalTransition(nil, devs.ValueTime(1), []byte(`null`), []byte(`null`), devs.ValueTime(2))
	l.Finish(nil, devs.ValueTime(2))

	records := readLines(t, filepath.Join(dir, "a.log"))
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestSanitizePathSegment(t *testing.T) {
	if got := SanitizePathSegment("a/b"); got != "a_b" {
		t.Errorf("SanitizePathSegment(a/b) = %q, want a_b", got)
	}
}
