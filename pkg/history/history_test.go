package history

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

func openTestLog(t *testing.T, opts *Options) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	log, err := Open(path, opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return log, path
}

func readEntries(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading history file: %v", err)
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestAppendAndLookup(t *testing.T) {
	t.Parallel()

	log, _ := openTestLog(t, nil)
	sessionID := uuid.New()

	for _, text := range []string{"first", "second", "third"} {
		if err := log.Append(text, sessionID); err != nil {
			t.Fatalf("Append(%q): %v", text, err)
		}
	}

	logID, entries := log.Metadata()
	if entries != 3 {
		t.Fatalf("Metadata entries = %d, expected 3", entries)
	}
	if runtime.GOOS == "windows" {
		t.Skip("no file identity token on this platform")
	}
	if logID == 0 {
		t.Fatalf("expected a non-zero log identity")
	}

	entry, ok := log.Lookup(logID, 1)
	if !ok {
		t.Fatalf("Lookup(_, 1) reported a miss")
	}
	if entry.Text != "second" || entry.SessionID != sessionID.String() {
		t.Fatalf("Lookup returned %+v, expected the second entry", entry)
	}
	if entry.TS == 0 {
		t.Fatalf("entry timestamp missing")
	}

	if _, ok := log.Lookup(logID, 99); ok {
		t.Fatalf("Lookup past the end should miss")
	}
	if _, ok := log.Lookup(logID+1, 0); ok {
		t.Fatalf("Lookup with a stale identity token should miss")
	}
}

func TestTrimsToMaxBytes(t *testing.T) {
	t.Parallel()

	log, path := openTestLog(t, &Options{MaxBytes: 100})
	sessionID := uuid.New()

	for _, text := range []string{"first", "second", "third"} {
		if err := log.Append(text, sessionID); err != nil {
			t.Fatalf("Append(%q): %v", text, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading history file: %v", err)
	}
	if len(data) > 100 {
		t.Fatalf("file is %d bytes, expected at most 100", len(data))
	}
	lines := readEntries(t, path)
	if len(lines) != 1 || !strings.Contains(lines[0], "third") {
		t.Fatalf("expected only the newest entry to survive, got %v", lines)
	}
}

func TestFiltersSensitiveText(t *testing.T) {
	t.Parallel()

	log, path := openTestLog(t, &Options{SensitivePatterns: []string{"secret"}})
	sessionID := uuid.New()

	if err := log.Append("this is secret", sessionID); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append("ok", sessionID); err != nil {
		t.Fatalf("Append: %v", err)
	}

	lines := readEntries(t, path)
	if len(lines) != 1 || !strings.Contains(lines[0], "ok") {
		t.Fatalf("expected only the non-sensitive entry, got %v", lines)
	}
}

func TestInvalidSensitivePatternRejected(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.jsonl")
	if _, err := Open(path, &Options{SensitivePatterns: []string{"("}}); err == nil {
		t.Fatalf("expected error for invalid pattern")
	}
}

func TestOwnerOnlyPermissions(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on this platform")
	}

	log, path := openTestLog(t, nil)
	if err := log.Append("entry", uuid.New()); err != nil {
		t.Fatalf("Append: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("history file permissions = %o, expected 600", perm)
	}
}

func TestAppendReportsLockTimeout(t *testing.T) {
	t.Parallel()

	log, path := openTestLog(t, nil)
	held := flock.New(path + ".lock")
	if err := held.Lock(); err != nil {
		t.Fatalf("taking lock: %v", err)
	}
	defer held.Unlock()

	err := log.Append("blocked", uuid.New())
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("Append under a held lock returned %v, expected ErrLockTimeout", err)
	}
}

func TestMetadataMissingFile(t *testing.T) {
	t.Parallel()

	log, _ := openTestLog(t, nil)
	if logID, entries := log.Metadata(); logID != 0 || entries != 0 {
		t.Fatalf("Metadata on missing file = (%d, %d), expected (0, 0)", logID, entries)
	}
}
