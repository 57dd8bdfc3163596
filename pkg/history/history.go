// Package history persists the runtime's global, append-only message log.
//
// The log is a JSON Lines file with one record per line:
//
//	{"session_id":"<uuid>","ts":<unix_seconds>,"text":"<message>"}
//
// Concurrent writers coordinate through an advisory file lock so appended
// lines never interleave across processes. The file identity token returned
// by Metadata lets readers detect that the file was replaced between a
// metadata query and a Lookup.
package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	lockTimeout       = 1 * time.Second
	lockRetryInterval = 100 * time.Millisecond

	filePerm = 0o600
)

// ErrLockTimeout is returned when the advisory lock on the history file
// could not be acquired after repeated attempts.
var ErrLockTimeout = errors.New("history: could not acquire lock on history file")

// Entry is one persisted message.
type Entry struct {
	SessionID string `json:"session_id"`
	TS        int64  `json:"ts"`
	Text      string `json:"text"`
}

// Options tune a Log. The zero value keeps everything and never trims.
type Options struct {
	// MaxBytes caps the file size. When an append would exceed it, the
	// oldest whole lines are dropped. Zero means unlimited.
	MaxBytes int
	// SensitivePatterns are regular expressions; entries whose text matches
	// any of them are silently skipped.
	SensitivePatterns []string
	// Logger receives diagnostics for non-fatal read failures. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Log is an append-only JSON-Lines message log guarded by an advisory file
// lock. A Log is safe for concurrent use from multiple goroutines and
// cooperates with other processes appending to the same file.
type Log struct {
	path      string
	maxBytes  int
	sensitive []*regexp.Regexp
	logger    *slog.Logger
}

// Open prepares a Log backed by the file at path. The file itself is created
// lazily on first append.
func Open(path string, opts *Options) (*Log, error) {
	var options Options
	if opts != nil {
		options = *opts
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	sensitive := make([]*regexp.Regexp, 0, len(options.SensitivePatterns))
	for _, pattern := range options.SensitivePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("history: invalid sensitive pattern %q: %w", pattern, err)
		}
		sensitive = append(sensitive, re)
	}
	return &Log{
		path:      path,
		maxBytes:  options.MaxBytes,
		sensitive: sensitive,
		logger:    options.Logger,
	}, nil
}

// Append writes one entry associated with sessionID to the log. The full
// line is prepared up front and written under an exclusive advisory lock so
// concurrent appenders never interleave. Entries matching a sensitive
// pattern are dropped without error.
func (l *Log) Append(text string, sessionID uuid.UUID) error {
	for _, re := range l.sensitive {
		if re.MatchString(text) {
			return nil
		}
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	entry := Entry{
		SessionID: sessionID.String(),
		TS:        time.Now().Unix(),
		Text:      text,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("history: encoding entry: %w", err)
	}
	line = append(line, '\n')

	unlock, err := l.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, filePerm)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := ensureOwnerOnly(f); err != nil {
		return err
	}

	if l.maxBytes > 0 {
		return l.appendTrimmed(f, line)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	_, err = f.Write(line)
	return err
}

// appendTrimmed appends line and, when the file would exceed maxBytes,
// rewrites it keeping only the newest whole lines that fit.
func (l *Log) appendTrimmed(f *os.File, line []byte) error {
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	data = append(data, line...)

	if len(data) <= l.maxBytes {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			return err
		}
		_, err = f.Write(line)
		return err
	}

	start := 0
	for len(data)-start > l.maxBytes {
		i := bytes.IndexByte(data[start:], '\n')
		if i < 0 {
			start = len(data) - l.maxBytes
			break
		}
		start += i + 1
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err = f.Write(data[start:])
	return err
}

// Metadata returns the log file's identity token (the inode on Unix) and the
// current number of entries. A missing or unreadable file reports (0, 0).
func (l *Log) Metadata() (logID uint64, entries int) {
	info, err := os.Stat(l.path)
	if err != nil {
		return 0, 0
	}
	logID, _ = fileID(info)

	f, err := os.Open(l.path)
	if err != nil {
		return logID, 0
	}
	defer f.Close()

	buf := make([]byte, 8192)
	for {
		n, err := f.Read(buf)
		entries += bytes.Count(buf[:n], []byte{'\n'})
		if err != nil {
			return logID, entries
		}
	}
}

// Lookup returns the entry at the zero-based offset, provided logID still
// matches the current file identity. Read and parse failures are logged and
// reported as a miss.
func (l *Log) Lookup(logID uint64, offset int) (Entry, bool) {
	f, err := os.Open(l.path)
	if err != nil {
		l.logger.Warn("failed to open history file", "error", err)
		return Entry{}, false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		l.logger.Warn("failed to stat history file", "error", err)
		return Entry{}, false
	}
	id, ok := fileID(info)
	if !ok || id != logID {
		return Entry{}, false
	}

	unlock, err := l.lock(false)
	if err != nil {
		l.logger.Warn("failed to acquire shared lock on history file", "error", err)
		return Entry{}, false
	}
	defer unlock()

	scanner := bufio.NewScanner(f)
	for idx := 0; scanner.Scan(); idx++ {
		if idx != offset {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			l.logger.Warn("failed to parse history entry", "error", err)
			return Entry{}, false
		}
		return entry, true
	}
	if err := scanner.Err(); err != nil {
		l.logger.Warn("failed to read history file", "error", err)
	}
	return Entry{}, false
}

// lock acquires the advisory lock guarding the history file, retrying for a
// bounded interval so a stuck writer cannot block forever.
func (l *Log) lock(exclusive bool) (func(), error) {
	fl := flock.New(l.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	var locked bool
	var err error
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryInterval)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryInterval)
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("history: acquiring lock on history file: %w", err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			l.logger.Warn("failed to release history lock", "error", err)
		}
	}, nil
}

func ensureOwnerOnly(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Mode().Perm() != filePerm {
		return f.Chmod(filePerm)
	}
	return nil
}
