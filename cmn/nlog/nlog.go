// Package nlog is docstore's logger: timestamped, severity-gated, written
// straight to the log file (no in-memory buffer), rotated by size, adapted from the teacher's cmn/nlog package but
// stripped of its multi-file-per-severity buffer-pool machinery (one process,
// one log stream, far fewer log lines per second than a storage cluster).
package nlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevText = [...]string{"I", "W", "E"}

const defaultMaxSize = 4 * 1024 * 1024

type logger struct {
	mu       sync.Mutex
	w        *os.File
	dir      string
	role     string
	toStderr bool
	alsoStd  bool
	written  int64
	maxSize  int64
}

var (
	std  = &logger{maxSize: defaultMaxSize}
	once sync.Once
)

// SetLogDirRole sets the destination directory and a short role tag
// (e.g. "server", "client") embedded in the log file name.
func SetLogDirRole(dir, role string) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.dir, std.role = dir, role
}

// SetToStderr routes every log line to stderr instead of the log file,
// mirroring the teacher's --logtostderr flag.
func SetToStderr(v bool) {
	std.mu.Lock()
	std.toStderr = v
	std.mu.Unlock()
}

// SetAlsoStderr additionally echoes warning/error lines to stderr while
// still writing the full stream to the log file, mirroring the teacher's
// --alsologtostderr flag. Ignored once SetToStderr(true) is in effect.
func SetAlsoStderr(v bool) {
	std.mu.Lock()
	std.alsoStd = v
	std.mu.Unlock()
}

func Infof(format string, args ...any)    { log(sevInfo, format, args...) }
func Warningf(format string, args ...any) { log(sevWarn, format, args...) }
func Errorf(format string, args ...any)   { log(sevErr, format, args...) }
func Infoln(args ...any)                  { logln(sevInfo, args...) }
func Warningln(args ...any)               { logln(sevWarn, args...) }
func Errorln(args ...any)                 { logln(sevErr, args...) }

func log(sev severity, format string, args ...any) {
	write(sev, fmt.Sprintf(format, args...))
}

func logln(sev severity, args ...any) {
	write(sev, fmt.Sprintln(args...))
}

func write(sev severity, msg string) {
	line := fmt.Sprintf("%s%s %s\n", sevText[sev], time.Now().Format("0102 15:04:05.000000"), msg)

	std.mu.Lock()
	defer std.mu.Unlock()

	if std.toStderr || sev >= sevWarn && std.alsoStd {
		os.Stderr.WriteString(line)
		if std.toStderr {
			return
		}
	}
	if std.w == nil {
		once.Do(func() { openLocked() })
	}
	if std.w == nil {
		os.Stderr.WriteString(line)
		return
	}
	n, err := std.w.WriteString(line)
	if err != nil {
		return
	}
	std.written += int64(n)
	if std.written >= std.maxSize {
		rotateLocked()
	}
}

func openLocked() {
	dir := std.dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	name := logfname(std.role, time.Now())
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	std.w = f
	std.written = 0
}

func rotateLocked() {
	if std.w != nil {
		std.w.Close()
		std.w = nil
	}
	openLocked()
}

func logfname(role string, t time.Time) string {
	if role == "" {
		role = "docstore"
	}
	return fmt.Sprintf("%s.%s.log", role, t.Format("20060102-150405"))
}

// Flush syncs the current log file to disk, if any; the file stays open.
// Callers are not
// required to invoke it; it exists for graceful-shutdown paths and tests.
func Flush() {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.w != nil {
		std.w.Sync()
	}
}
