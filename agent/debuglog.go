package agent

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	debugLogMaxEntries = 5000
	debugLogPath       = "app.log"
)

// debugLogger is a process-wide, append-only log with a bounded entry count
// (oldest-first eviction) persisted to a single file. It is the only global
// mutable state in the runtime; everything else is per-adapter.
type debugLogger struct {
	path    string
	mu      sync.Mutex
	entries []string
}

var (
	debugLoggerOnce sync.Once
	debugLoggerInst *debugLogger
)

// DebugLog appends a formatted entry to the process-wide debug log,
// initializing it lazily on first use at debugLogPath. Safe for concurrent
// use from any goroutine.
func DebugLog(format string, args ...interface{}) {
	debugLoggerOnce.Do(func() {
		debugLoggerInst = newDebugLogger(debugLogPath)
	})
	debugLoggerInst.append(fmt.Sprintf(format, args...))
}

func newDebugLogger(path string) *debugLogger {
	l := &debugLogger{path: path}
	l.readExisting()
	return l
}

func (l *debugLogger) readExisting() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	lines := splitLines(string(data))
	if len(lines) > debugLogMaxEntries {
		lines = lines[len(lines)-debugLogMaxEntries:]
	}
	l.entries = lines
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// append formats a timestamped line, evicts the oldest entry at capacity,
// and rewrites the whole file. Numeric-only timestamp formatting avoids
// locale-dependent month/weekday names that can break on non-English
// Windows locales.
func (l *debugLogger) append(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006-01-02 15:04:05.000")
	line := fmt.Sprintf("[%s] %s", ts, message)

	l.entries = append(l.entries, line)
	if len(l.entries) > debugLogMaxEntries {
		l.entries = l.entries[len(l.entries)-debugLogMaxEntries:]
	}

	l.rewrite()
}

func (l *debugLogger) rewrite() {
	f, err := os.Create(l.path)
	if err != nil {
		return
	}
	defer f.Close()
	for _, e := range l.entries {
		fmt.Fprintln(f, e)
	}
}
