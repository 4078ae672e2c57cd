package links

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const rejectLogPerm = 0o644

// RejectLog appends rejected URLs to a file, one "<RFC3339 timestamp> <url>" line each.
type RejectLog struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewRejectLog returns a log writing to path. An empty path disables it.
func NewRejectLog(path string) *RejectLog {
	return &RejectLog{path: path, now: time.Now}
}

// Record appends rawURL to the log.
func (l *RejectLog) Record(rawURL string) error {
	if l == nil || l.path == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create reject log dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, rejectLogPerm)
	if err != nil {
		return fmt.Errorf("open reject log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s %s\n", l.now().UTC().Format(time.RFC3339), rawURL); err != nil {
		return fmt.Errorf("write reject log: %w", err)
	}

	return nil
}
