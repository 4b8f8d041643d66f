package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/roach88/bouncer/internal/engine"
)

// FileLog appends results as JSON lines under a log directory, one file
// per day.
type FileLog struct {
	dir       string
	formatter *Formatter

	mu sync.Mutex
}

// NewFileLog creates the notifier, creating the log directory if needed.
func NewFileLog(dir string, level DetailLevel) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &FileLog{dir: dir, formatter: NewFormatter(level)}, nil
}

func (f *FileLog) Name() string { return "file_log" }

// Send appends one JSON line. Serialized with a mutex: the dispatcher
// fans out concurrently and jsonl corrupts under interleaved writes.
func (f *FileLog) Send(ctx context.Context, res *engine.AggregateResult) error {
	line, err := json.Marshal(f.formatter.Format(res))
	if err != nil {
		return fmt.Errorf("file log: %w", err)
	}

	name := filepath.Join(f.dir, "bouncer-"+res.CreatedAt.UTC().Format("2006-01-02")+".jsonl")

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("file log: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("file log: %w", err)
	}
	return nil
}
