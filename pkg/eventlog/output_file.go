package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

func formatLine(rec Record) ([]byte, error) {
	ctx, err := json.Marshal(rec.Context)
	if err != nil {
		return nil, fmt.Errorf("eventlog: marshal context: %w", err)
	}
	line := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\n",
		rec.EmittedAt.Format(time.RFC3339Nano), rec.Level, rec.SourceName, rec.Message, ctx)
	return []byte(line), nil
}

// RotatingFileOutput is a size-based rotating file output. No size-rotation
// library appears in any full example repo's imports (only in pack
// manifest-only go.mod references), so rotation is hand-rolled against the
// standard library — see DESIGN.md.
type RotatingFileOutput struct {
	mu         sync.Mutex
	path       string
	maxBytes   int64
	maxBackups int
	file       *os.File
	size       int64
}

// NewRotatingFileOutput opens (or creates) path, rotating to path.1..N
// once it would exceed maxBytes.
func NewRotatingFileOutput(path string, maxBytes int64, maxBackups int) (*RotatingFileOutput, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("eventlog: stat %s: %w", path, err)
	}
	return &RotatingFileOutput{
		path:       path,
		maxBytes:   maxBytes,
		maxBackups: maxBackups,
		file:       f,
		size:       info.Size(),
	}, nil
}

func (r *RotatingFileOutput) Emit(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	line, err := formatLine(rec)
	if err != nil {
		return err
	}
	if r.maxBytes > 0 && r.size+int64(len(line)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			return err
		}
	}
	n, err := r.file.Write(line)
	r.size += int64(n)
	if err != nil {
		return fmt.Errorf("eventlog: write %s: %w", r.path, err)
	}
	return nil
}

func (r *RotatingFileOutput) rotate() error {
	r.file.Close()
	for i := r.maxBackups - 1; i >= 1; i-- {
		old := fmt.Sprintf("%s.%d", r.path, i)
		next := fmt.Sprintf("%s.%d", r.path, i+1)
		if _, err := os.Stat(old); err == nil {
			os.Rename(old, next)
		}
	}
	if r.maxBackups > 0 {
		os.Rename(r.path, fmt.Sprintf("%s.1", r.path))
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: reopen %s after rotation: %w", r.path, err)
	}
	r.file = f
	r.size = 0
	return nil
}

// Close flushes and closes the underlying file.
func (r *RotatingFileOutput) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}
