package eventlog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// TimeRotatingFileOutput rotates onto a new file at each UTC day boundary,
// sharing the hand-rolled-against-stdlib approach of RotatingFileOutput
// (see DESIGN.md for why no rotation library is imported).
type TimeRotatingFileOutput struct {
	mu         sync.Mutex
	pathPrefix string
	file       *os.File
	currentDay string
}

// NewTimeRotatingFileOutput opens the file for the current UTC day,
// named "<pathPrefix>.<YYYY-MM-DD>.log".
func NewTimeRotatingFileOutput(pathPrefix string) (*TimeRotatingFileOutput, error) {
	t := &TimeRotatingFileOutput{pathPrefix: pathPrefix}
	if err := t.openForDay(time.Now().UTC()); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TimeRotatingFileOutput) fileName(day string) string {
	return fmt.Sprintf("%s.%s.log", t.pathPrefix, day)
}

func (t *TimeRotatingFileOutput) openForDay(now time.Time) error {
	day := now.Format("2006-01-02")
	f, err := os.OpenFile(t.fileName(day), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open %s: %w", t.fileName(day), err)
	}
	if t.file != nil {
		t.file.Close()
	}
	t.file = f
	t.currentDay = day
	return nil
}

func (t *TimeRotatingFileOutput) Emit(rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := rec.EmittedAt.UTC()
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if now.Format("2006-01-02") != t.currentDay {
		if err := t.openForDay(now); err != nil {
			return err
		}
	}
	line, err := formatLine(rec)
	if err != nil {
		return err
	}
	if _, err := t.file.Write(line); err != nil {
		return fmt.Errorf("eventlog: write %s: %w", t.fileName(t.currentDay), err)
	}
	return nil
}

// Close flushes and closes the currently open file.
func (t *TimeRotatingFileOutput) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
