package eventlog

import (
	"log"
	"time"
)

// Output is a fan-out destination for Records. Implementations are
// polymorphic per spec.md §4.G; Emit returning an error marks that one
// delivery as failed without affecting any other Output.
type Output interface {
	Emit(rec Record) error
}

// Thresholded wraps an Output with a level filter: a record at Level is
// emitted iff Min <= Level < Max (spec.md §4.G). A zero Max is treated as
// "no upper bound".
type Thresholded struct {
	Min Level
	Max Level
	Out Output
}

func (t *Thresholded) Emit(rec Record) error {
	max := t.Max
	if max == 0 {
		max = Error + 1
	}
	if rec.Level < t.Min || rec.Level >= max {
		return nil
	}
	return t.Out.Emit(rec)
}

// Sink fans a Record out to every configured Output. It is safe for
// concurrent use by multiple Readers (spec.md §5: "the log sink is
// concurrency-safe and fans in from all Readers") because each Emit call
// only reads the (immutable after construction) outputs slice.
type Sink struct {
	outputs []Output
	logger  *log.Logger
}

// NewSink builds a Sink fanning out to outputs. logger receives a line
// whenever an individual output fails; it may be nil to suppress that.
func NewSink(logger *log.Logger, outputs ...Output) *Sink {
	return &Sink{outputs: outputs, logger: logger}
}

// Emit stamps EmittedAt if unset and delivers rec to every output,
// continuing past individual failures.
func (s *Sink) Emit(rec Record) {
	if rec.EmittedAt.IsZero() {
		rec.EmittedAt = time.Now()
	}
	for _, out := range s.outputs {
		if err := out.Emit(rec); err != nil && s.logger != nil {
			s.logger.Printf("eventlog: output delivery failed: %v", err)
		}
	}
}
