package eventlog

import "log"

// TerminalOutput renders Records through a *log.Logger, the teacher
// repo's own logging idiom (log.Ldate|log.Ltime|log.Lmicroseconds).
type TerminalOutput struct {
	logger *log.Logger
}

func NewTerminalOutput(logger *log.Logger) *TerminalOutput {
	return &TerminalOutput{logger: logger}
}

func (t *TerminalOutput) Emit(rec Record) error {
	t.logger.Printf("[%s] %s: %s %v", rec.Level, rec.SourceName, rec.Message, rec.Context)
	return nil
}
