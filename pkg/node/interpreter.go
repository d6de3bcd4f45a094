package node

// Interpreter is the embedded byte-code engine a Node exposes through
// LOAD/EXEC/RETR. Per spec.md §1 it is explicitly out of scope for the
// protocol core — the protocol only transports its source text in, its
// status out, and its output buffer out. Interpreter is the seam: a real
// deployment plugs in the actual byte-code engine, and the node runtime
// never looks past this interface.
type Interpreter interface {
	// Eval evaluates the given source text and returns an engine-defined
	// status code (0 conventionally means success).
	Eval(source []byte) (status uint32)
	// Output returns everything written by the most recent Eval since the
	// last Reset.
	Output() []byte
	// Reset clears the accumulated output buffer.
	Reset()
}

// EchoInterpreter is a placeholder Interpreter used where no real
// byte-code engine is wired in (virtual chains, tests, bench tools without
// the embedded runtime present). It treats the source as already being its
// own output and always reports success; it exists only so LOAD/EXEC/RETR
// have something to drive end-to-end.
type EchoInterpreter struct {
	output []byte
}

func NewEchoInterpreter() *EchoInterpreter {
	return &EchoInterpreter{}
}

func (e *EchoInterpreter) Eval(source []byte) uint32 {
	e.output = append(e.output, source...)
	return 0
}

func (e *EchoInterpreter) Output() []byte {
	return e.output
}

func (e *EchoInterpreter) Reset() {
	e.output = e.output[:0]
}
