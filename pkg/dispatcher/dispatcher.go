// Package dispatcher implements the broker command router of spec.md
// §4.F: handlers register a subset pattern to match against, every
// incoming Command is checked against every registered pattern in
// registration order, and each matching handler's non-empty response is
// emitted as an event alongside the command it answered.
//
// This generalizes the teacher's channel/field switch-dispatch
// (SubscribeToRedisChannels in librescoot-bluetooth-service) into pattern
// matching over arbitrary command maps, since the chain station has no
// fixed set of Redis channels/fields to switch on.
package dispatcher

import (
	"log"

	"github.com/sramlab/chainstation/pkg/broker"
	"github.com/sramlab/chainstation/pkg/eventlog"
)

// Handler answers one matched Command. A nil or empty response means the
// handler chose not to emit anything for this command.
type Handler func(cmd broker.Command) map[string]interface{}

type registration struct {
	pattern broker.Command
	handler Handler
}

// Dispatcher owns the handler registry and routes commands drained off a
// broker queue to every handler whose pattern matches.
type Dispatcher struct {
	registrations []registration
	sink          *eventlog.Sink
	sourceName    string
	logger        *log.Logger
}

// New constructs an empty Dispatcher. sourceName identifies this
// dispatcher's chain in emitted events.
func New(sourceName string, sink *eventlog.Sink, logger *log.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, sourceName: sourceName, logger: logger}
}

// AddCommand registers handler to run against every Command matching
// pattern: every key in pattern must be present in the incoming Command
// with an equal value (spec.md §4.F's subset match). An empty pattern
// matches every command. Handlers run in registration order.
func (d *Dispatcher) AddCommand(pattern broker.Command, handler Handler) {
	d.registrations = append(d.registrations, registration{pattern: pattern, handler: handler})
}

// Dispatch runs cmd through every registered handler whose pattern
// matches, emitting an event for each non-empty response.
func (d *Dispatcher) Dispatch(cmd broker.Command) {
	for _, reg := range d.registrations {
		if !matches(reg.pattern, cmd) {
			continue
		}
		resp := reg.handler(cmd)
		if len(resp) == 0 {
			continue
		}
		if d.sink == nil {
			continue
		}
		d.sink.Emit(eventlog.Record{
			SourceName: d.sourceName,
			Level:      eventlog.Info,
			Message:    "command handled",
			Context: map[string]interface{}{
				"command":  map[string]interface{}(cmd),
				"response": resp,
			},
		})
	}
}

func matches(pattern, cmd broker.Command) bool {
	for k, v := range pattern {
		cv, ok := cmd[k]
		if !ok || cv != v {
			return false
		}
	}
	return true
}

// Run drains cmds (as produced by broker.Client.WatchCommands) until the
// channel is closed, dispatching each one. It mirrors the teacher's
// for-range-over-channel consumption loop (WatchRedisCommands).
func (d *Dispatcher) Run(cmds <-chan broker.Command) {
	for cmd := range cmds {
		d.Dispatch(cmd)
	}
}

func (d *Dispatcher) logf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}
