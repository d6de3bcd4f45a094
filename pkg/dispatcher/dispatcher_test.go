package dispatcher

import (
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sramlab/chainstation/pkg/broker"
	"github.com/sramlab/chainstation/pkg/eventlog"
)

type captureOutput struct {
	records []eventlog.Record
}

func (c *captureOutput) Emit(rec eventlog.Record) error {
	c.records = append(c.records, rec)
	return nil
}

func TestDispatchRunsMatchingHandlerOnly(t *testing.T) {
	out := &captureOutput{}
	sink := eventlog.NewSink(log.Default(), out)
	d := New("chain0", sink, nil)

	var pingCalls, readCalls int
	d.AddCommand(broker.Command{"op": "ping"}, func(cmd broker.Command) map[string]interface{} {
		pingCalls++
		return map[string]interface{}{"status": "OK"}
	})
	d.AddCommand(broker.Command{"op": "read"}, func(cmd broker.Command) map[string]interface{} {
		readCalls++
		return map[string]interface{}{"status": "OK"}
	})

	d.Dispatch(broker.Command{"op": "ping"})

	require.Equal(t, 1, pingCalls)
	require.Equal(t, 0, readCalls)
	require.Len(t, out.records, 1)
}

func TestDispatchEmptyResponseEmitsNothing(t *testing.T) {
	out := &captureOutput{}
	sink := eventlog.NewSink(log.Default(), out)
	d := New("chain0", sink, nil)

	d.AddCommand(broker.Command{"op": "status"}, func(cmd broker.Command) map[string]interface{} {
		return nil
	})
	d.Dispatch(broker.Command{"op": "status"})

	require.Empty(t, out.records)
}

func TestDispatchEmptyPatternMatchesEverything(t *testing.T) {
	out := &captureOutput{}
	sink := eventlog.NewSink(log.Default(), out)
	d := New("chain0", sink, nil)

	calls := 0
	d.AddCommand(broker.Command{}, func(cmd broker.Command) map[string]interface{} {
		calls++
		return map[string]interface{}{"seen": true}
	})

	d.Dispatch(broker.Command{"op": "anything"})
	d.Dispatch(broker.Command{"op": "something-else"})

	require.Equal(t, 2, calls)
}

func TestDispatchMultipleHandlersRunInOrder(t *testing.T) {
	out := &captureOutput{}
	sink := eventlog.NewSink(log.Default(), out)
	d := New("chain0", sink, nil)

	var order []string
	d.AddCommand(broker.Command{"op": "ping"}, func(cmd broker.Command) map[string]interface{} {
		order = append(order, "first")
		return map[string]interface{}{"status": "OK"}
	})
	d.AddCommand(broker.Command{"op": "ping"}, func(cmd broker.Command) map[string]interface{} {
		order = append(order, "second")
		return map[string]interface{}{"status": "OK"}
	})

	d.Dispatch(broker.Command{"op": "ping"})

	require.Equal(t, []string{"first", "second"}, order)
}
