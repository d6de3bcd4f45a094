package reader

import (
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sramlab/chainstation/pkg/eventlog"
	"github.com/sramlab/chainstation/pkg/node"
	"github.com/sramlab/chainstation/pkg/packet"
	"github.com/sramlab/chainstation/pkg/store"
)

const testBlockSize = 16

// chainTransport adapts a node.Chain to the Reader's Transport interface,
// letting these tests exercise the full station->chain->station path
// in-process instead of against real hardware.
type chainTransport struct {
	chain     *node.Chain
	blockSize int
	open      bool
}

func newChainTransport(chain *node.Chain, blockSize int) *chainTransport {
	return &chainTransport{chain: chain, blockSize: blockSize, open: true}
}

func (c *chainTransport) Send(p *packet.Packet) error {
	if !c.open {
		return errClosed
	}
	p.Finalize()
	wire, err := packet.Encode(p)
	if err != nil {
		return err
	}
	c.chain.SendToHead(wire)
	return nil
}

func (c *chainTransport) Receive(deadline time.Duration) (*packet.Packet, error) {
	if !c.open {
		return nil, errClosed
	}
	select {
	case wire := <-c.chain.RecvFromHead():
		return packet.Decode(wire, c.blockSize)
	case <-time.After(deadline):
		return nil, errTimedOut
	}
}

func (c *chainTransport) PowerOn() error  { c.open = true; return nil }
func (c *chainTransport) PowerOff() error { c.open = false; return nil }
func (c *chainTransport) PowerCycle() error {
	c.open = false
	c.open = true
	return nil
}
func (c *chainTransport) IsOpen() bool { return c.open }

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const (
	errClosed   = sentinelErr("chainTransport: closed")
	errTimedOut = sentinelErr("chainTransport: timed out")
)

func uid25(s string) string {
	var b [packet.UIDSize]byte
	copy(b[:], s)
	return string(b[:])
}

func newTestChain(t *testing.T, uids ...string) (*node.Chain, context.Context, context.CancelFunc) {
	t.Helper()
	nodes := make([]*node.Node, len(uids))
	for i, uid := range uids {
		n := node.New(uid25(uid), testBlockSize*4, testBlockSize, nil)
		n.SeedSRAM([]byte(strings.Repeat(uid[:1], testBlockSize*4)))
		nodes[i] = n
	}
	chain := node.NewChain(nodes...)
	ctx, cancel := context.WithCancel(context.Background())
	chain.Run(ctx)
	return chain, ctx, cancel
}

func newTestReader(t *testing.T, name string, chain *node.Chain, board Board, samples store.SampleStore, sensors store.SensorStore) *Reader {
	t.Helper()
	transport := newChainTransport(chain, board.BlockSize())
	logger := log.New(testWriter{t}, "", 0)
	sink := eventlog.NewSink(logger)
	return New(name, transport, board, samples, sensors, sink, logger)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

type smallBoard struct{}

func (smallBoard) Kind() string               { return "test" }
func (smallBoard) BlockSize() int             { return testBlockSize }
func (smallBoard) Supports(c Capability) bool { return allCapabilities[c] }

func TestReaderPingPopulatesTable(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a", "dev-b")
	defer cancel()
	r := newTestReader(t, "chain0", chain, smallBoard{}, nil, nil)

	status := r.Ping()
	require.NotNil(t, status)
	require.Equal(t, "ON", status["state"])
	require.Equal(t, 2, r.Table.Len())
}

func TestReaderPingRequiresPoweredLink(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a")
	defer cancel()
	r := newTestReader(t, "chain0", chain, smallBoard{}, nil, nil)
	r.Transport.PowerOff()

	require.Nil(t, r.Ping())
}

func TestReaderReadAndWriteRoundTrip(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a")
	defer cancel()
	samples := store.NewMemoryStore()
	r := newTestReader(t, "chain0", chain, smallBoard{}, samples, nil)

	require.NotNil(t, r.Ping())
	devices := r.Table.List()
	require.Len(t, devices, 1)
	uid := devices[0].UID

	readResult := r.Read()
	require.Equal(t, 4, readResult["blocks_saved"])
	require.Len(t, samples.Samples(), 4)

	writeResult := r.Write(uid, 0, []byte("hello"))
	require.Equal(t, "OK", writeResult["status"])
}

func TestReaderWriteUnknownUIDFails(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a")
	defer cancel()
	r := newTestReader(t, "chain0", chain, smallBoard{}, nil, nil)
	require.NotNil(t, r.Ping())

	require.Nil(t, r.Write("not-a-real-uid", 0, []byte("x")))
}

func TestReaderWriteInvertSkipsWithoutReferenceDump(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a", "dev-b")
	defer cancel()
	samples := store.NewMemoryStore()
	r := newTestReader(t, "chain0", chain, smallBoard{}, samples, nil)
	require.NotNil(t, r.Ping())

	result := r.WriteInvert()
	require.Equal(t, 0, result["blocks_written"])
}

func TestReaderWriteInvertWritesInvertedReferenceDump(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a", "dev-b")
	defer cancel()
	samples := store.NewMemoryStore()
	r := newTestReader(t, "chain0", chain, smallBoard{}, samples, nil)
	require.NotNil(t, r.Ping())
	require.NotNil(t, r.Read())

	result := r.WriteInvert()
	require.Greater(t, result["blocks_written"].(int), 0)
}

func TestReaderSensorsDefaultsToZero(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a")
	defer cancel()
	sensors := store.NewMemoryStore()
	r := newTestReader(t, "chain0", chain, smallBoard{}, nil, sensors)
	require.NotNil(t, r.Ping())

	result := r.Sensors()
	require.Equal(t, 1, result["readings"])
	require.Len(t, sensors.SensorReadings(), 1)
	reading := sensors.SensorReadings()[0]
	require.Equal(t, [5]uint16{}, [5]uint16{reading.Temp110Cal, reading.Temp30Cal, reading.TempRaw, reading.VddCal, reading.VoltageRaw})
}

func TestReaderLoadExecRetrieveEchoesSource(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a")
	defer cancel()
	r := newTestReader(t, "chain0", chain, smallBoard{}, nil, nil)
	require.NotNil(t, r.Ping())
	uid := r.Table.List()[0].UID

	loadResult := r.Load(uid, []byte("hello world"))
	require.Equal(t, "OK", loadResult["status"])

	execResult := r.Exec(uid, true)
	require.Equal(t, uint32(0), execResult["code"])

	retrieveResult := r.Retrieve(uid)
	require.Equal(t, "hello world", retrieveResult["text"])
}

func TestReaderCommandsRequireManagedDevices(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a")
	defer cancel()
	r := newTestReader(t, "chain0", chain, smallBoard{}, nil, nil)

	require.Nil(t, r.Read())
	require.Nil(t, r.Sensors())
	require.Nil(t, r.Write("dev-a", 0, nil))
}

type smallBoardNoInvert struct{ smallBoard }

func (smallBoardNoInvert) Supports(c Capability) bool {
	if c == CapWriteInvert {
		return false
	}
	return allCapabilities[c]
}

func TestBoardWithoutWriteInvertCapabilityDeclines(t *testing.T) {
	chain, _, cancel := newTestChain(t, "dev-a")
	defer cancel()
	r := newTestReader(t, "chain0", chain, smallBoardNoInvert{}, store.NewMemoryStore(), nil)
	require.NotNil(t, r.Ping())

	require.Nil(t, r.WriteInvert())
}

func TestDiscoveryBoardDeclinesWriteInvertCapability(t *testing.T) {
	require.False(t, Discovery{}.Supports(CapWriteInvert))
	require.True(t, Nucleo{}.Supports(CapWriteInvert))
}
