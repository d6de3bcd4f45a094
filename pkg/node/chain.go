package node

import "context"

// Chain wires a sequence of Nodes back-to-back the way daisy-chained UART
// links would: each node's downstream port feeds the next node's upstream
// buffer, and each node's upstream-bound traffic flows back through the
// previous node's downstream buffer. It exists so tests (and bench tools
// without real hardware) can exercise the full bucket-brigade forwarding
// behavior of spec.md §4.B in-process.
type Chain struct {
	Nodes []*Node

	toHead   chan []byte // station -> node[0]
	fromHead chan []byte // node[0] -> station
}

const chainChannelBuffer = 8

// NewChain wires nodes in chain order (nodes[0] is the head, closest to
// the station) and returns a Chain ready to Run.
func NewChain(nodes ...*Node) *Chain {
	c := &Chain{
		Nodes:    nodes,
		toHead:   make(chan []byte, chainChannelBuffer),
		fromHead: make(chan []byte, chainChannelBuffer),
	}

	nodes[0].RecvFromAbove = c.toHead
	nodes[0].SendToAbove = c.fromHead

	for i := 0; i < len(nodes)-1; i++ {
		toNext := make(chan []byte, chainChannelBuffer)
		backFromNext := make(chan []byte, chainChannelBuffer)

		nodes[i].SendToBelow = toNext
		nodes[i+1].RecvFromAbove = toNext

		nodes[i+1].SendToAbove = backFromNext
		nodes[i].RecvFromBelow = backFromNext
	}

	// The tail node has nowhere to forward downstream traffic; give it a
	// drained sink so an unmatched command (addressed past the end of the
	// chain) doesn't block the node forever instead of simply going
	// unanswered, as it would on an open UART line with nothing attached.
	last := nodes[len(nodes)-1]
	sink := make(chan []byte, chainChannelBuffer)
	last.SendToBelow = sink
	go func() {
		for range sink {
		}
	}()

	return c
}

// Run starts every node's main loop in its own goroutine.
func (c *Chain) Run(ctx context.Context) {
	for _, n := range c.Nodes {
		go n.Run(ctx)
	}
}

// SendToHead delivers a raw wire packet to the head node's upstream buffer,
// as if the station had just transmitted it.
func (c *Chain) SendToHead(wire []byte) {
	c.toHead <- wire
}

// RecvFromHead returns the channel the station-side transport would read
// responses from.
func (c *Chain) RecvFromHead() <-chan []byte {
	return c.fromHead
}
