// Package broker adapts the message broker spec.md §1 treats as an
// external collaborator: the core consumes a subscription yielding typed
// command records and produces structured event records. This package
// gives that contract one concrete Redis-backed implementation, adapted
// from the teacher repo's pkg/redis/client.go (same go-redis v9 client,
// same Pub/Sub + BRPOP shapes), re-pointed at command/event records
// instead of BLE characteristic state.
package broker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sramlab/chainstation/pkg/eventlog"
)

// Command is a broker command record (spec.md §6): at minimum a "command"
// field, plus whatever per-command fields that command defines.
type Command map[string]interface{}

func (c Command) String(key string) (string, bool) {
	v, ok := c[key].(string)
	return v, ok
}

func (c Command) Int(key string) (int, bool) {
	switch v := c[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case uint64:
		return int(v), true
	default:
		return 0, false
	}
}

func (c Command) Bool(key string) (bool, bool) {
	v, ok := c[key].(bool)
	return v, ok
}

// Bytes extracts a "data" field encoded as a list of integers 0..255, per
// spec.md §6's write command shape.
func (c Command) Bytes(key string) ([]byte, bool) {
	raw, ok := c[key].([]interface{})
	if !ok {
		if b, ok := c[key].([]byte); ok {
			return b, true
		}
		return nil, false
	}
	out := make([]byte, len(raw))
	for i, v := range raw {
		n, ok := toInt(v)
		if !ok {
			return nil, false
		}
		out[i] = byte(n)
	}
	return out, true
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Event is the broker event record (spec.md §6): {status, msg, level,
// source_name, timestamp}.
type Event struct {
	Status     string      `cbor:"status"`
	Msg        interface{} `cbor:"msg"`
	Level      string      `cbor:"level"`
	SourceName string      `cbor:"source_name"`
	Timestamp  time.Time   `cbor:"timestamp"`
}

// Client is a Redis-backed broker adapter.
type Client struct {
	rdb *redis.Client
	ctx context.Context
}

// New connects to addr and verifies the connection with a PING, exactly
// as the teacher's pkg/redis.New does.
func New(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("broker: connect to %s: %w", addr, err)
	}
	return &Client{rdb: rdb, ctx: ctx}, nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// PublishCommand enqueues cmd on a Redis list, CBOR-encoded. The CLI's
// "send" subcommand uses this to hand a command to a running Dispatcher.
func (c *Client) PublishCommand(queueKey string, cmd Command) error {
	data, err := cbor.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("broker: marshal command: %w", err)
	}
	return c.rdb.LPush(c.ctx, queueKey, data).Err()
}

// WatchCommands blocks on BRPOP against queueKey (mirroring the teacher's
// WatchRedisCommands) and streams decoded Commands until ctx is
// cancelled or the returned stop func is called.
func (c *Client) WatchCommands(ctx context.Context, queueKey string, logger *log.Logger) (<-chan Command, func()) {
	out := make(chan Command)
	stop := make(chan struct{})

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			default:
			}

			result, err := c.rdb.BRPop(c.ctx, time.Second, queueKey).Result()
			if err != nil {
				if err != redis.Nil && logger != nil {
					logger.Printf("broker: BRPOP %s: %v", queueKey, err)
				}
				continue
			}
			if len(result) != 2 {
				continue
			}

			var cmd Command
			if err := cbor.Unmarshal([]byte(result[1]), &cmd); err != nil {
				if logger != nil {
					logger.Printf("broker: decode command: %v", err)
				}
				continue
			}

			select {
			case out <- cmd:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { close(stop) }
}

// PublishEvent implements eventlog.Publisher: it republishes rec onto
// topic as a broker Event record, CBOR-encoded.
func (c *Client) PublishEvent(topic string, rec eventlog.Record) error {
	status := "OK"
	if rec.Level == eventlog.Error {
		status = "ERROR"
	}
	ev := Event{
		Status:     status,
		Msg:        map[string]interface{}{"message": rec.Message, "context": rec.Context},
		Level:      rec.Level.String(),
		SourceName: rec.SourceName,
		Timestamp:  rec.EmittedAt,
	}
	data, err := cbor.Marshal(ev)
	if err != nil {
		return fmt.Errorf("broker: marshal event: %w", err)
	}
	return c.rdb.Publish(c.ctx, topic, data).Err()
}
