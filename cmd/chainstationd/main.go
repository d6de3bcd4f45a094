// Command chainstationd runs the chain station dispatcher loop, or
// publishes a single command record to a running one, per spec.md §6's
// CLI surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sramlab/chainstation/internal/buildinfo"
	"github.com/sramlab/chainstation/pkg/broker"
	"github.com/sramlab/chainstation/pkg/config"
	"github.com/sramlab/chainstation/pkg/dispatcher"
	"github.com/sramlab/chainstation/pkg/eventlog"
	"github.com/sramlab/chainstation/pkg/reader"
	"github.com/sramlab/chainstation/pkg/serialport"
	"github.com/sramlab/chainstation/pkg/store"
)

// Exit codes, spec.md §6.
const (
	exitClean      = 0
	exitConfigErr  = 1
	exitUnrecovIO  = 2
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	if len(os.Args) < 2 {
		usage()
		os.Exit(exitConfigErr)
	}

	switch os.Args[1] {
	case "start":
		os.Exit(runStart(os.Args[2:]))
	case "send":
		os.Exit(runSend(os.Args[2:]))
	default:
		usage()
		os.Exit(exitConfigErr)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "%s\nusage:\n  chainstationd start [flags]\n  chainstationd send <command-name> [key=value...]\n", buildinfo.String())
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	var cfg *config.Config
	if *flags.ConfigFile != "" {
		loaded, err := config.LoadYAML(*flags.ConfigFile)
		if err != nil {
			log.Printf("configuration error: %v", err)
			return exitConfigErr
		}
		cfg = loaded
	} else {
		cfg = flags.ToConfig()
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("configuration error: %v", err)
		return exitConfigErr
	}

	log.Printf("%s starting, %d chain(s) configured", buildinfo.String(), len(cfg.Chains))

	brk, err := broker.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		log.Printf("broker connection failed: %v", err)
		return exitUnrecovIO
	}
	defer brk.Close()

	readers := make([]*reader.Reader, 0, len(cfg.Chains))
	dispatchers := make([]*dispatcher.Dispatcher, 0, len(cfg.Chains))
	var stopFns []func()

	for _, chainCfg := range cfg.Chains {
		r, disp, stop, err := startChain(chainCfg, brk)
		if err != nil {
			log.Printf("chain %q: unrecoverable I/O: %v", chainCfg.Name, err)
			for _, s := range stopFns {
				s()
			}
			return exitUnrecovIO
		}
		readers = append(readers, r)
		dispatchers = append(dispatchers, disp)
		stopFns = append(stopFns, stop)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("shutting down...")
	for _, s := range stopFns {
		s()
	}
	return exitClean
}

// startChain wires one chain's serial port, membership table, event sink,
// SQLite store, and Dispatcher, and starts its command-watch goroutine.
func startChain(cc config.ChainConfig, brk *broker.Client) (*reader.Reader, *dispatcher.Dispatcher, func(), error) {
	var board reader.Board
	switch cc.BoardKind {
	case "discovery":
		board = reader.Discovery{}
	default:
		board = reader.Nucleo{}
	}

	port, err := serialport.Open(cc.SerialDevice, cc.BaudRate, board.BlockSize())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open serial port: %w", err)
	}

	sqlitePath := cc.SQLitePath
	if sqlitePath == "" {
		sqlitePath = cc.Name + ".db"
	}
	db, err := store.Open(sqlitePath)
	if err != nil {
		port.Close()
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	chainLogger := log.New(os.Stderr, "["+cc.Name+"] ", log.Ldate|log.Ltime|log.Lmicroseconds)
	eventTopic := cc.EventTopic
	if eventTopic == "" {
		eventTopic = "chain:events"
	}
	sink := eventlog.NewSink(chainLogger,
		eventlog.NewTerminalOutput(chainLogger),
		eventlog.NewBrokerOutput(brk, eventTopic),
	)

	r := reader.New(cc.Name, port, board, db, db, sink, chainLogger)
	disp := dispatcher.New(cc.Name, sink, chainLogger)
	registerHandlers(disp, r)

	ctx, cancel := context.WithCancel(context.Background())
	queue := cc.CommandQueue
	if queue == "" {
		queue = "chain:commands"
	}
	cmds, stopWatch := brk.WatchCommands(ctx, queue, chainLogger)
	go disp.Run(cmds)

	stop := func() {
		stopWatch()
		cancel()
		port.Close()
		db.Close()
	}
	return r, disp, stop, nil
}

// registerHandlers wires every broker command name from spec.md §6 to its
// Reader method.
func registerHandlers(disp *dispatcher.Dispatcher, r *reader.Reader) {
	disp.AddCommand(broker.Command{"command": "power_on"}, func(cmd broker.Command) map[string]interface{} {
		return r.PowerOn()
	})
	disp.AddCommand(broker.Command{"command": "power_off"}, func(cmd broker.Command) map[string]interface{} {
		return r.PowerOff()
	})
	disp.AddCommand(broker.Command{"command": "status"}, func(cmd broker.Command) map[string]interface{} {
		return r.Status()
	})
	disp.AddCommand(broker.Command{"command": "ping"}, func(cmd broker.Command) map[string]interface{} {
		return r.Ping()
	})
	disp.AddCommand(broker.Command{"command": "read"}, func(cmd broker.Command) map[string]interface{} {
		return r.Read()
	})
	disp.AddCommand(broker.Command{"command": "write"}, func(cmd broker.Command) map[string]interface{} {
		device, _ := cmd.String("device")
		offset, _ := cmd.Int("offset")
		data, _ := cmd.Bytes("data")
		return r.Write(device, offset, data)
	})
	disp.AddCommand(broker.Command{"command": "write_invert"}, func(cmd broker.Command) map[string]interface{} {
		return r.WriteInvert()
	})
	disp.AddCommand(broker.Command{"command": "sensors"}, func(cmd broker.Command) map[string]interface{} {
		return r.Sensors()
	})
	disp.AddCommand(broker.Command{"command": "load"}, func(cmd broker.Command) map[string]interface{} {
		device, _ := cmd.String("device")
		source, _ := cmd.String("source")
		return r.Load(device, []byte(source))
	})
	disp.AddCommand(broker.Command{"command": "exec"}, func(cmd broker.Command) map[string]interface{} {
		device, _ := cmd.String("device")
		reset, _ := cmd.Bool("reset")
		return r.Exec(device, reset)
	})
	disp.AddCommand(broker.Command{"command": "retr"}, func(cmd broker.Command) map[string]interface{} {
		device, _ := cmd.String("device")
		return r.Retrieve(device)
	})
}

// runSend publishes one ad hoc command record, parsed from "key=value"
// arguments, onto the broker's command queue.
func runSend(args []string) int {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	redisAddr := fs.String("redis-addr", "localhost:6379", "broker (Redis) address")
	redisPass := fs.String("redis-pass", "", "broker password")
	redisDB := fs.Int("redis-db", 0, "broker database number")
	queue := fs.String("command-queue", "chain:commands", "broker list key to publish onto")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "usage: chainstationd send <command-name> [key=value...]")
		return exitConfigErr
	}
	name := rest[0]

	cmd := broker.Command{"command": name}
	for _, kv := range rest[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "malformed argument %q, want key=value\n", kv)
			return exitConfigErr
		}
		cmd[k] = parseValue(v)
	}

	brk, err := broker.New(*redisAddr, *redisPass, *redisDB)
	if err != nil {
		log.Printf("broker connection failed: %v", err)
		return exitUnrecovIO
	}
	defer brk.Close()

	if err := brk.PublishCommand(*queue, cmd); err != nil {
		log.Printf("publish command failed: %v", err)
		return exitUnrecovIO
	}
	return exitClean
}

// parseValue interprets a send argument's value as a bool, integer, or
// literal string, in that order of preference.
func parseValue(v string) interface{} {
	if v == "true" || v == "false" {
		return v == "true"
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return v
}
