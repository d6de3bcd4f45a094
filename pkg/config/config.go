// Package config loads the chain station's configuration, either from
// command-line flags (the single-chain deployment, matching the teacher's
// flag-based main.go) or from a YAML file describing several chains at
// once.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ChainConfig describes one chain's serial link, board variant, and
// persistence/event destinations.
type ChainConfig struct {
	Name          string `yaml:"name"`
	SerialDevice  string `yaml:"serial_device"`
	BaudRate      int    `yaml:"baud_rate"`
	BoardKind     string `yaml:"board_kind"` // "nucleo" or "discovery"
	SQLitePath    string `yaml:"sqlite_path"`
	CommandQueue  string `yaml:"command_queue"`
	EventTopic    string `yaml:"event_topic"`
	LogFilePrefix string `yaml:"log_file_prefix"`
}

// Config is the fully resolved station configuration: Redis connection
// plus one or more chains.
type Config struct {
	RedisAddr string        `yaml:"redis_addr"`
	RedisPass string        `yaml:"redis_pass"`
	RedisDB   int           `yaml:"redis_db"`
	Chains    []ChainConfig `yaml:"chains"`
}

// errNoChains is returned by Validate when a Config describes zero chains.
var errNoChains = fmt.Errorf("config: no chains configured")

// Validate checks the invariants main.go relies on: at least one chain,
// every chain naming a non-empty serial device and a recognized board
// kind.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return errNoChains
	}
	for _, ch := range c.Chains {
		if ch.SerialDevice == "" {
			return fmt.Errorf("config: chain %q: serial_device is required", ch.Name)
		}
		switch ch.BoardKind {
		case "nucleo", "discovery":
		default:
			return fmt.Errorf("config: chain %q: unrecognized board_kind %q", ch.Name, ch.BoardKind)
		}
	}
	return nil
}

// LoadYAML reads a multi-chain Config from path.
func LoadYAML(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// FlagSet describes the single-chain flag surface the teacher's main.go
// uses (flag.String/Int against the default FlagSet).
type FlagSet struct {
	SerialDevice *string
	BaudRate     *int
	BoardKind    *string
	RedisAddr    *string
	RedisPass    *string
	RedisDB      *int
	SQLitePath   *string
	CommandQueue *string
	EventTopic   *string
	ConfigFile   *string
}

// RegisterFlags registers the single-chain flag surface on fs and returns
// handles to read back after fs.Parse.
func RegisterFlags(fs *flag.FlagSet) *FlagSet {
	return &FlagSet{
		SerialDevice: fs.String("serial", "/dev/ttyACM0", "serial device path to the chain head"),
		BaudRate:     fs.Int("baud", 115200, "serial baud rate"),
		BoardKind:    fs.String("board", "nucleo", "board variant: nucleo or discovery"),
		RedisAddr:    fs.String("redis-addr", "localhost:6379", "broker (Redis) address"),
		RedisPass:    fs.String("redis-pass", "", "broker password"),
		RedisDB:      fs.Int("redis-db", 0, "broker database number"),
		SQLitePath:   fs.String("sqlite-path", "chainstation.db", "path to the SQLite sample/sensor store"),
		CommandQueue: fs.String("command-queue", "chain:commands", "broker list key commands are pushed to"),
		EventTopic:   fs.String("event-topic", "chain:events", "broker pub/sub topic events are published to"),
		ConfigFile:   fs.String("config", "", "path to a multi-chain YAML config; overrides the single-chain flags above"),
	}
}

// ToConfig converts a parsed single-chain FlagSet into a one-chain Config.
func (f *FlagSet) ToConfig() *Config {
	return &Config{
		RedisAddr: *f.RedisAddr,
		RedisPass: *f.RedisPass,
		RedisDB:   *f.RedisDB,
		Chains: []ChainConfig{{
			Name:         "default",
			SerialDevice: *f.SerialDevice,
			BaudRate:     *f.BaudRate,
			BoardKind:    *f.BoardKind,
			SQLitePath:   *f.SQLitePath,
			CommandQueue: *f.CommandQueue,
			EventTopic:   *f.EventTopic,
		}},
	}
}
