package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsEmptyChains(t *testing.T) {
	c := &Config{}
	require.ErrorIs(t, c.Validate(), errNoChains)
}

func TestValidateRejectsUnknownBoardKind(t *testing.T) {
	c := &Config{Chains: []ChainConfig{{Name: "a", SerialDevice: "/dev/ttyACM0", BoardKind: "weird"}}}
	require.Error(t, c.Validate())
}

func TestValidateAcceptsWellFormedChain(t *testing.T) {
	c := &Config{Chains: []ChainConfig{{Name: "a", SerialDevice: "/dev/ttyACM0", BoardKind: "nucleo"}}}
	require.NoError(t, c.Validate())
}

func TestLoadYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chains.yaml")
	contents := `
redis_addr: "localhost:6379"
chains:
  - name: bench-a
    serial_device: /dev/ttyACM0
    baud_rate: 115200
    board_kind: nucleo
  - name: bench-b
    serial_device: /dev/ttyACM1
    baud_rate: 115200
    board_kind: discovery
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := LoadYAML(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Chains, 2)
	require.Equal(t, "discovery", cfg.Chains[1].BoardKind)
}
