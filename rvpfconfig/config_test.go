package rvpfconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rvpf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesFileValuesAndDefaults(t *testing.T) {
	path := writeConfigFile(t, `
link:
  timeout_ms: 1500
  retries: 5
application:
  timeout_ms: 4000
association:
  local_addr: 1
  remote_addr: 10
cip:
  tcp_port: 44818
  slot: 2
serial:
  port_name: /dev/ttyUSB0
  speed: 9600
  data_bits: 8
  parity: even
  stop_bits: "2"
`)

	settings, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, int64(1500*1e6), settings.Link.LinkTimeout.Nanoseconds())
	require.Equal(t, 5, settings.Link.Retries)
	require.Equal(t, int64(4000*1e6), settings.Application.RequestTimeout.Nanoseconds())
	require.Equal(t, uint16(1), settings.Association.LocalAddr)
	require.Equal(t, uint16(10), settings.Association.RemoteAddr)
	require.Equal(t, 2, settings.CIP.Slot)
	require.Equal(t, "/dev/ttyUSB0", settings.Serial.PortName)
	require.Equal(t, serial.EvenParity, settings.Serial.Parity)
	require.Equal(t, serial.TwoStopBits, settings.Serial.StopBits)

	// Unset application.max_fragment_size falls back to dnp3app's own default.
	require.Equal(t, 2048, settings.Application.MaxFragmentSize)
	// Unset cip.timeout_ms falls back to cip's own default.
	require.Equal(t, int64(5000*1e6), settings.CIP.Timeout.Nanoseconds())
}

func TestLoadWithoutConfigPathUsesDefaults(t *testing.T) {
	settings, err := Load("")
	require.NoError(t, err)
	require.Equal(t, int64(2000*1e6), settings.Link.LinkTimeout.Nanoseconds())
	require.Equal(t, 3, settings.Link.Retries)
	require.Equal(t, 44818, settings.CIP.TCPPort)
}

func TestLoadRejectsOutOfRangeRetries(t *testing.T) {
	path := writeConfigFile(t, `
link:
  retries: 1000
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestParseParityDefaultsToNone(t *testing.T) {
	require.Equal(t, serial.NoParity, parseParity(""))
	require.Equal(t, serial.NoParity, parseParity("bogus"))
	require.Equal(t, serial.OddParity, parseParity("Odd"))
}

func TestParseStopBitsDefaultsToOne(t *testing.T) {
	require.Equal(t, serial.OneStopBit, parseStopBits(""))
	require.Equal(t, serial.OnePointFiveStopBits, parseStopBits("1.5"))
}
