// Package rvpfconfig loads the §6 key-value configuration knobs (link,
// application, association, cip, and serial settings) from a file and the
// environment into the validated Config structs each engine package
// already defines via its own Valid method. Grounded on dittofs's
// viper-based Load/setupViper/readConfigFile shape (precedence:
// environment > file > defaults), simplified here since these knobs are
// flat integers/strings rather than dittofs's nested structured config.
package rvpfconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rob-gra/rvpf-protocol-core/cip"
	"github.com/rob-gra/rvpf-protocol-core/dnp3app"
	"github.com/rob-gra/rvpf-protocol-core/dnp3link"
	"github.com/rob-gra/rvpf-protocol-core/transport"
)

// EnvPrefix is the environment variable prefix ("RVPF_LINK_TIMEOUT_MS",
// etc.), mirroring the teacher's DITTOFS_ prefix convention.
const EnvPrefix = "RVPF"

// AssociationSettings carries the §6 "association.*" addressing knobs: the
// local and remote DNP3 link addresses this process uses when it is not
// relying on auto-create association policy to pick them up per inbound
// frame.
type AssociationSettings struct {
	LocalAddr  uint16
	RemoteAddr uint16
}

// Settings is every §6 knob, grouped by the engine package that consumes
// it, with each group already validated via its own Valid method.
type Settings struct {
	Link        dnp3link.Config
	Application dnp3app.Config
	Association AssociationSettings
	CIP         cip.Config
	Serial      transport.SerialConfig
}

// Load reads configPath (if non-empty) plus the environment into a
// validated Settings. An empty configPath means "environment and defaults
// only" -- no error is raised for a missing file in that case.
func Load(configPath string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("rvpfconfig: reading %s: %w", configPath, err)
			}
		}
	}

	settings := &Settings{
		Link: dnp3link.Config{
			LinkTimeout:      msDuration(v, "link.timeout_ms"),
			KeepaliveTimeout: msDuration(v, "link.keepalive_ms"),
			Retries:          v.GetInt("link.retries"),
		},
		Application: dnp3app.Config{
			RequestTimeout:  msDuration(v, "application.timeout_ms"),
			MaxFragmentSize: v.GetInt("application.max_fragment_size"),
		},
		Association: AssociationSettings{
			LocalAddr:  uint16(v.GetUint("association.local_addr")),
			RemoteAddr: uint16(v.GetUint("association.remote_addr")),
		},
		CIP: cip.Config{
			TCPPort: v.GetInt("cip.tcp_port"),
			Slot:    v.GetInt("cip.slot"),
			Timeout: msDuration(v, "cip.timeout_ms"),
		},
		Serial: transport.SerialConfig{
			PortName: v.GetString("serial.port_name"),
			Speed:    v.GetInt("serial.speed"),
			DataBits: v.GetInt("serial.data_bits"),
			Parity:   parseParity(v.GetString("serial.parity")),
			StopBits: parseStopBits(v.GetString("serial.stop_bits")),
		},
	}

	if err := settings.Link.Valid(); err != nil {
		return nil, fmt.Errorf("rvpfconfig: link settings: %w", err)
	}
	if err := settings.Application.Valid(); err != nil {
		return nil, fmt.Errorf("rvpfconfig: application settings: %w", err)
	}
	if err := settings.CIP.Valid(); err != nil {
		return nil, fmt.Errorf("rvpfconfig: cip settings: %w", err)
	}
	return settings, nil
}

// msDuration reads an integer-millisecond key into a time.Duration, the
// convention the §6 "*_ms" keys use on the wire.
func msDuration(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetInt64(key)) * time.Millisecond
}
