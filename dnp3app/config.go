// Package dnp3app implements the DNP3 application layer state machine:
// master and outstation roles, per-association sequence counters, and
// confirm correlation (spec.md §4.3 "DNP3 application layer"). Grounded
// on the teacher's cs104/apci.go send/ack-number bookkeeping (iAPCI's
// sendSN/recvSN pair), generalized from IEC-104's byte-wide transport
// sequence to DNP3's 4-bit application sequence carried in the fragment
// control byte.
package dnp3app

import (
	"errors"
	"time"
)

// Config knob ranges (spec.md §6).
const (
	RequestTimeoutMin = 1 * time.Millisecond
	RequestTimeoutMax = 10 * time.Minute
)

// Config controls application-layer request/response timing.
type Config struct {
	// RequestTimeout ("application.timeout_ms", default 5000ms) bounds how
	// long a master request waits for a matching response before failing
	// with ApplicationTimeout.
	RequestTimeout time.Duration

	// MaxFragmentSize ("application.max_fragment_size", default 2048)
	// bounds the assembled fragment size this layer will build or accept.
	MaxFragmentSize int
}

func DefaultConfig() Config {
	return Config{
		RequestTimeout:  5000 * time.Millisecond,
		MaxFragmentSize: 2048,
	}
}

// Valid fills unset fields with their default and range-checks the rest.
func (c *Config) Valid() error {
	if c == nil {
		return errors.New("invalid pointer")
	}
	d := DefaultConfig()
	if c.RequestTimeout == 0 {
		c.RequestTimeout = d.RequestTimeout
	} else if c.RequestTimeout < RequestTimeoutMin || c.RequestTimeout > RequestTimeoutMax {
		return errors.New("RequestTimeout out of range")
	}
	if c.MaxFragmentSize == 0 {
		c.MaxFragmentSize = d.MaxFragmentSize
	} else if c.MaxFragmentSize < 0 || c.MaxFragmentSize > d.MaxFragmentSize {
		return errors.New("MaxFragmentSize out of range")
	}
	return nil
}
