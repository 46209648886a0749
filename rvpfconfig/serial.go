package rvpfconfig

import (
	"strings"

	"go.bug.st/serial"
)

// parseParity maps the §6 "serial.parity" string knob onto go.bug.st/
// serial's Parity enum, defaulting to NoParity for an empty or
// unrecognized value (RS-232/RS-485 links to DNP3 outstations most
// commonly run 8N1).
func parseParity(s string) serial.Parity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	case "mark":
		return serial.MarkParity
	case "space":
		return serial.SpaceParity
	default:
		return serial.NoParity
	}
}

// parseStopBits maps the §6 "serial.stop_bits" string knob onto
// go.bug.st/serial's StopBits enum, defaulting to one stop bit.
func parseStopBits(s string) serial.StopBits {
	switch strings.TrimSpace(s) {
	case "1.5":
		return serial.OnePointFiveStopBits
	case "2":
		return serial.TwoStopBits
	default:
		return serial.OneStopBit
	}
}
