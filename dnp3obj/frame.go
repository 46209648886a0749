package dnp3obj

import (
	"fmt"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// Data-link frame constants (spec.md §3, §6).
const (
	startByte0 = 0x05
	startByte1 = 0x64

	headerSize  = 8 // start(2) + length(1) + control(1) + dest(2) + src(2)
	headerCRC   = 2
	blockSize   = 16
	blockCRC    = 2
	maxPayload  = 250
	MinFrameLen = headerSize + headerCRC
	MaxFrameLen = headerSize + headerCRC + maxPayload + ((maxPayload+blockSize-1)/blockSize)*blockCRC
)

// Control byte bits (primary-to-secondary direction), shared by master and
// outstation: DIR, PRM, FCB, FCV live in the top nibble; FUNCTION in the
// low nibble.
const (
	CtrlDir = 1 << 7
	CtrlPrm = 1 << 6
	CtrlFcb = 1 << 5
	CtrlFcv = 1 << 4
)

// Link-layer function codes (spec.md §4.3).
type LinkFunction byte

const (
	FuncResetLinkStates     LinkFunction = 0x00
	FuncTestLinkStates      LinkFunction = 0x02
	FuncUserDataConfirmed   LinkFunction = 0x03
	FuncUserDataUnconfirmed LinkFunction = 0x04
	FuncRequestLinkStatus   LinkFunction = 0x09
	FuncAck                 LinkFunction = 0x00 // secondary ACK shares code 0 with reset
	FuncNack                LinkFunction = 0x01
	FuncLinkStatus          LinkFunction = 0x0B
)

// Frame is a decoded DNP3 data-link PDU.
type Frame struct {
	Control     byte
	Destination uint16
	Source      uint16
	Payload     []byte
}

// Function extracts the low-nibble function code from Control.
func (f Frame) Function() LinkFunction { return LinkFunction(f.Control & 0x0F) }

// IsFromMaster reports whether PRM is set (primary station originated).
func (f Frame) IsFromMaster() bool { return f.Control&CtrlPrm != 0 }

// Encode serializes a Frame into wire bytes: header + header CRC + 16-byte
// payload blocks each followed by its own CRC16 (spec.md §4.1).
func Encode(f Frame) ([]byte, error) {
	if len(f.Payload) > maxPayload {
		return nil, protoerr.New(protoerr.BadValue, fmt.Sprintf("payload %d exceeds max %d", len(f.Payload), maxPayload))
	}

	header := make([]byte, 0, headerSize)
	header = append(header, startByte0, startByte1)
	header = append(header, byte(headerSize-3+len(f.Payload))) // length excludes start(2)+length(1) itself
	header = append(header, f.Control)
	header = append(header, byte(f.Destination), byte(f.Destination>>8))
	header = append(header, byte(f.Source), byte(f.Source>>8))

	out := make([]byte, 0, MaxFrameLen)
	out = append(out, header...)
	out = AppendCRC16(out, header)

	for off := 0; off < len(f.Payload); off += blockSize {
		end := off + blockSize
		if end > len(f.Payload) {
			end = len(f.Payload)
		}
		block := f.Payload[off:end]
		out = append(out, block...)
		out = AppendCRC16(out, block)
	}
	return out, nil
}

// Decode parses exactly one frame from buf, returning the frame and the
// number of bytes consumed. It returns a *protoerr.Error with code
// FrameCorrupt if any CRC fails to validate, and a plain (nil, 0, nil)
// when buf does not yet hold a complete frame (caller should buffer more
// bytes and retry -- spec.md §4.1 "partial frames are buffered").
func Decode(buf []byte) (*Frame, int, error) {
	if len(buf) < headerSize+headerCRC {
		return nil, 0, nil
	}
	if buf[0] != startByte0 || buf[1] != startByte1 {
		return nil, 0, protoerr.New(protoerr.FrameCorrupt, "bad start bytes")
	}
	length := int(buf[2])
	if length < 5 {
		return nil, 0, protoerr.New(protoerr.FrameCorrupt, "length field too small")
	}
	payloadLen := length - 5
	if payloadLen > maxPayload {
		return nil, 0, protoerr.New(protoerr.FrameCorrupt, "length field too large")
	}

	header := buf[0:headerSize]
	if !ValidateCRC16(append(append([]byte{}, header...), buf[headerSize:headerSize+headerCRC]...)) {
		return nil, 0, protoerr.New(protoerr.FrameCorrupt, "header CRC mismatch")
	}

	numBlocks := 0
	if payloadLen > 0 {
		numBlocks = (payloadLen + blockSize - 1) / blockSize
	}
	totalLen := headerSize + headerCRC + payloadLen + numBlocks*blockCRC
	if len(buf) < totalLen {
		return nil, 0, nil // incomplete, wait for more bytes
	}

	payload := make([]byte, 0, payloadLen)
	off := headerSize + headerCRC
	remaining := payloadLen
	for remaining > 0 {
		n := blockSize
		if remaining < n {
			n = remaining
		}
		block := buf[off : off+n+blockCRC]
		if !ValidateCRC16(block) {
			return nil, 0, protoerr.New(protoerr.FrameCorrupt, "payload block CRC mismatch")
		}
		payload = append(payload, block[:n]...)
		off += n + blockCRC
		remaining -= n
	}

	frame := &Frame{
		Control:     header[3],
		Destination: uint16(header[4]) | uint16(header[5])<<8,
		Source:      uint16(header[6]) | uint16(header[7])<<8,
		Payload:     payload,
	}
	return frame, totalLen, nil
}

// Resync scans buf for the next candidate frame start (0x05 0x64) after a
// FRAME_CORRUPT decode error, so the receive pump can drop the offending
// bytes and keep reading instead of tearing down the link (spec.md §7:
// FRAME_CORRUPT is "recovered locally, drop and continue"). It returns the
// subslice beginning at the next candidate header, the trailing byte alone
// if that byte could be the first half of a start sequence split across
// reads, or nil if nothing in buf is salvageable.
func Resync(buf []byte) []byte {
	for i := 1; i+1 < len(buf); i++ {
		if buf[i] == startByte0 && buf[i+1] == startByte1 {
			return buf[i:]
		}
	}
	if len(buf) > 0 && buf[len(buf)-1] == startByte0 {
		return buf[len(buf)-1:]
	}
	return nil
}
