// Package cip implements an EtherNet/IP encapsulation codec and a CIP
// (Common Industrial Protocol) client over it: session registration,
// SendRRData-carried service requests, and symbolic tag addressing
// (spec.md §4.3 "CIP/EtherNet-IP client"). Grounded on
// tonylturner-cipdip's internal/enip and internal/cip/protocol packages
// (RegisterSession/SendRRData framing, Read/Write Tag service codes) and
// yatesdr-warlogix's eip/identity.go (encapsulation header layout),
// generalized into this module's Channel/protoerr idiom instead of a
// bespoke Transport interface and fmt.Errorf chain.
package cip

import (
	"encoding/binary"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// Encapsulation commands (CIP spec volume 2, table 2-3.2).
type EncapCommand uint16

const (
	CmdNOP              EncapCommand = 0x0000
	CmdRegisterSession   EncapCommand = 0x0065
	CmdUnregisterSession EncapCommand = 0x0066
	CmdSendRRData        EncapCommand = 0x006F
	CmdSendUnitData      EncapCommand = 0x0070
)

// EncapStatus is the encapsulation-layer status field; zero is success.
type EncapStatus uint32

const EncapStatusSuccess EncapStatus = 0

const encapHeaderLen = 24

// EncapHeader is the fixed 24-byte frame preceding every EtherNet/IP PDU.
type EncapHeader struct {
	Command       EncapCommand
	Length        uint16
	SessionHandle uint32
	Status        EncapStatus
	SenderContext [8]byte
	Options       uint32
}

// EncapPacket is a decoded encapsulation frame: header plus command-
// specific data.
type EncapPacket struct {
	EncapHeader
	Data []byte
}

// EncodeEncap serializes an EncapPacket, filling in Length from len(data).
func EncodeEncap(h EncapHeader, data []byte) []byte {
	out := make([]byte, encapHeaderLen+len(data))
	binary.LittleEndian.PutUint16(out[0:2], uint16(h.Command))
	binary.LittleEndian.PutUint16(out[2:4], uint16(len(data)))
	binary.LittleEndian.PutUint32(out[4:8], h.SessionHandle)
	binary.LittleEndian.PutUint32(out[8:12], uint32(h.Status))
	copy(out[12:20], h.SenderContext[:])
	binary.LittleEndian.PutUint32(out[20:24], h.Options)
	copy(out[24:], data)
	return out
}

// DecodeEncap parses one encapsulation frame from buf. It returns
// (nil, 0, nil) if buf doesn't yet hold a complete frame, mirroring
// dnp3obj.Decode's buffer-and-retry contract for stream transports.
func DecodeEncap(buf []byte) (*EncapPacket, int, error) {
	if len(buf) < encapHeaderLen {
		return nil, 0, nil
	}
	length := binary.LittleEndian.Uint16(buf[2:4])
	total := encapHeaderLen + int(length)
	if len(buf) < total {
		return nil, 0, nil
	}
	p := &EncapPacket{
		EncapHeader: EncapHeader{
			Command:       EncapCommand(binary.LittleEndian.Uint16(buf[0:2])),
			Length:        length,
			SessionHandle: binary.LittleEndian.Uint32(buf[4:8]),
			Status:        EncapStatus(binary.LittleEndian.Uint32(buf[8:12])),
			Options:       binary.LittleEndian.Uint32(buf[20:24]),
		},
	}
	copy(p.SenderContext[:], buf[12:20])
	p.Data = make([]byte, length)
	copy(p.Data, buf[encapHeaderLen:total])
	return p, total, nil
}

// BuildRegisterSession constructs the RegisterSession request body
// (protocol version 1, options 0) inside its encapsulation frame.
func BuildRegisterSession(senderContext [8]byte) []byte {
	body := []byte{0x01, 0x00, 0x00, 0x00}
	return EncodeEncap(EncapHeader{Command: CmdRegisterSession, SenderContext: senderContext}, body)
}

// BuildUnregisterSession constructs the UnregisterSession request,
// which carries no body.
func BuildUnregisterSession(session uint32, senderContext [8]byte) []byte {
	return EncodeEncap(EncapHeader{Command: CmdUnregisterSession, SessionHandle: session, SenderContext: senderContext}, nil)
}

// interfaceHandle and timeout precede the Common Packet Format items in
// every SendRRData / SendUnitData body.
func buildRRDataBody(cipData []byte) []byte {
	// CPF: null address item (type 0x0000, length 0) + unconnected data
	// item (type 0x00B2, length len(cipData)).
	out := make([]byte, 0, 16+len(cipData))
	out = append(out, 0, 0, 0, 0) // interface handle = 0 (CIP)
	out = append(out, 0, 0)       // timeout = 0 (no timeout)

	itemCount := make([]byte, 2)
	binary.LittleEndian.PutUint16(itemCount, 2)
	out = append(out, itemCount...)

	out = append(out, 0x00, 0x00, 0x00, 0x00) // null address item: type 0, length 0

	dataItemHeader := make([]byte, 4)
	binary.LittleEndian.PutUint16(dataItemHeader[0:2], 0x00B2)
	binary.LittleEndian.PutUint16(dataItemHeader[2:4], uint16(len(cipData)))
	out = append(out, dataItemHeader...)
	out = append(out, cipData...)
	return out
}

// BuildSendRRData wraps a CIP request (cipData) in SendRRData over an
// already-registered session.
func BuildSendRRData(session uint32, senderContext [8]byte, cipData []byte) []byte {
	body := buildRRDataBody(cipData)
	return EncodeEncap(EncapHeader{Command: CmdSendRRData, SessionHandle: session, SenderContext: senderContext}, body)
}

// ParseRRDataResponse strips the CPF envelope from a SendRRData response
// body and returns the embedded CIP response bytes.
func ParseRRDataResponse(body []byte) ([]byte, error) {
	if len(body) < 10 {
		return nil, protoerr.New(protoerr.BadValue, "SendRRData response too short")
	}
	itemCount := binary.LittleEndian.Uint16(body[6:8])
	if itemCount < 2 {
		return nil, protoerr.New(protoerr.BadValue, "SendRRData response missing data item")
	}
	off := 8
	// address item (expected null, type 0, length 0)
	if len(body) < off+4 {
		return nil, protoerr.New(protoerr.BadValue, "SendRRData response truncated address item")
	}
	addrLen := binary.LittleEndian.Uint16(body[off+2 : off+4])
	off += 4 + int(addrLen)
	if len(body) < off+4 {
		return nil, protoerr.New(protoerr.BadValue, "SendRRData response truncated data item")
	}
	dataLen := binary.LittleEndian.Uint16(body[off+2 : off+4])
	off += 4
	if len(body) < off+int(dataLen) {
		return nil, protoerr.New(protoerr.BadValue, "SendRRData response data item overruns buffer")
	}
	return body[off : off+int(dataLen)], nil
}
