package cip

import (
	"encoding/binary"

	"github.com/rob-gra/rvpf-protocol-core/protoerr"
)

// ServiceCode identifies a CIP service request (CIP spec volume 1,
// appendix A, plus the Logix-specific tag services tonylturner-cipdip's
// spec package names).
type ServiceCode byte

const (
	ServiceGetAttributeSingle ServiceCode = 0x0E
	ServiceSetAttributeSingle ServiceCode = 0x10
	ServiceReadTag            ServiceCode = 0x4C
	ServiceWriteTag           ServiceCode = 0x4D
	ServiceMultipleService    ServiceCode = 0x0A
)

// responseServiceBit marks a service code as a reply (CIP spec 2-4.1.2).
const responseServiceBit = 0x80

// GeneralStatus is the one-byte CIP general status code (0 = success).
type GeneralStatus byte

const GeneralStatusSuccess GeneralStatus = 0x00

// CIPDataType identifies a Logix atomic data type on the wire (used in
// Read Tag responses and Write Tag requests).
type CIPDataType uint16

const (
	TypeBOOL  CIPDataType = 0x00C1
	TypeSINT  CIPDataType = 0x00C2
	TypeINT   CIPDataType = 0x00C3
	TypeDINT  CIPDataType = 0x00C4
	TypeLINT  CIPDataType = 0x00C5
	TypeREAL  CIPDataType = 0x00CA
	TypeLREAL CIPDataType = 0x00CB
)

// TypeSize returns the byte width of one element of t, or 0 if unknown.
func TypeSize(t CIPDataType) int {
	switch t {
	case TypeBOOL, TypeSINT:
		return 1
	case TypeINT:
		return 2
	case TypeDINT, TypeREAL:
		return 4
	case TypeLINT, TypeLREAL:
		return 8
	default:
		return 0
	}
}

// Request is one CIP service invocation: a service code, an EPATH
// (request path), and a service-specific payload.
type Request struct {
	Service ServiceCode
	Path    []byte // pre-built EPATH, see BuildSymbolicPath/BuildClassInstancePath
	Payload []byte
}

// Response is a decoded CIP service reply.
type Response struct {
	Service       ServiceCode
	GeneralStatus GeneralStatus
	ExtendedStatus []byte
	Data          []byte
}

// EncodeRequest serializes req as service byte + EPATH (word-counted) +
// payload, the shape every CIP request over SendRRData shares.
func EncodeRequest(req Request) []byte {
	pathWords := len(req.Path) / 2
	out := make([]byte, 0, 2+len(req.Path)+len(req.Payload))
	out = append(out, byte(req.Service), byte(pathWords))
	out = append(out, req.Path...)
	out = append(out, req.Payload...)
	return out
}

// DecodeResponse parses a CIP service reply.
func DecodeResponse(buf []byte) (Response, error) {
	if len(buf) < 4 {
		return Response{}, protoerr.New(protoerr.BadValue, "CIP response too short")
	}
	svc := ServiceCode(buf[0] &^ responseServiceBit)
	// buf[1] is reserved (0x00)
	status := GeneralStatus(buf[2])
	extWords := int(buf[3])
	off := 4
	resp := Response{Service: svc, GeneralStatus: status}
	if extWords > 0 {
		extLen := extWords * 2
		if len(buf) < off+extLen {
			return Response{}, protoerr.New(protoerr.BadValue, "CIP response extended status truncated")
		}
		resp.ExtendedStatus = buf[off : off+extLen]
		off += extLen
	}
	resp.Data = buf[off:]
	return resp, nil
}

// BuildReadTagPayload builds a Read Tag (0x4C) request payload: the
// element count to read.
func BuildReadTagPayload(elementCount uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, elementCount)
	return buf
}

// BuildWriteTagPayload builds a Write Tag (0x4D) request payload: data
// type, element count, then the raw element bytes.
func BuildWriteTagPayload(dataType CIPDataType, elementCount uint16, data []byte) []byte {
	buf := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(dataType))
	binary.LittleEndian.PutUint16(buf[2:4], elementCount)
	return append(buf, data...)
}

// ParseReadTagResponse extracts the data type and raw element bytes from
// a decoded Read Tag response.
func ParseReadTagResponse(resp Response) (CIPDataType, []byte, error) {
	if resp.GeneralStatus != GeneralStatusSuccess {
		return 0, nil, protoerr.New(protoerr.BadValue, "read tag returned non-success general status")
	}
	if len(resp.Data) < 2 {
		return 0, nil, protoerr.New(protoerr.BadValue, "read tag response missing data type")
	}
	dt := CIPDataType(binary.LittleEndian.Uint16(resp.Data[0:2]))
	return dt, resp.Data[2:], nil
}

// MultiServicePacket bundles several service requests into one Multiple
// Service Packet (0x0A) so a batch of tag reads/writes round-trips in a
// single SendRRData exchange (spec.md §4.3 "multi-service packet
// batching"), bounded by the connection's reply size (504 bytes is the
// conservative unconnected-message limit most Logix controllers use).
const MaxMultiServiceEnvelope = 504

// EncodeMultiServiceRequest packs requests behind a class-2/instance-1
// Message Router path, computing the per-request offset table CIP
// requires.
func EncodeMultiServiceRequest(requests [][]byte) (Request, error) {
	count := uint16(len(requests))
	offsets := make([]byte, 2*count)
	body := make([]byte, 0, 2+len(offsets))

	// offsets are measured from the start of the offset-count field
	base := 2 + int(2*count)
	cursor := base
	var payload []byte
	for i, r := range requests {
		binary.LittleEndian.PutUint16(offsets[2*i:2*i+2], uint16(cursor))
		payload = append(payload, r...)
		cursor += len(r)
	}

	countBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(countBytes, count)
	body = append(body, countBytes...)
	body = append(body, offsets...)
	body = append(body, payload...)

	if 2+len(body) > MaxMultiServiceEnvelope {
		return Request{}, protoerr.New(protoerr.BadValue, "multi-service packet exceeds envelope limit")
	}

	return Request{
		Service: ServiceMultipleService,
		Path:    BuildClassInstancePath(0x0002, 0x0001),
		Payload: body,
	}, nil
}

// DecodeMultiServiceResponse splits a Multiple Service Packet reply back
// into its per-request Response values.
func DecodeMultiServiceResponse(resp Response) ([]Response, error) {
	if len(resp.Data) < 2 {
		return nil, protoerr.New(protoerr.BadValue, "multi-service response too short")
	}
	count := binary.LittleEndian.Uint16(resp.Data[0:2])
	if len(resp.Data) < int(2+2*count) {
		return nil, protoerr.New(protoerr.BadValue, "multi-service response offset table truncated")
	}
	offsets := make([]int, count)
	for i := 0; i < int(count); i++ {
		offsets[i] = int(binary.LittleEndian.Uint16(resp.Data[2+2*i : 4+2*i]))
	}
	out := make([]Response, count)
	for i := 0; i < int(count); i++ {
		start := offsets[i]
		end := len(resp.Data)
		if i+1 < int(count) {
			end = offsets[i+1]
		}
		if start > len(resp.Data) || end > len(resp.Data) || start > end {
			return nil, protoerr.New(protoerr.BadValue, "multi-service response entry out of bounds")
		}
		decoded, err := DecodeResponse(resp.Data[start:end])
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}
