package dnp3obj

import "github.com/rob-gra/rvpf-protocol-core/protoerr"

// FunctionCode is the DNP3 application-layer function code (spec.md
// §4.3).
type FunctionCode byte

const (
	FuncConfirm              FunctionCode = 0
	FuncRead                 FunctionCode = 1
	FuncWrite                FunctionCode = 2
	FuncSelect               FunctionCode = 3
	FuncOperate              FunctionCode = 4
	FuncDirectOperate        FunctionCode = 5
	FuncColdRestart          FunctionCode = 13
	FuncWarmRestart          FunctionCode = 14
	FuncEnableUnsolicited    FunctionCode = 20
	FuncDisableUnsolicited   FunctionCode = 21
	FuncResponse             FunctionCode = 129
	FuncUnsolicitedResponse  FunctionCode = 130
)

// IIN is the two-byte Internal Indications bit-set carried by every
// response fragment (spec.md §9 expansion).
type IIN uint16

const (
	IINAllStations      IIN = 1 << 0
	IINClass1Events     IIN = 1 << 1
	IINClass2Events     IIN = 1 << 2
	IINClass3Events     IIN = 1 << 3
	IINNeedTime         IIN = 1 << 4
	IINLocalControl     IIN = 1 << 5
	IINDeviceTrouble    IIN = 1 << 6
	IINDeviceRestart    IIN = 1 << 7
	IINNoFuncCodeSupp   IIN = 1 << 8
	IINObjectUnknown    IIN = 1 << 9
	IINParamError       IIN = 1 << 10
	IINEventBufferOvfl  IIN = 1 << 11
	IINAlreadyExecuting IIN = 1 << 12
	IINConfigCorrupt    IIN = 1 << 13
)

func (i IIN) Has(bit IIN) bool { return i&bit != 0 }

func decodeIIN(b []byte) IIN {
	return IIN(b[0]) | IIN(b[1])<<8
}

func encodeIIN(i IIN) [2]byte {
	return [2]byte{byte(i), byte(i >> 8)}
}

// ApplicationControl is the single control byte prefixing every
// application fragment (spec.md §3, §4.1).
type ApplicationControl struct {
	Fir, Fin, Con, Uns bool
	Seq                uint8 // 4 bits
}

func (c ApplicationControl) Byte() byte {
	b := c.Seq & 0x0F
	if c.Fir {
		b |= 0x80
	}
	if c.Fin {
		b |= 0x40
	}
	if c.Con {
		b |= 0x20
	}
	if c.Uns {
		b |= 0x10
	}
	return b
}

func decodeApplicationControl(b byte) ApplicationControl {
	return ApplicationControl{
		Fir: b&0x80 != 0,
		Fin: b&0x40 != 0,
		Con: b&0x20 != 0,
		Uns: b&0x10 != 0,
		Seq: b & 0x0F,
	}
}

// Item is one object header plus its decoded or opaque instances.
type Item struct {
	Header    ObjectHeader
	Instances []Instance
}

// Fragment is a decoded application-layer PDU (spec.md §3).
type Fragment struct {
	Control  ApplicationControl
	Function FunctionCode
	IIN      IIN // only meaningful on responses
	IsResponse bool
	Items    []Item
}

// requestCarriesNoInstanceData reports whether fn's object headers are
// range/qualifier descriptors only, with no instance payload following
// them on the wire. READ (and the unsolicited-response enable/disable
// pair, which address classes the same way) name what to read or affect;
// they don't carry the values themselves.
func requestCarriesNoInstanceData(fn FunctionCode, isResponse bool) bool {
	if isResponse {
		return false
	}
	switch fn {
	case FuncRead, FuncEnableUnsolicited, FuncDisableUnsolicited:
		return true
	default:
		return false
	}
}

// EncodeItem serializes one item's header and, unless headerOnly, its
// instances. Factored out of EncodeFragment so response-splitting code
// can measure an item's wire size against a fragment's byte budget
// before deciding whether it fits (spec.md §4.3, §8 scenario 3).
func EncodeItem(item Item, headerOnly bool) ([]byte, error) {
	out, err := item.Header.Encode()
	if err != nil {
		return nil, err
	}
	if headerOnly {
		return out, nil
	}
	layout, known := LookupLayout(item.Header.Group, item.Header.Variation)
	if !known {
		if len(item.Instances) > 0 {
			out = append(out, item.Instances[0].Raw...)
		}
		return out, nil
	}
	for _, inst := range item.Instances {
		encoded, err := EncodeInstance(layout, inst)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}
	return out, nil
}

// EncodeFragment serializes a Fragment: control byte, function code,
// optional IIN (responses only), then each item's header+instances.
func EncodeFragment(f Fragment) ([]byte, error) {
	out := []byte{f.Control.Byte(), byte(f.Function)}
	if f.IsResponse {
		iin := encodeIIN(f.IIN)
		out = append(out, iin[0], iin[1])
	}
	headerOnly := requestCarriesNoInstanceData(f.Function, f.IsResponse)
	for _, item := range f.Items {
		encoded, err := EncodeItem(item, headerOnly)
		if err != nil {
			return nil, err
		}
		out = append(out, encoded...)
	}
	if len(out) > MaxAssembledFragment {
		return nil, protoerr.New(protoerr.BadValue, "fragment exceeds max assembled size")
	}
	return out, nil
}

// DecodeFragment parses a complete assembled application fragment.
func DecodeFragment(buf []byte, isResponse bool) (Fragment, error) {
	if len(buf) < 2 {
		return Fragment{}, protoerr.New(protoerr.TransportDesync, "truncated fragment")
	}
	f := Fragment{
		Control:    decodeApplicationControl(buf[0]),
		Function:   FunctionCode(buf[1]),
		IsResponse: isResponse,
	}
	off := 2
	if isResponse {
		if len(buf) < off+2 {
			return f, protoerr.New(protoerr.TransportDesync, "truncated IIN")
		}
		f.IIN = decodeIIN(buf[off:])
		off += 2
	}
	headerOnly := requestCarriesNoInstanceData(f.Function, isResponse)
	for off < len(buf) {
		hdr, n, err := DecodeObjectHeader(buf[off:])
		if err != nil {
			return f, err
		}
		off += n
		item := Item{Header: hdr}
		if headerOnly {
			f.Items = append(f.Items, item)
			continue
		}
		count, indexAt := hdr.Indices()
		layout, known := LookupLayout(hdr.Group, hdr.Variation)
		if !known {
			item.Instances = []Instance{{Unsupported: true, Raw: buf[off:]}}
			f.Items = append(f.Items, item)
			off = len(buf)
			continue
		}
		for i := 0; i < count; i++ {
			inst, consumed, err := DecodeInstance(layout, indexAt(i), buf[off:])
			if err != nil {
				return f, err
			}
			off += consumed
			item.Instances = append(item.Instances, inst)
		}
		f.Items = append(f.Items, item)
	}
	return f, nil
}
