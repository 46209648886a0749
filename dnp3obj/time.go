package dnp3obj

import "time"

// CP56Time2a encodes t as a 7-byte DNP3/IEC-101 style absolute timestamp:
// milliseconds-since-epoch-of-the-minute packed little-endian across
// msec(2) min(1) hour(1) day(1) month(1) year(1), mirroring the teacher's
// asdu.CP56Time2a helper (cs104/apci.go's sibling in the asdu package)
// generalized from IEC-104's big-endian CP56Time2a to DNP3's little-endian
// on-wire order (spec.md §4.1 defers exact layout to the referenced
// standard; this module treats it as an internal wire-identical helper
// used only for round-tripping the object catalog's HasTime layouts).
func CP56Time2a(t time.Time, tz *time.Location) []byte {
	if tz != nil {
		t = t.In(tz)
	} else {
		t = t.UTC()
	}
	msec := uint16(t.Second())*1000 + uint16(t.Nanosecond()/1e6)
	out := make([]byte, 7)
	out[0] = byte(msec)
	out[1] = byte(msec >> 8)
	out[2] = byte(t.Minute())
	out[3] = byte(t.Hour())
	out[4] = byte(t.Day())
	out[5] = byte(t.Month())
	out[6] = byte(t.Year() - 2000)
	return out
}

// ParseCP56Time2a decodes the 7-byte layout CP56Time2a produces. The year
// is assumed to be in [2000, 2099] per the DNP3 convention of a 2-digit
// year field; tz is applied to interpret the wall-clock fields (nil means
// UTC).
func ParseCP56Time2a(buf []byte, tz *time.Location) time.Time {
	if tz == nil {
		tz = time.UTC
	}
	msec := uint16(buf[0]) | uint16(buf[1])<<8
	min := int(buf[2])
	hour := int(buf[3])
	day := int(buf[4])
	month := time.Month(buf[5])
	year := 2000 + int(buf[6])
	sec := int(msec / 1000)
	nsec := int(msec%1000) * 1e6
	return time.Date(year, month, day, hour, min, sec, nsec, tz)
}
