// Package point defines the data model shared by every protocol engine:
// points, point-values, and the raw MJD/100ns timestamp they carry.
package point

import "time"

// quantum is the tick duration of a DateTime's raw value: 100 nanoseconds.
const quantum = 100 * time.Nanosecond

// mjdEpochToUnixSeconds is the number of seconds between the Modified
// Julian Date epoch (1858-11-17T00:00:00Z) and the Unix epoch
// (1970-01-01T00:00:00Z): 40587 days.
const mjdEpochToUnixSeconds = 40587 * 24 * 3600

// ticksPerSecond is the number of 100ns quanta in one second.
const ticksPerSecond = int64(time.Second / quantum)

// EndOfTimeRaw is the sentinel raw value representing "end of time",
// the largest value a raw timestamp may hold.
const EndOfTimeRaw int64 = 0x3FFFFFFFFFFFFFFF

// BeginningOfTimeRaw is the sentinel raw value representing the start of
// time, the smallest value a raw timestamp may hold.
const BeginningOfTimeRaw int64 = 0

// ElapsedMicro is a convenience Duration of one microsecond expressed in
// DateTime ticks (10 ticks of 100ns each).
const ElapsedMicro int64 = 10

// DateTime is a point-in-time value as carried on the wire: a signed
// 64-bit raw tick count since the MJD epoch, quantum 100ns.
type DateTime struct {
	raw int64
}

// FromRaw builds a DateTime from its raw on-wire representation.
func FromRaw(raw int64) DateTime { return DateTime{raw: raw} }

// Raw returns the on-wire representation.
func (d DateTime) Raw() int64 { return d.raw }

// UnixEpoch returns the DateTime corresponding to 1970-01-01T00:00:00Z.
func UnixEpoch() DateTime {
	return DateTime{raw: mjdEpochToUnixSeconds * ticksPerSecond}
}

// EndOfTime returns the sentinel DateTime used to mean "never expires".
func EndOfTime() DateTime { return DateTime{raw: EndOfTimeRaw} }

// BeginningOfTime returns the sentinel DateTime used to mean "always was".
func BeginningOfTime() DateTime { return DateTime{raw: BeginningOfTimeRaw} }

// FromTime converts a standard library time.Time into a DateTime.
func FromTime(t time.Time) DateTime {
	sec := t.Unix()
	nsec := int64(t.Nanosecond())
	ticks := (sec+mjdEpochToUnixSeconds)*ticksPerSecond + nsec/int64(quantum)
	return DateTime{raw: ticks}
}

// Time converts a DateTime back into a standard library time.Time (UTC).
func (d DateTime) Time() time.Time {
	totalNsec := d.raw * int64(quantum)
	secSinceMJD := totalNsec / int64(time.Second)
	nsecRemainder := totalNsec % int64(time.Second)
	unixSec := secSinceMJD - mjdEpochToUnixSeconds
	return time.Unix(unixSec, nsecRemainder).UTC()
}

// Before returns a DateTime that is elapsed ticks earlier than d.
func (d DateTime) Before(elapsed int64) DateTime {
	return DateTime{raw: d.raw - elapsed}
}

// After returns a DateTime that is elapsed ticks later than d.
func (d DateTime) After(elapsed int64) DateTime {
	return DateTime{raw: d.raw + elapsed}
}

// IsEndOfTime reports whether d is the "end of time" sentinel.
func (d DateTime) IsEndOfTime() bool { return d.raw == EndOfTimeRaw }

// String renders the DateTime as an RFC3339-ish UTC timestamp with a
// trailing "Z" and minute precision when no sub-minute component is set,
// matching the wire-format convention used by the point-value store.
func (d DateTime) String() string {
	t := d.Time()
	if t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04Z")
	}
	return t.Format(time.RFC3339Nano)
}
