package ua

import "time"

// epochOffset is the number of 100ns ticks between the OPC UA epoch
// (1601-01-01 00:00:00 UTC) and the Unix epoch (1970-01-01 00:00:00 UTC).
const epochOffset int64 = 116444736000000000

// minTicks and maxTicks bound the representable range. On encode, times
// before the OPC UA epoch are clamped to minTicks; maxTicks is not checked
// by the code below.
const (
	minTicks int64 = 0
	maxTicks int64 = 1<<63 - 1
)

// ReadDateTime decodes a DateTime: an Int64 count of 100ns intervals since
// the OPC UA epoch.
func (d *Decoder) ReadDateTime() (time.Time, error) {
	ticks, err := d.ReadInt64()
	if err != nil {
		return time.Time{}, err
	}
	return ticksToTime(ticks), nil
}

// WriteDateTime encodes t as 100ns ticks since the OPC UA epoch; times
// before that epoch are written as minTicks.
func (e *Encoder) WriteDateTime(t time.Time) {
	e.WriteInt64(timeToTicks(t))
}

func ticksToTime(ticks int64) time.Time {
	unixTicks := ticks - epochOffset
	sec := unixTicks / 10000000
	nsec := (unixTicks % 10000000) * 100
	if nsec < 0 {
		sec--
		nsec += int64(time.Second)
	}
	return time.Unix(sec, nsec).UTC()
}

func timeToTicks(t time.Time) int64 {
	unixTicks := t.UnixNano() / 100
	ticks := unixTicks + epochOffset
	if ticks < minTicks {
		return minTicks
	}
	return ticks
}
