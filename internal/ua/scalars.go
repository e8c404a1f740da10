package ua

import "math"

// This file implements the portable little-endian encode/decode primitives
// for the built-in scalar types. No unsafe pointer overlay
// is used; OPC UA payloads are small relative to a decode call, and a
// branch-light byte-at-a-time path is simpler to audit than an endianness
// dependent fast path plus a fallback would be.

func (d *Decoder) ReadBoolean() (bool, error) {
	b, err := d.ReadBytes(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func (e *Encoder) WriteBoolean(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

func (d *Decoder) ReadSByte() (int8, error) {
	b, err := d.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (e *Encoder) WriteSByte(v int8) { e.buf = append(e.buf, byte(v)) }

func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (e *Encoder) WriteByte(v byte) { e.buf = append(e.buf, v) }

func (d *Decoder) ReadUInt16() (uint16, error) {
	b, err := d.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

func (e *Encoder) WriteUInt16(v uint16) {
	e.buf = append(e.buf, byte(v), byte(v>>8))
}

func (d *Decoder) ReadInt16() (int16, error) {
	v, err := d.ReadUInt16()
	return int16(v), err
}

func (e *Encoder) WriteInt16(v int16) { e.WriteUInt16(uint16(v)) }

func (d *Decoder) ReadUInt32() (uint32, error) {
	b, err := d.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (e *Encoder) WriteUInt32(v uint32) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (d *Decoder) ReadInt32() (int32, error) {
	v, err := d.ReadUInt32()
	return int32(v), err
}

func (e *Encoder) WriteInt32(v int32) { e.WriteUInt32(uint32(v)) }

func (d *Decoder) ReadUInt64() (uint64, error) {
	b, err := d.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (e *Encoder) WriteUInt64(v uint64) {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	e.buf = append(e.buf, b[:]...)
}

func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUInt64()
	return int64(v), err
}

func (e *Encoder) WriteInt64(v int64) { e.WriteUInt64(uint64(v)) }

func (d *Decoder) ReadFloat() (float32, error) {
	v, err := d.ReadUInt32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (e *Encoder) WriteFloat(v float32) { e.WriteUInt32(math.Float32bits(v)) }

func (d *Decoder) ReadDouble() (float64, error) {
	v, err := d.ReadUInt64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (e *Encoder) WriteDouble(v float64) { e.WriteUInt64(math.Float64bits(v)) }
