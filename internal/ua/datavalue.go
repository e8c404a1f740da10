package ua

import "time"

// DataValue encoding-mask bits (Part 6 §5.2.2.17). Each field's presence is
// independent of the others; a mask of 0x00 is legal and denotes a value
// with every field absent.
const (
	dataValueHasValue             byte = 0x01
	dataValueHasStatus            byte = 0x02
	dataValueHasSourceTimestamp   byte = 0x04
	dataValueHasServerTimestamp   byte = 0x08
	dataValueHasSourcePicoseconds byte = 0x10
	dataValueHasServerPicoseconds byte = 0x20
)

// DataValue is a sampled value together with quality and timing metadata.
// Every field is independently optional; Has* flags record presence.
type DataValue struct {
	Value Variant
	HasValue bool

	Status    StatusCode
	HasStatus bool

	SourceTimestamp    time.Time
	HasSourceTimestamp bool

	ServerTimestamp    time.Time
	HasServerTimestamp bool

	SourcePicoseconds    uint16
	HasSourcePicoseconds bool

	ServerPicoseconds    uint16
	HasServerPicoseconds bool
}

func (d *Decoder) ReadDataValue() (DataValue, error) {
	mask, err := d.ReadByte()
	if err != nil {
		return DataValue{}, err
	}
	var dv DataValue
	if mask&dataValueHasValue != 0 {
		v, err := d.ReadVariant()
		if err != nil {
			return DataValue{}, err
		}
		dv.Value, dv.HasValue = v, true
	}
	if mask&dataValueHasStatus != 0 {
		s, err := d.ReadUInt32()
		if err != nil {
			return DataValue{}, err
		}
		dv.Status, dv.HasStatus = StatusCode(s), true
	}
	if mask&dataValueHasSourceTimestamp != 0 {
		t, err := d.ReadDateTime()
		if err != nil {
			return DataValue{}, err
		}
		dv.SourceTimestamp, dv.HasSourceTimestamp = t, true
	}
	if mask&dataValueHasServerTimestamp != 0 {
		t, err := d.ReadDateTime()
		if err != nil {
			return DataValue{}, err
		}
		dv.ServerTimestamp, dv.HasServerTimestamp = t, true
	}
	if mask&dataValueHasSourcePicoseconds != 0 {
		p, err := d.ReadUInt16()
		if err != nil {
			return DataValue{}, err
		}
		dv.SourcePicoseconds, dv.HasSourcePicoseconds = p, true
	}
	if mask&dataValueHasServerPicoseconds != 0 {
		p, err := d.ReadUInt16()
		if err != nil {
			return DataValue{}, err
		}
		dv.ServerPicoseconds, dv.HasServerPicoseconds = p, true
	}
	return dv, nil
}

func (e *Encoder) WriteDataValue(dv DataValue) error {
	mask := byte(0)
	if dv.HasValue {
		mask |= dataValueHasValue
	}
	if dv.HasStatus {
		mask |= dataValueHasStatus
	}
	if dv.HasSourceTimestamp {
		mask |= dataValueHasSourceTimestamp
	}
	if dv.HasServerTimestamp {
		mask |= dataValueHasServerTimestamp
	}
	if dv.HasSourcePicoseconds {
		mask |= dataValueHasSourcePicoseconds
	}
	if dv.HasServerPicoseconds {
		mask |= dataValueHasServerPicoseconds
	}
	e.WriteByte(mask)
	if dv.HasValue {
		if err := e.WriteVariant(dv.Value); err != nil {
			return err
		}
	}
	if dv.HasStatus {
		e.WriteUInt32(uint32(dv.Status))
	}
	if dv.HasSourceTimestamp {
		e.WriteDateTime(dv.SourceTimestamp)
	}
	if dv.HasServerTimestamp {
		e.WriteDateTime(dv.ServerTimestamp)
	}
	if dv.HasSourcePicoseconds {
		e.WriteUInt16(dv.SourcePicoseconds)
	}
	if dv.HasServerPicoseconds {
		e.WriteUInt16(dv.ServerPicoseconds)
	}
	return nil
}
