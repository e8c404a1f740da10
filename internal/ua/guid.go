package ua

import "github.com/google/uuid"

// Guid is the OPC UA 128-bit identifier type. Its wire layout differs from
// RFC 4122's byte order: the first three fields are little-endian integers
// rather than raw big-endian bytes. NewGuid and the Read/Write pair convert
// to and from google/uuid's RFC 4122 byte layout so the rest of the stack
// (NodeId, session/subscription ids) can use uuid.UUID as the in-memory
// representation.
type Guid = uuid.UUID

// NewGuid generates a random (version 4) Guid. Session ids and nonces
// elsewhere in this module are generated without it.
func NewGuid() Guid {
	return uuid.New()
}

// ReadGuid decodes the OPC UA wire representation of a Guid:
// Data1 (UInt32 LE), Data2 (UInt16 LE), Data3 (UInt16 LE), Data4 (8 raw bytes).
func (d *Decoder) ReadGuid() (Guid, error) {
	data1, err := d.ReadUInt32()
	if err != nil {
		return Guid{}, err
	}
	data2, err := d.ReadUInt16()
	if err != nil {
		return Guid{}, err
	}
	data3, err := d.ReadUInt16()
	if err != nil {
		return Guid{}, err
	}
	data4, err := d.ReadBytes(8)
	if err != nil {
		return Guid{}, err
	}
	var g Guid
	g[0], g[1], g[2], g[3] = byte(data1>>24), byte(data1>>16), byte(data1>>8), byte(data1)
	g[4], g[5] = byte(data2>>8), byte(data2)
	g[6], g[7] = byte(data3>>8), byte(data3)
	copy(g[8:16], data4)
	return g, nil
}

// WriteGuid encodes g in OPC UA wire order.
func (e *Encoder) WriteGuid(g Guid) {
	data1 := uint32(g[0])<<24 | uint32(g[1])<<16 | uint32(g[2])<<8 | uint32(g[3])
	data2 := uint16(g[4])<<8 | uint16(g[5])
	data3 := uint16(g[6])<<8 | uint16(g[7])
	e.WriteUInt32(data1)
	e.WriteUInt16(data2)
	e.WriteUInt16(data3)
	e.WriteBytes(g[8:16])
}
