// Package pubsub implements the PubSub NetworkMessage/DataSetMessage
// binary codec and the symmetric-key security envelope applied to
// messages published over a broker transport rather than a SecureChannel.
package pubsub

import (
	"fmt"

	"github.com/opcua-go/uacore/internal/ua"
)

// NetworkMessage header flag bits (Part 14 §7.2.3).
const (
	flagPublisherID  byte = 0x10
	flagGroupHeader  byte = 0x20
	flagPayloadHeader byte = 0x40
	flagExtended1    byte = 0x80
	versionMask      byte = 0x0F
)

const networkMessageVersion byte = 1

// NetworkMessage is the outermost PubSub envelope carrying one or more
// DataSetMessages, grounded on Part 14's UADP mapping.
type NetworkMessage struct {
	PublisherID   string
	HasPublisher  bool
	WriterGroupID uint16
	DataSets      []DataSetMessage

	Security *SecurityHeader
}

// DataSetMessage carries the payload for one published DataSet: a
// sequence number and a set of field values represented as Variants
// (the Variant field encoding; this module has no JSON mapping).
type DataSetMessage struct {
	DataSetWriterID uint16
	SequenceNumber  uint16
	Fields          []ua.Variant
}

// EncodeUA serializes the NetworkMessage onto the binary wire.
func (m NetworkMessage) EncodeUA(e *ua.Encoder) error {
	flags := networkMessageVersion & versionMask
	if m.HasPublisher {
		flags |= flagPublisherID
	}
	flags |= flagGroupHeader | flagPayloadHeader
	if m.Security != nil {
		flags |= flagExtended1
	}
	e.WriteByte(flags)

	if m.HasPublisher {
		e.WriteString(m.PublisherID, true)
	}

	e.WriteUInt16(m.WriterGroupID)

	e.WriteByte(byte(len(m.DataSets)))
	for _, ds := range m.DataSets {
		e.WriteUInt16(ds.DataSetWriterID)
	}

	if m.Security != nil {
		m.Security.encode(e)
	}

	for _, ds := range m.DataSets {
		if err := ds.encode(e); err != nil {
			return err
		}
	}
	return nil
}

// DecodeUA parses a NetworkMessage from the binary wire.
func (m *NetworkMessage) DecodeUA(d *ua.Decoder) error {
	flags, err := d.ReadByte()
	if err != nil {
		return err
	}
	if flags&versionMask != networkMessageVersion {
		return fmt.Errorf("pubsub: unsupported NetworkMessage version %d", flags&versionMask)
	}
	m.HasPublisher = flags&flagPublisherID != 0
	if m.HasPublisher {
		pid, _, err := d.ReadString()
		if err != nil {
			return err
		}
		m.PublisherID = pid
	}

	wg, err := d.ReadUInt16()
	if err != nil {
		return err
	}
	m.WriterGroupID = wg

	count, err := d.ReadByte()
	if err != nil {
		return err
	}
	m.DataSets = make([]DataSetMessage, count)
	for i := range m.DataSets {
		wid, err := d.ReadUInt16()
		if err != nil {
			return err
		}
		m.DataSets[i].DataSetWriterID = wid
	}

	if flags&flagExtended1 != 0 {
		sec, err := decodeSecurityHeader(d)
		if err != nil {
			return err
		}
		m.Security = &sec
	}

	for i := range m.DataSets {
		if err := m.DataSets[i].decode(d); err != nil {
			return err
		}
	}
	return nil
}

func (ds DataSetMessage) encode(e *ua.Encoder) error {
	e.WriteUInt16(ds.SequenceNumber)
	e.WriteUInt16(uint16(len(ds.Fields)))
	for _, f := range ds.Fields {
		if err := e.WriteVariant(f); err != nil {
			return err
		}
	}
	return nil
}

func (ds *DataSetMessage) decode(d *ua.Decoder) error {
	sn, err := d.ReadUInt16()
	if err != nil {
		return err
	}
	ds.SequenceNumber = sn
	count, err := d.ReadUInt16()
	if err != nil {
		return err
	}
	ds.Fields = make([]ua.Variant, count)
	for i := range ds.Fields {
		v, err := d.ReadVariant()
		if err != nil {
			return err
		}
		ds.Fields[i] = v
	}
	return nil
}
