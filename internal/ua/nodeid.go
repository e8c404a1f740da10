package ua

import "fmt"

// IdType discriminates the identifier union carried by a NodeId.
type IdType byte

const (
	IdTypeNumeric IdType = 0
	IdTypeString  IdType = 1
	IdTypeGuid    IdType = 2
	IdTypeOpaque  IdType = 3
)

// NodeId identifies a node within a namespace. Exactly one of the Numeric,
// StringID, GuidID, or OpaqueID fields is meaningful, selected by IDType.
type NodeId struct {
	Namespace uint16
	IDType    IdType
	Numeric   uint32
	StringID  string
	GuidID    Guid
	OpaqueID  []byte
}

// NewNumericNodeId constructs a numeric NodeId, the common case for
// standard and vendor-defined type/node identifiers.
func NewNumericNodeId(ns uint16, id uint32) NodeId {
	return NodeId{Namespace: ns, IDType: IdTypeNumeric, Numeric: id}
}

// NewStringNodeId constructs a string-identified NodeId.
func NewStringNodeId(ns uint16, id string) NodeId {
	return NodeId{Namespace: ns, IDType: IdTypeString, StringID: id}
}

// IsNull reports whether n is the null NodeId (ns=0, numeric identifier 0),
// the value used for absent/optional NodeId fields.
func (n NodeId) IsNull() bool {
	return n.Namespace == 0 && n.IDType == IdTypeNumeric && n.Numeric == 0
}

func (n NodeId) String() string {
	switch n.IDType {
	case IdTypeNumeric:
		return fmt.Sprintf("ns=%d;i=%d", n.Namespace, n.Numeric)
	case IdTypeString:
		return fmt.Sprintf("ns=%d;s=%s", n.Namespace, n.StringID)
	case IdTypeGuid:
		return fmt.Sprintf("ns=%d;g=%s", n.Namespace, n.GuidID.String())
	case IdTypeOpaque:
		return fmt.Sprintf("ns=%d;b=<%d bytes>", n.Namespace, len(n.OpaqueID))
	default:
		return "ns=?;?"
	}
}

// Equal reports whether two NodeIds identify the same node.
func (n NodeId) Equal(o NodeId) bool {
	if n.Namespace != o.Namespace || n.IDType != o.IDType {
		return false
	}
	switch n.IDType {
	case IdTypeNumeric:
		return n.Numeric == o.Numeric
	case IdTypeString:
		return n.StringID == o.StringID
	case IdTypeGuid:
		return n.GuidID == o.GuidID
	case IdTypeOpaque:
		if len(n.OpaqueID) != len(o.OpaqueID) {
			return false
		}
		for i := range n.OpaqueID {
			if n.OpaqueID[i] != o.OpaqueID[i] {
				return false
			}
		}
		return true
	}
	return false
}

// encoding-byte bit layout for the compact NodeId form (spec Part 6 §5.2.2.9).
const (
	nodeIdMaskTwoByte   byte = 0x00
	nodeIdMaskFourByte  byte = 0x01
	nodeIdMaskNumeric   byte = 0x02
	nodeIdMaskString    byte = 0x03
	nodeIdMaskGuid      byte = 0x04
	nodeIdMaskOpaque    byte = 0x05
	nodeIdFlagNamespace byte = 0x80
	nodeIdFlagServerIdx byte = 0x40
)

// ReadNodeId decodes a NodeId, choosing among the compact two-byte,
// four-byte, and full-form encodings by the leading encoding byte.
func (d *Decoder) ReadNodeId() (NodeId, error) {
	enc, err := d.ReadByte()
	if err != nil {
		return NodeId{}, err
	}
	switch enc {
	case nodeIdMaskTwoByte:
		id, err := d.ReadByte()
		if err != nil {
			return NodeId{}, err
		}
		return NewNumericNodeId(0, uint32(id)), nil
	case nodeIdMaskFourByte:
		ns, err := d.ReadByte()
		if err != nil {
			return NodeId{}, err
		}
		id, err := d.ReadUInt16()
		if err != nil {
			return NodeId{}, err
		}
		return NewNumericNodeId(uint16(ns), uint32(id)), nil
	case nodeIdMaskNumeric:
		ns, err := d.ReadUInt16()
		if err != nil {
			return NodeId{}, err
		}
		id, err := d.ReadUInt32()
		if err != nil {
			return NodeId{}, err
		}
		return NewNumericNodeId(ns, id), nil
	case nodeIdMaskString:
		ns, err := d.ReadUInt16()
		if err != nil {
			return NodeId{}, err
		}
		s, ok, err := d.ReadString()
		if err != nil {
			return NodeId{}, err
		}
		if !ok {
			s = ""
		}
		return NewStringNodeId(ns, s), nil
	case nodeIdMaskGuid:
		ns, err := d.ReadUInt16()
		if err != nil {
			return NodeId{}, err
		}
		g, err := d.ReadGuid()
		if err != nil {
			return NodeId{}, err
		}
		return NodeId{Namespace: ns, IDType: IdTypeGuid, GuidID: g}, nil
	case nodeIdMaskOpaque:
		ns, err := d.ReadUInt16()
		if err != nil {
			return NodeId{}, err
		}
		b, ok, err := d.ReadByteString()
		if err != nil {
			return NodeId{}, err
		}
		if !ok {
			b = nil
		}
		return NodeId{Namespace: ns, IDType: IdTypeOpaque, OpaqueID: b}, nil
	default:
		return NodeId{}, decErr(BadDecodingError, d.pos, "NodeId: unknown encoding byte")
	}
}

// WriteNodeId encodes n, preferring the most compact form its values allow.
func (e *Encoder) WriteNodeId(n NodeId) {
	switch n.IDType {
	case IdTypeNumeric:
		switch {
		case n.Namespace == 0 && n.Numeric <= 0xFF:
			e.WriteByte(nodeIdMaskTwoByte)
			e.WriteByte(byte(n.Numeric))
		case n.Namespace <= 0xFF && n.Numeric <= 0xFFFF:
			e.WriteByte(nodeIdMaskFourByte)
			e.WriteByte(byte(n.Namespace))
			e.WriteUInt16(uint16(n.Numeric))
		default:
			e.WriteByte(nodeIdMaskNumeric)
			e.WriteUInt16(n.Namespace)
			e.WriteUInt32(n.Numeric)
		}
	case IdTypeString:
		e.WriteByte(nodeIdMaskString)
		e.WriteUInt16(n.Namespace)
		e.WriteString(n.StringID, true)
	case IdTypeGuid:
		e.WriteByte(nodeIdMaskGuid)
		e.WriteUInt16(n.Namespace)
		e.WriteGuid(n.GuidID)
	case IdTypeOpaque:
		e.WriteByte(nodeIdMaskOpaque)
		e.WriteUInt16(n.Namespace)
		e.WriteByteString(n.OpaqueID, n.OpaqueID != nil)
	}
}

// ExpandedNodeId augments NodeId with an optional namespace URI (in place
// of a namespace index) and an optional server index, used when a NodeId
// crosses server or namespace-table boundaries.
type ExpandedNodeId struct {
	NodeId       NodeId
	NamespaceURI string
	HasURI       bool
	ServerIndex  uint32
}

const (
	expandedFlagURI     byte = 0x80
	expandedFlagServer  byte = 0x40
	expandedEncodingBit byte = 0x3F
)

// ReadExpandedNodeId decodes an ExpandedNodeId: the encoding byte's top two
// bits signal the optional namespace-URI and server-index fields, the
// bottom six select the NodeId's identifier encoding.
func (d *Decoder) ReadExpandedNodeId() (ExpandedNodeId, error) {
	start := d.pos
	enc, err := d.PeekBytes(1)
	if err != nil {
		return ExpandedNodeId{}, err
	}
	hasURI := enc[0]&expandedFlagURI != 0
	hasServer := enc[0]&expandedFlagServer != 0
	maskedByte := enc[0] &^ (expandedFlagURI | expandedFlagServer)
	d.buf[d.pos] = maskedByte
	nid, err := d.ReadNodeId()
	d.buf[start] = enc[0]
	if err != nil {
		return ExpandedNodeId{}, err
	}
	out := ExpandedNodeId{NodeId: nid}
	if hasURI {
		uri, ok, err := d.ReadString()
		if err != nil {
			return ExpandedNodeId{}, err
		}
		out.HasURI = ok
		out.NamespaceURI = uri
	}
	if hasServer {
		idx, err := d.ReadUInt32()
		if err != nil {
			return ExpandedNodeId{}, err
		}
		out.ServerIndex = idx
	}
	return out, nil
}

// WriteExpandedNodeId encodes n, setting the URI/server-index presence
// flags in the leading encoding byte.
func (e *Encoder) WriteExpandedNodeId(n ExpandedNodeId) {
	before := e.Len()
	e.WriteNodeId(n.NodeId)
	flag := byte(0)
	if n.HasURI {
		flag |= expandedFlagURI
	}
	if n.ServerIndex != 0 {
		flag |= expandedFlagServer
	}
	e.buf[before] |= flag
	if n.HasURI {
		e.WriteString(n.NamespaceURI, true)
	}
	if n.ServerIndex != 0 {
		e.WriteUInt32(n.ServerIndex)
	}
}
