// Package securechannel implements the OPC UA SecureChannel: chunk
// framing, the HEL/ACK/OPN/CLO handshake, sequence-number bookkeeping,
// security token lifecycle, and the pluggable SecurityPolicy used to sign
// and encrypt MSG chunks.
package securechannel

import (
	"encoding/binary"
	"fmt"

	"github.com/opcua-go/uacore/internal/ua"
)

// MessageType is the 3-byte ASCII tag that opens every chunk.
type MessageType [3]byte

var (
	MsgHello          = MessageType{'H', 'E', 'L'}
	MsgAcknowledge    = MessageType{'A', 'C', 'K'}
	MsgError          = MessageType{'E', 'R', 'R'}
	MsgOpenChannel    = MessageType{'O', 'P', 'N'}
	MsgCloseChannel   = MessageType{'C', 'L', 'O'}
	MsgConversation   = MessageType{'M', 'S', 'G'}
)

func (mt MessageType) String() string { return string(mt[:]) }

// ChunkType is the fourth byte of the header: final, intermediate, or abort.
type ChunkType byte

const (
	ChunkFinal        ChunkType = 'F'
	ChunkIntermediate ChunkType = 'C'
	ChunkAbort        ChunkType = 'A'
)

// ChunkHeader is the 8-byte header common to every chunk: message type,
// chunk type, and total message size (including the header itself).
type ChunkHeader struct {
	MessageType MessageType
	ChunkType   ChunkType
	MessageSize uint32
}

func decodeChunkHeader(b []byte) (ChunkHeader, error) {
	if len(b) < 8 {
		return ChunkHeader{}, fmt.Errorf("securechannel: chunk header truncated (%d bytes)", len(b))
	}
	h := ChunkHeader{
		MessageType: MessageType{b[0], b[1], b[2]},
		ChunkType:   ChunkType(b[3]),
		MessageSize: binary.LittleEndian.Uint32(b[4:8]),
	}
	return h, nil
}

func (h ChunkHeader) encode(e *ua.Encoder) {
	e.WriteBytes(h.MessageType[:])
	e.WriteByte(byte(h.ChunkType))
	e.WriteUInt32(h.MessageSize)
}

// AsymmetricSecurityHeader appears on OPN chunks; it names the policy URI
// and carries the sender's and the receiver's certificate/thumbprint.
type AsymmetricSecurityHeader struct {
	SecurityPolicyURI         string
	SenderCertificate         []byte
	ReceiverCertificateThumbprint []byte
}

func decodeAsymmetricSecurityHeader(d *ua.Decoder) (AsymmetricSecurityHeader, error) {
	uri, _, err := d.ReadString()
	if err != nil {
		return AsymmetricSecurityHeader{}, err
	}
	cert, _, err := d.ReadByteString()
	if err != nil {
		return AsymmetricSecurityHeader{}, err
	}
	thumb, _, err := d.ReadByteString()
	if err != nil {
		return AsymmetricSecurityHeader{}, err
	}
	return AsymmetricSecurityHeader{
		SecurityPolicyURI:             uri,
		SenderCertificate:             cert,
		ReceiverCertificateThumbprint: thumb,
	}, nil
}

func (h AsymmetricSecurityHeader) encode(e *ua.Encoder) {
	e.WriteString(h.SecurityPolicyURI, true)
	e.WriteByteString(h.SenderCertificate, h.SenderCertificate != nil)
	e.WriteByteString(h.ReceiverCertificateThumbprint, h.ReceiverCertificateThumbprint != nil)
}

// SymmetricSecurityHeader appears on MSG/CLO chunks: just the active
// token id.
type SymmetricSecurityHeader struct {
	TokenID uint32
}

func decodeSymmetricSecurityHeader(d *ua.Decoder) (SymmetricSecurityHeader, error) {
	id, err := d.ReadUInt32()
	return SymmetricSecurityHeader{TokenID: id}, err
}

func (h SymmetricSecurityHeader) encode(e *ua.Encoder) {
	e.WriteUInt32(h.TokenID)
}

// SequenceHeader carries the per-chunk sequence number and the request id
// it belongs to.
type SequenceHeader struct {
	SequenceNumber uint32
	RequestID      uint32
}

func decodeSequenceHeader(d *ua.Decoder) (SequenceHeader, error) {
	sn, err := d.ReadUInt32()
	if err != nil {
		return SequenceHeader{}, err
	}
	rid, err := d.ReadUInt32()
	if err != nil {
		return SequenceHeader{}, err
	}
	return SequenceHeader{SequenceNumber: sn, RequestID: rid}, nil
}

func (h SequenceHeader) encode(e *ua.Encoder) {
	e.WriteUInt32(h.SequenceNumber)
	e.WriteUInt32(h.RequestID)
}
