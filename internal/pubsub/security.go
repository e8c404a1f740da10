package pubsub

import "github.com/opcua-go/uacore/internal/ua"

// SecurityHeader is the symmetric-key security envelope carried by a
// NetworkMessage when PubSub security is enabled (Part 14 §7.2.3.5): a
// token id identifying which SecurityGroup key generation was used, plus
// a nonce for the AEAD construction. The actual sign/encrypt primitives
// are shared with SecureChannel's SecurityPolicy implementations
// (internal/securechannel), since PubSub reuses the same Basic256Sha256
// / Aes128/256 algorithm suites over a different transport.
type SecurityHeader struct {
	SecurityTokenID uint32
	NonceLength     byte
	Nonce           []byte
	FooterLength    uint16
}

func (h SecurityHeader) encode(e *ua.Encoder) {
	e.WriteUInt32(h.SecurityTokenID)
	e.WriteByte(byte(len(h.Nonce)))
	e.WriteBytes(h.Nonce)
	e.WriteUInt16(h.FooterLength)
}

func decodeSecurityHeader(d *ua.Decoder) (SecurityHeader, error) {
	tokenID, err := d.ReadUInt32()
	if err != nil {
		return SecurityHeader{}, err
	}
	nonceLen, err := d.ReadByte()
	if err != nil {
		return SecurityHeader{}, err
	}
	nonce, err := d.ReadBytes(int(nonceLen))
	if err != nil {
		return SecurityHeader{}, err
	}
	footer, err := d.ReadUInt16()
	if err != nil {
		return SecurityHeader{}, err
	}
	return SecurityHeader{
		SecurityTokenID: tokenID,
		NonceLength:     nonceLen,
		Nonce:           append([]byte(nil), nonce...),
		FooterLength:    footer,
	}, nil
}
