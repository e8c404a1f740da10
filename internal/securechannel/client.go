package securechannel

import (
	"context"
	"fmt"
	"time"

	"github.com/opcua-go/uacore/internal/ua"
)

// SendHello writes a client-role HEL chunk offering want as the buffer/
// message-size limits this end would like to use, the counterpart to
// HandleHello on the server side.
func (c *Channel) SendHello(ctx context.Context, want negotiatedLimits, endpointURL string) error {
	e := ua.NewEncoder(32 + len(endpointURL))
	e.WriteUInt32(0) // protocol version
	e.WriteUInt32(want.ReceiveBufferSize)
	e.WriteUInt32(want.SendBufferSize)
	e.WriteUInt32(want.MaxMessageSize)
	e.WriteUInt32(want.MaxChunkCount)
	e.WriteString(endpointURL, true)
	return c.writeChunk(ctx, MsgHello, ChunkFinal, e.Bytes())
}

// DefaultClientLimits mirrors DefaultServerLimits for the client role,
// the buffer/message-size maxima a client is willing to accept before the
// server negotiates them down in its ACK.
func DefaultClientLimits() negotiatedLimits {
	return DefaultServerLimits()
}

// ReadAck reads and applies the server's ACK response to a prior
// SendHello, recording the negotiated limits and advancing the channel to
// ChannelHelloSent.
func (c *Channel) ReadAck(ctx context.Context) error {
	h, body, err := c.ReadChunk(ctx)
	if err != nil {
		return err
	}
	if h.MessageType != MsgAcknowledge {
		return fmt.Errorf("securechannel: expected ACK, got %s", h.MessageType)
	}
	d := ua.NewDecoder(body)
	if _, err := d.ReadUInt32(); err != nil { // protocol version
		return err
	}
	recvBuf, err := d.ReadUInt32()
	if err != nil {
		return err
	}
	sendBuf, err := d.ReadUInt32()
	if err != nil {
		return err
	}
	maxMsg, err := d.ReadUInt32()
	if err != nil {
		return err
	}
	maxChunks, err := d.ReadUInt32()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.limits = negotiatedLimits{ReceiveBufferSize: recvBuf, SendBufferSize: sendBuf, MaxMessageSize: maxMsg, MaxChunkCount: maxChunks}
	c.state = ChannelHelloSent
	c.mu.Unlock()
	return nil
}

// OpenChannel issues an OPN request for policyURI with the given client
// nonce and requested lifetime, then reads and installs the server's
// response as the channel's active token, deriving the same symmetric
// keys HandleOpen would on the server side of the same exchange.
func (c *Channel) OpenChannel(ctx context.Context, policyURI string, clientNonce []byte, lifetime time.Duration) (Token, error) {
	switch policyURI {
	case PolicyNone, "":
		c.policy = NewNonePolicy()
	case PolicyBasic256Sha256:
		c.policy = NewBasic256Sha256()
	case PolicyAes128Sha256RsaOaep:
		c.policy = NewAes128Sha256RsaOaep()
	case PolicyAes256Sha256RsaPss:
		c.policy = NewAes256Sha256RsaPss()
	default:
		return Token{}, fmt.Errorf("securechannel: unsupported security policy %q", policyURI)
	}

	e := ua.NewEncoder(64 + len(clientNonce))
	AsymmetricSecurityHeader{SecurityPolicyURI: policyURI}.encode(e)
	SequenceHeader{SequenceNumber: c.sendSeq.Next(), RequestID: 0}.encode(e)
	e.WriteString(policyURI, true)
	e.WriteUInt32(0) // RequestType: issue
	e.WriteByteString(clientNonce, true)
	e.WriteUInt32(uint32(lifetime / time.Millisecond))
	if err := c.writeChunk(ctx, MsgOpenChannel, ChunkFinal, e.Bytes()); err != nil {
		return Token{}, err
	}

	h, body, err := c.ReadChunk(ctx)
	if err != nil {
		return Token{}, err
	}
	if h.MessageType != MsgOpenChannel {
		return Token{}, fmt.Errorf("securechannel: expected OPN response, got %s", h.MessageType)
	}
	d := ua.NewDecoder(body)
	if _, err := decodeAsymmetricSecurityHeader(d); err != nil {
		return Token{}, err
	}
	if _, err := decodeSequenceHeader(d); err != nil {
		return Token{}, err
	}
	if _, err := d.ReadDateTime(); err != nil { // ResponseHeader.Timestamp
		return Token{}, err
	}
	if _, err := d.ReadUInt32(); err != nil { // RequestHandle
		return Token{}, err
	}
	if _, err := d.ReadUInt32(); err != nil { // ServiceResult
		return Token{}, err
	}
	if _, err := d.ReadByte(); err != nil { // diagnostics mask
		return Token{}, err
	}
	if _, err := d.ReadInt32(); err != nil { // StringTable count
		return Token{}, err
	}
	if _, err := d.ReadUInt32(); err != nil { // ServerProtocolVersion
		return Token{}, err
	}
	channelID, err := d.ReadUInt32()
	if err != nil {
		return Token{}, err
	}
	tokenID, err := d.ReadUInt32()
	if err != nil {
		return Token{}, err
	}
	createdAt, err := d.ReadDateTime()
	if err != nil {
		return Token{}, err
	}
	lifetimeMs, err := d.ReadUInt32()
	if err != nil {
		return Token{}, err
	}
	serverNonce, _, err := d.ReadByteString()
	if err != nil {
		return Token{}, err
	}

	tok := Token{ChannelID: channelID, TokenID: tokenID, CreatedAt: createdAt, Lifetime: time.Duration(lifetimeMs) * time.Millisecond}
	if c.policy.SymmetricKeyLength() > 0 {
		csk, cek, civ, err := c.policy.DeriveKeys(serverNonce, clientNonce)
		if err != nil {
			return Token{}, err
		}
		ssk, sek, siv, err := c.policy.DeriveKeys(clientNonce, serverNonce)
		if err != nil {
			return Token{}, err
		}
		tok.ClientSignKey, tok.ClientEncKey, tok.ClientIV = csk, cek, civ
		tok.ServerSignKey, tok.ServerEncKey, tok.ServerIV = ssk, sek, siv
	}

	c.mu.Lock()
	c.id = channelID
	c.tokens.Install(tok, time.Now())
	c.recvSeq = NewSequenceVerifier(0)
	c.state = ChannelNegotiated
	c.mu.Unlock()
	return tok, nil
}
