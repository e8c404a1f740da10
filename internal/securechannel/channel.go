package securechannel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opcua-go/uacore/internal/transport"
	"github.com/opcua-go/uacore/internal/ua"
)

// ChannelState is the handshake FSM: a channel starts Fresh, exchanges
// HEL/ACK, moves to Negotiated once an OPN has established the first
// security token, and returns to Closed on CLO or any protocol violation.
type ChannelState int

const (
	ChannelFresh ChannelState = iota
	ChannelHelloSent
	ChannelNegotiated
	ChannelClosed
)

// negotiatedLimits is populated from the peer's HEL/ACK, bounding message
// and chunk sizes for the lifetime of the channel.
type negotiatedLimits struct {
	SendBufferSize, ReceiveBufferSize uint32
	MaxMessageSize, MaxChunkCount     uint32
}

// Channel is one SecureChannel: a transport.Connection plus the handshake
// state, active security policy, token ring, and sequence bookkeeping
// layered on top of it. The server reads from it on the connection's own
// goroutine and sends responses from the event loop goroutine; the fields
// guarded by mu are safe to use from both, but SendMessage does not lock
// the send-side sequence generator, so SendMessage calls must not overlap.
type Channel struct {
	conn   transport.Connection
	logger zerolog.Logger

	mu       sync.Mutex
	state    ChannelState
	id       uint32
	policy   SecurityPolicy
	tokens   *TokenRing
	limits   negotiatedLimits
	// isServer is true once this Channel has processed a HEL or OPN as the
	// receiving side, which fixes which half of a Token's key pair it signs
	// and encrypts with versus the half it verifies and decrypts with.
	isServer bool

	sendSeq *SequenceGenerator
	recvSeq *SequenceVerifier

	nextTokenID uint32
}

// NewChannel wraps conn as a fresh (un-negotiated) SecureChannel.
func NewChannel(conn transport.Connection, logger zerolog.Logger) *Channel {
	return &Channel{
		conn:    conn,
		logger:  logger,
		state:   ChannelFresh,
		policy:  NewNonePolicy(),
		tokens:  NewTokenRing(15 * time.Second),
		sendSeq: NewSequenceGenerator(),
	}
}

func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) ID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// SetID assigns the channel's numeric id, normally allocated by the
// Connection Manager from a process-wide counter when a new channel is
// accepted, before the first HEL arrives.
func (c *Channel) SetID(id uint32) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

// HandleHello processes an incoming HEL chunk: validates the requested
// buffer/message-size limits against the server's own maxima and sends
// back an ACK, or an ERR if the request cannot be satisfied.
func (c *Channel) HandleHello(ctx context.Context, body []byte, serverMax negotiatedLimits) error {
	c.mu.Lock()
	if c.state != ChannelFresh {
		c.mu.Unlock()
		return fmt.Errorf("securechannel: HEL received in state %v", c.state)
	}
	c.isServer = true
	c.mu.Unlock()

	d := ua.NewDecoder(body)
	_, err := d.ReadUInt32() // protocol version, informational only
	if err != nil {
		return c.sendError(ctx, ua.BadTcpMessageTypeInvalid, "malformed HEL")
	}
	recvBuf, _ := d.ReadUInt32()
	sendBuf, _ := d.ReadUInt32()
	maxMsg, _ := d.ReadUInt32()
	maxChunks, _ := d.ReadUInt32()

	negotiated := negotiatedLimits{
		ReceiveBufferSize: minU32(recvBuf, serverMax.ReceiveBufferSize),
		SendBufferSize:    minU32(sendBuf, serverMax.SendBufferSize),
		MaxMessageSize:    minNonZero(maxMsg, serverMax.MaxMessageSize),
		MaxChunkCount:     minNonZero(maxChunks, serverMax.MaxChunkCount),
	}

	c.mu.Lock()
	c.limits = negotiated
	c.state = ChannelHelloSent
	c.mu.Unlock()

	ack := ua.NewEncoder(32)
	ack.WriteUInt32(0)
	ack.WriteUInt32(negotiated.ReceiveBufferSize)
	ack.WriteUInt32(negotiated.SendBufferSize)
	ack.WriteUInt32(negotiated.MaxMessageSize)
	ack.WriteUInt32(negotiated.MaxChunkCount)

	return c.writeChunk(ctx, MsgAcknowledge, ChunkFinal, ack.Bytes())
}

func minU32(a, b uint32) uint32 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func minNonZero(a, b uint32) uint32 { return minU32(a, b) }

// DefaultServerLimits returns the buffer/message-size maxima HandleHello
// negotiates down from, matching the reference stack's conservative
// opc.tcp defaults.
func DefaultServerLimits() negotiatedLimits {
	return negotiatedLimits{
		SendBufferSize:    64 * 1024,
		ReceiveBufferSize: 64 * 1024,
		MaxMessageSize:    16 * 1024 * 1024,
		MaxChunkCount:     4096,
	}
}

// OpenRequest is the decoded body of an OPN chunk's request-side payload:
// the policy, mode, client nonce, and requested token lifetime.
type OpenRequest struct {
	SecurityPolicyURI string
	RequestType       uint32 // 0 = issue, 1 = renew
	ClientNonce       []byte
	RequestedLifetime time.Duration
}

// HandleOpen processes an OPN chunk, installing a new security token
// (issue) or rotating to a fresh one while the prior stays valid through
// its grace window (renew).
func (c *Channel) HandleOpen(ctx context.Context, req OpenRequest, serverNonce []byte, lifetime time.Duration) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isServer = true

	switch req.SecurityPolicyURI {
	case PolicyNone, "":
		c.policy = NewNonePolicy()
	case PolicyBasic256Sha256:
		c.policy = NewBasic256Sha256()
	case PolicyAes128Sha256RsaOaep:
		c.policy = NewAes128Sha256RsaOaep()
	case PolicyAes256Sha256RsaPss:
		c.policy = NewAes256Sha256RsaPss()
	default:
		return nil, fmt.Errorf("securechannel: unsupported security policy %q", req.SecurityPolicyURI)
	}

	tok := Token{
		ChannelID: c.id,
		TokenID:   c.nextTokenID + 1,
		CreatedAt: time.Now(),
		Lifetime:  lifetime,
	}
	c.nextTokenID = tok.TokenID

	if c.policy.SymmetricKeyLength() > 0 {
		csk, cek, civ, err := c.policy.DeriveKeys(serverNonce, req.ClientNonce)
		if err != nil {
			return nil, err
		}
		ssk, sek, siv, err := c.policy.DeriveKeys(req.ClientNonce, serverNonce)
		if err != nil {
			return nil, err
		}
		tok.ClientSignKey, tok.ClientEncKey, tok.ClientIV = csk, cek, civ
		tok.ServerSignKey, tok.ServerEncKey, tok.ServerIV = ssk, sek, siv
	}

	c.tokens.Install(tok, tok.CreatedAt)
	c.recvSeq = NewSequenceVerifier(0)
	c.state = ChannelNegotiated
	return &tok, nil
}

// SendOpenResponse writes the OPN response chunk for tok: the security
// token fields a client needs to start sending MSG chunks, echoing the
// channel id HandleOpen installed it under.
func (c *Channel) SendOpenResponse(ctx context.Context, tok Token, serverNonce []byte) error {
	c.mu.Lock()
	policyURI := c.policy.URI()
	c.mu.Unlock()

	e := ua.NewEncoder(64 + len(serverNonce))
	AsymmetricSecurityHeader{SecurityPolicyURI: policyURI}.encode(e)
	SequenceHeader{SequenceNumber: c.sendSeq.Next(), RequestID: 0}.encode(e)
	e.WriteDateTime(time.Now())
	e.WriteUInt32(0) // ResponseHeader.RequestHandle, filled by dispatch for OPN's own handle in a real binding
	e.WriteUInt32(0) // ResponseHeader.ServiceResult: Good
	e.WriteByte(0)   // ResponseHeader.ServiceDiagnostics, absent
	e.WriteInt32(0)  // ResponseHeader.StringTable, empty
	e.WriteUInt32(0) // ServerProtocolVersion
	e.WriteUInt32(tok.ChannelID)
	e.WriteUInt32(tok.TokenID)
	e.WriteDateTime(tok.CreatedAt)
	e.WriteUInt32(uint32(tok.Lifetime / time.Millisecond))
	e.WriteByteString(serverNonce, serverNonce != nil)

	return c.writeChunk(ctx, MsgOpenChannel, ChunkFinal, e.Bytes())
}

// ActiveToken returns the channel's current security token, if one has
// been negotiated yet.
func (c *Channel) ActiveToken() (Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens.Current()
}

// TokenDue reports whether the current token has crossed its 75% renewal
// threshold and a RenewSecureChannel should be initiated.
func (c *Channel) TokenDue(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	tok, ok := c.tokens.Current()
	if !ok {
		return false
	}
	return tok.State(now) != TokenActive
}

// SendMessage chunks and writes an application message (service
// request/response) over the channel using the active token, splitting
// across multiple intermediate chunks if payload exceeds the negotiated
// send buffer size.
func (c *Channel) SendMessage(ctx context.Context, requestID uint32, payload []byte) error {
	c.mu.Lock()
	tok, hasTok := c.tokens.Current()
	chunkSize := int(c.limits.SendBufferSize)
	c.mu.Unlock()
	if !hasTok {
		return fmt.Errorf("securechannel: SendMessage called before a token was negotiated")
	}
	if chunkSize <= 0 {
		chunkSize = len(payload)
		if chunkSize == 0 {
			chunkSize = 1
		}
	}

	for offset := 0; offset < len(payload) || offset == 0; {
		end := offset + chunkSize
		chunkType := ChunkIntermediate
		if end >= len(payload) {
			end = len(payload)
			chunkType = ChunkFinal
		}
		body := payload[offset:end]

		seq := c.sendSeq.Next()
		plain := ua.NewEncoder(len(body) + 8)
		SequenceHeader{SequenceNumber: seq, RequestID: requestID}.encode(plain)
		plain.WriteBytes(body)

		secured, err := c.applySecurity(tok, plain.Bytes())
		if err != nil {
			return err
		}

		e := ua.NewEncoder(len(secured) + 4)
		SymmetricSecurityHeader{TokenID: tok.TokenID}.encode(e)
		e.WriteBytes(secured)

		if err := c.writeChunk(ctx, MsgConversation, chunkType, e.Bytes()); err != nil {
			return err
		}
		offset = end
		if chunkType == ChunkFinal {
			break
		}
	}
	return nil
}

// symmetricBlockSize is the AES block size the Basic256Sha256/Aes128/256
// policies encrypt in; None never reaches the padding/cipher step.
const symmetricBlockSize = 16

// pkcs7Pad pads data up to the next multiple of blockSize, the padding
// scheme the aesSha256Policy block cipher requires of its input.
func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("securechannel: empty padded plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen <= 0 || padLen > len(data) {
		return nil, fmt.Errorf("securechannel: invalid chunk padding")
	}
	return data[:len(data)-padLen], nil
}

// applySecurity signs and, for a policy with a symmetric cipher, encrypts a
// plaintext chunk body (a SequenceHeader followed by application bytes)
// before it is handed to writeChunk. A channel signs and encrypts with its
// own role's key set: the server with Server*, the client with Client*.
// None leaves the body untouched, matching its no-op sign/encrypt stubs.
func (c *Channel) applySecurity(tok Token, plaintext []byte) ([]byte, error) {
	c.mu.Lock()
	policy := c.policy
	isServer := c.isServer
	c.mu.Unlock()

	if policy.SymmetricKeyLength() == 0 {
		return plaintext, nil
	}

	signKey, encKey, iv := tok.ClientSignKey, tok.ClientEncKey, tok.ClientIV
	if isServer {
		signKey, encKey, iv = tok.ServerSignKey, tok.ServerEncKey, tok.ServerIV
	}

	ciphertext, err := policy.Encrypt(encKey, iv, pkcs7Pad(plaintext, symmetricBlockSize))
	if err != nil {
		return nil, fmt.Errorf("securechannel: encrypting chunk: %w", err)
	}
	sig, err := policy.Sign(signKey, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("securechannel: signing chunk: %w", err)
	}
	return append(ciphertext, sig...), nil
}

// removeSecurity is the receive-side counterpart to applySecurity: it
// verifies the signature and decrypts the body using the peer's half of the
// key pair, the half the peer signed and encrypted with.
func (c *Channel) removeSecurity(tok Token, body []byte) ([]byte, error) {
	c.mu.Lock()
	policy := c.policy
	isServer := c.isServer
	c.mu.Unlock()

	if policy.SymmetricKeyLength() == 0 {
		return body, nil
	}

	signKey, encKey, iv := tok.ServerSignKey, tok.ServerEncKey, tok.ServerIV
	if isServer {
		signKey, encKey, iv = tok.ClientSignKey, tok.ClientEncKey, tok.ClientIV
	}

	sigLen := policy.SignatureLength()
	if len(body) < sigLen {
		return nil, fmt.Errorf("securechannel: chunk shorter than its signature")
	}
	ciphertext, sig := body[:len(body)-sigLen], body[len(body)-sigLen:]
	if err := policy.VerifySign(signKey, ciphertext, sig); err != nil {
		return nil, fmt.Errorf("securechannel: %w", err)
	}
	padded, err := policy.Decrypt(encKey, iv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("securechannel: decrypting chunk: %w", err)
	}
	return pkcs7Unpad(padded)
}

// writeChunk assembles the 8-byte common header, whose MessageSize field
// includes the header itself, and writes it through the transport.
func (c *Channel) writeChunk(ctx context.Context, mt MessageType, ct ChunkType, body []byte) error {
	e := ua.NewEncoder(8 + len(body))
	ChunkHeader{MessageType: mt, ChunkType: ct, MessageSize: uint32(8 + len(body))}.encode(e)
	e.WriteBytes(body)
	return c.conn.Write(ctx, e.Bytes())
}

func (c *Channel) sendError(ctx context.Context, code ua.StatusCode, reason string) error {
	e := ua.NewEncoder(16 + len(reason))
	e.WriteUInt32(uint32(code))
	e.WriteString(reason, true)
	err := c.writeChunk(ctx, MsgError, ChunkFinal, e.Bytes())
	c.mu.Lock()
	c.state = ChannelClosed
	c.mu.Unlock()
	return err
}

// Close transitions the channel to Closed and closes the underlying
// transport connection.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.state = ChannelClosed
	c.mu.Unlock()
	return c.conn.Close()
}

// ReadChunk reads one chunk from the transport and parses its common
// header, returning the header and the remaining (header-stripped) bytes.
func (c *Channel) ReadChunk(ctx context.Context) (ChunkHeader, []byte, error) {
	raw, err := c.conn.Read(ctx)
	if err != nil {
		return ChunkHeader{}, nil, err
	}
	h, err := decodeChunkHeader(raw)
	if err != nil {
		return ChunkHeader{}, nil, err
	}
	if int(h.MessageSize) != len(raw) {
		return ChunkHeader{}, nil, fmt.Errorf("securechannel: chunk header MessageSize %d does not match received length %d", h.MessageSize, len(raw))
	}
	return h, raw[8:], nil
}

// VerifySequence checks a received chunk's sequence number against this
// channel's verifier, aborting the channel on a gap.
func (c *Channel) VerifySequence(sn uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recvSeq == nil {
		c.recvSeq = NewSequenceVerifier(sn)
		return c.recvSeq.Verify(sn)
	}
	if err := c.recvSeq.Verify(sn); err != nil {
		c.state = ChannelClosed
		return err
	}
	return nil
}

// ParseOpenRequest reads an OPN chunk's asymmetric security header and
// request body, returning the decoded OpenRequest ready for HandleOpen.
// The caller is expected to have already read the chunk via ReadChunk and
// confirmed its MessageType is MsgOpenChannel.
func ParseOpenRequest(body []byte) (OpenRequest, error) {
	d := ua.NewDecoder(body)
	if _, err := decodeAsymmetricSecurityHeader(d); err != nil {
		return OpenRequest{}, fmt.Errorf("securechannel: OPN asymmetric header: %w", err)
	}
	if _, err := decodeSequenceHeader(d); err != nil {
		return OpenRequest{}, fmt.Errorf("securechannel: OPN sequence header: %w", err)
	}
	policyURI, _, err := d.ReadString()
	if err != nil {
		return OpenRequest{}, err
	}
	reqType, err := d.ReadUInt32()
	if err != nil {
		return OpenRequest{}, err
	}
	nonce, _, err := d.ReadByteString()
	if err != nil {
		return OpenRequest{}, err
	}
	lifetimeMs, err := d.ReadUInt32()
	if err != nil {
		return OpenRequest{}, err
	}
	return OpenRequest{
		SecurityPolicyURI: policyURI,
		RequestType:       reqType,
		ClientNonce:       nonce,
		RequestedLifetime: time.Duration(lifetimeMs) * time.Millisecond,
	}, nil
}

// ReceiveMessage reads and reassembles one application message (a MSG
// chunk or run of MSG chunks) from the channel, verifying each chunk's
// sequence number and returning the request id and reassembled payload
// once a Final chunk arrives. It is the receive-side counterpart to
// SendMessage.
func (c *Channel) ReceiveMessage(ctx context.Context) (requestID uint32, payload []byte, err error) {
	var buf []byte
	for {
		h, body, err := c.ReadChunk(ctx)
		if err != nil {
			return 0, nil, err
		}
		if h.MessageType != MsgConversation {
			return 0, nil, fmt.Errorf("securechannel: expected MSG chunk, got %s", h.MessageType)
		}
		rid, chunkBody, err := c.DecodeConversationChunk(body)
		if err != nil {
			return 0, nil, err
		}
		buf = append(buf, chunkBody...)
		requestID = rid
		if h.ChunkType == ChunkFinal {
			return requestID, buf, nil
		}
		if h.ChunkType == ChunkAbort {
			return 0, nil, fmt.Errorf("securechannel: peer aborted message (request %d)", requestID)
		}
	}
}

// DecodeConversationChunk parses one MSG chunk's SymmetricSecurityHeader,
// looks up the token it names, verifies and decrypts the body if the
// negotiated policy requires it, then parses and verifies the SequenceHeader
// underneath. It is the single receive-side entry point both ReceiveMessage
// and the server's own per-connection pump use, so a connection's inbound
// chunks are never handed upward unverified.
func (c *Channel) DecodeConversationChunk(body []byte) (requestID uint32, payload []byte, err error) {
	d := ua.NewDecoder(body)
	symHeader, err := decodeSymmetricSecurityHeader(d)
	if err != nil {
		return 0, nil, err
	}
	rest, err := d.ReadBytes(d.Len())
	if err != nil {
		return 0, nil, err
	}

	c.mu.Lock()
	policy := c.policy
	c.mu.Unlock()

	var tok Token
	if policy.SymmetricKeyLength() > 0 {
		var hasTok bool
		c.mu.Lock()
		tok, hasTok = c.tokens.Lookup(symHeader.TokenID, time.Now())
		c.mu.Unlock()
		if !hasTok {
			return 0, nil, fmt.Errorf("securechannel: unknown or expired token id %d", symHeader.TokenID)
		}
	}

	plain, err := c.removeSecurity(tok, rest)
	if err != nil {
		return 0, nil, err
	}

	pd := ua.NewDecoder(plain)
	seq, err := decodeSequenceHeader(pd)
	if err != nil {
		return 0, nil, err
	}
	if err := c.VerifySequence(seq.SequenceNumber); err != nil {
		return 0, nil, err
	}
	chunkBody, err := pd.ReadBytes(pd.Len())
	if err != nil {
		return 0, nil, err
	}
	return seq.RequestID, chunkBody, nil
}
