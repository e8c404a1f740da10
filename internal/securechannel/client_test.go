package securechannel

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanConn is an in-memory transport.Connection pair, one end per
// channel direction, enough to drive a client Channel and a server
// Channel through a full HEL/ACK/OPN handshake without a real socket.
type chanConn struct {
	out chan []byte
	in  chan []byte
}

func newConnPair() (client, server *chanConn) {
	a := make(chan []byte, 16)
	b := make(chan []byte, 16)
	client = &chanConn{out: a, in: b}
	server = &chanConn{out: b, in: a}
	return client, server
}

func (c *chanConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case b := <-c.in:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *chanConn) Write(ctx context.Context, b []byte) error {
	cp := append([]byte(nil), b...)
	select {
	case c.out <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *chanConn) RemoteAddr() string { return "pipe" }
func (c *chanConn) Close() error       { return nil }

func TestClientServerHelloAckHandshake(t *testing.T) {
	clientConn, serverConn := newConnPair()
	clientCh := NewChannel(clientConn, zerolog.Nop())
	serverCh := NewChannel(serverConn, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		h, body, err := serverCh.ReadChunk(ctx)
		if err != nil {
			serverErr <- err
			return
		}
		if h.MessageType != MsgHello {
			serverErr <- assert.AnError
			return
		}
		serverErr <- serverCh.HandleHello(ctx, body, DefaultServerLimits())
	}()

	require.NoError(t, clientCh.SendHello(ctx, DefaultClientLimits(), "opc.tcp://localhost:4840"))
	require.NoError(t, <-serverErr)

	require.NoError(t, clientCh.ReadAck(ctx))
	assert.Equal(t, ChannelHelloSent, clientCh.state)
	assert.Equal(t, ChannelHelloSent, serverCh.state)
}

func TestClientServerOpenChannelNegotiatesToken(t *testing.T) {
	clientConn, serverConn := newConnPair()
	clientCh := NewChannel(clientConn, zerolog.Nop())
	serverCh := NewChannel(serverConn, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverTok := make(chan *Token, 1)
	serverErr := make(chan error, 1)
	go func() {
		_, body, err := serverCh.ReadChunk(ctx)
		if err != nil {
			serverErr <- err
			return
		}
		req, err := ParseOpenRequest(body)
		if err != nil {
			serverErr <- err
			return
		}
		nonce := make([]byte, 32)
		_, _ = rand.Read(nonce)
		tok, err := serverCh.HandleOpen(ctx, req, nonce, time.Hour)
		if err != nil {
			serverErr <- err
			return
		}
		serverTok <- tok
		serverErr <- serverCh.SendOpenResponse(ctx, *tok, nonce)
	}()

	clientNonce := make([]byte, 32)
	_, _ = rand.Read(clientNonce)
	tok, err := clientCh.OpenChannel(ctx, PolicyNone, clientNonce, time.Hour)
	require.NoError(t, err)
	require.NoError(t, <-serverErr)

	st := <-serverTok
	assert.Equal(t, st.ChannelID, tok.ChannelID)
	assert.Equal(t, st.TokenID, tok.TokenID)
	assert.Equal(t, ChannelNegotiated, clientCh.state)
}

func TestReadAckRejectsWrongMessageType(t *testing.T) {
	clientConn, serverConn := newConnPair()
	clientCh := NewChannel(clientConn, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go func() {
		serverCh := NewChannel(serverConn, zerolog.Nop())
		_ = serverCh.sendError(ctx, 0, "not an ack")
	}()

	err := clientCh.ReadAck(ctx)
	assert.Error(t, err)
}

func TestSendMessageEncryptsAndReceiveMessageDecrypts(t *testing.T) {
	clientConn, serverConn := newConnPair()
	clientCh := NewChannel(clientConn, zerolog.Nop())
	serverCh := NewChannel(serverConn, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverTok := make(chan *Token, 1)
	serverErr := make(chan error, 1)
	go func() {
		_, body, err := serverCh.ReadChunk(ctx)
		if err != nil {
			serverErr <- err
			return
		}
		req, err := ParseOpenRequest(body)
		if err != nil {
			serverErr <- err
			return
		}
		nonce := make([]byte, 32)
		_, _ = rand.Read(nonce)
		tok, err := serverCh.HandleOpen(ctx, req, nonce, time.Hour)
		if err != nil {
			serverErr <- err
			return
		}
		serverTok <- tok
		serverErr <- serverCh.SendOpenResponse(ctx, *tok, nonce)
	}()

	clientNonce := make([]byte, 32)
	_, _ = rand.Read(clientNonce)
	_, err := clientCh.OpenChannel(ctx, PolicyBasic256Sha256, clientNonce, time.Hour)
	require.NoError(t, err)
	require.NoError(t, <-serverErr)
	<-serverTok

	require.NoError(t, clientCh.SendMessage(ctx, 7, []byte("hello secure world")))
	reqID, payload, err := serverCh.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), reqID)
	assert.Equal(t, "hello secure world", string(payload))

	require.NoError(t, serverCh.SendMessage(ctx, 7, []byte("reply")))
	_, reply, err := clientCh.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reply", string(reply))
}

func TestReceiveMessageRejectsTamperedCiphertext(t *testing.T) {
	clientConn, serverConn := newConnPair()
	clientCh := NewChannel(clientConn, zerolog.Nop())
	serverCh := NewChannel(serverConn, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		_, body, err := serverCh.ReadChunk(ctx)
		if err != nil {
			serverErr <- err
			return
		}
		req, err := ParseOpenRequest(body)
		if err != nil {
			serverErr <- err
			return
		}
		nonce := make([]byte, 32)
		_, _ = rand.Read(nonce)
		tok, err := serverCh.HandleOpen(ctx, req, nonce, time.Hour)
		if err != nil {
			serverErr <- err
			return
		}
		serverErr <- serverCh.SendOpenResponse(ctx, *tok, nonce)
	}()

	clientNonce := make([]byte, 32)
	_, _ = rand.Read(clientNonce)
	_, err := clientCh.OpenChannel(ctx, PolicyBasic256Sha256, clientNonce, time.Hour)
	require.NoError(t, err)
	require.NoError(t, <-serverErr)

	require.NoError(t, clientCh.SendMessage(ctx, 1, []byte("authentic")))
	tampered := <-clientConn.out
	tampered[len(tampered)-1] ^= 0xFF
	serverConn.in <- tampered

	_, _, err = serverCh.ReceiveMessage(ctx)
	assert.Error(t, err)
}

func TestOpenChannelRejectsUnknownPolicy(t *testing.T) {
	clientConn, _ := newConnPair()
	clientCh := NewChannel(clientConn, zerolog.Nop())
	ctx := context.Background()
	_, err := clientCh.OpenChannel(ctx, "urn:bogus:policy", []byte("nonce"), time.Hour)
	assert.Error(t, err)
}
