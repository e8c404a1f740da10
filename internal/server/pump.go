package server

import (
	"crypto/rand"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/opcua-go/uacore/internal/dispatch"
	"github.com/opcua-go/uacore/internal/logging"
	"github.com/opcua-go/uacore/internal/securechannel"
	"github.com/opcua-go/uacore/internal/session"
	"github.com/opcua-go/uacore/internal/transport"
	"github.com/opcua-go/uacore/internal/ua"
)

var nextChannelID uint32

var (
	errUnknownSession     = errors.New("server: request carries no recognized session")
	errUnknownRequestType = errors.New("server: unrecognized request type id")
)

// handleConnection drives one accepted transport.Connection through its
// whole life: HEL/ACK, OPN (possibly renewed more than once), a stream of
// MSG application messages dispatched through s.dispatcher, and finally
// CLO or a read error. It runs on its own goroutine per connection (the
// concurrency the single-threaded EventLoop intentionally does not own),
// handing decoded application requests to the loop via AddCallback so
// session/subscription state mutation stays serialized.
func (s *Server) handleConnection(conn transport.Connection) {
	defer logging.RecoverPanic(s.logger, "server.handleConnection", map[string]interface{}{"remote": conn.RemoteAddr()})
	defer conn.Close()

	ch := securechannel.NewChannel(conn, s.logger)
	ch.SetID(atomic.AddUint32(&nextChannelID, 1))
	s.metrics.ChannelsOpened.Inc()
	s.metrics.ChannelsActive.Inc()
	defer s.metrics.ChannelsActive.Dec()

	logger := s.logger.With().Str("remote", conn.RemoteAddr()).Uint32("channel_id", ch.ID()).Logger()

	var msgBuf []byte
	var msgReqID uint32

	for {
		h, body, err := ch.ReadChunk(s.ctx)
		if err != nil {
			logger.Debug().Err(err).Msg("server: connection closed")
			s.metrics.ChannelsClosed.WithLabelValues("read_error").Inc()
			return
		}

		switch h.MessageType {
		case securechannel.MsgHello:
			if err := ch.HandleHello(s.ctx, body, securechannel.DefaultServerLimits()); err != nil {
				logger.Warn().Err(err).Msg("server: HEL rejected")
				return
			}

		case securechannel.MsgOpenChannel:
			req, err := securechannel.ParseOpenRequest(body)
			if err != nil {
				logger.Warn().Err(err).Msg("server: malformed OPN")
				return
			}
			nonce := make([]byte, 32)
			_, _ = rand.Read(nonce)
			tok, err := ch.HandleOpen(s.ctx, req, nonce, s.cfg.ChannelLifetime)
			if err != nil {
				logger.Warn().Err(err).Msg("server: OPN rejected")
				return
			}
			if err := ch.SendOpenResponse(s.ctx, *tok, nonce); err != nil {
				logger.Warn().Err(err).Msg("server: failed to send OPN response")
				return
			}
			s.metrics.TokenRenewals.Inc()

		case securechannel.MsgCloseChannel:
			s.metrics.ChannelsClosed.WithLabelValues("clo").Inc()
			return

		case securechannel.MsgConversation:
			if h.ChunkType == securechannel.ChunkAbort {
				logger.Warn().Msg("server: peer aborted message, closing channel")
				s.metrics.ChannelsClosed.WithLabelValues("aborted").Inc()
				return
			}
			reqID, payload, err := s.accumulateChunk(ch, body, h.ChunkType, &msgBuf, &msgReqID)
			if err != nil {
				logger.Warn().Err(err).Msg("server: malformed MSG chunk, closing channel")
				s.metrics.ChannelsClosed.WithLabelValues("protocol_error").Inc()
				return
			}
			if payload == nil {
				continue // intermediate chunk, message not yet complete
			}
			msgBuf = nil
			if err := s.handleMessage(ch, reqID, payload, logger); err != nil {
				logger.Warn().Err(err).Msg("server: message handling failed, closing channel")
				s.metrics.ChannelsClosed.WithLabelValues("protocol_error").Inc()
				return
			}

		default:
			logger.Warn().Str("type", h.MessageType.String()).Msg("server: unexpected chunk type")
			return
		}
	}
}

// accumulateChunk decodes one MSG chunk via ch.DecodeConversationChunk,
// which verifies/decrypts the chunk under the channel's negotiated
// SecurityPolicy and checks its sequence number, and appends the resulting
// plaintext to buf. It returns a non-nil payload only once an intermediate
// run has been closed by a Final chunk.
func (s *Server) accumulateChunk(ch *securechannel.Channel, body []byte, ct securechannel.ChunkType, buf *[]byte, reqID *uint32) (requestID uint32, payload []byte, err error) {
	rid, chunkBody, err := ch.DecodeConversationChunk(body)
	if err != nil {
		return 0, nil, err
	}
	*buf = append(*buf, chunkBody...)
	*reqID = rid
	if ct != securechannel.ChunkFinal {
		return rid, nil, nil
	}
	return rid, *buf, nil
}

// handleMessage decodes the ExpandedNodeId request-type header and common
// RequestHeader from a fully reassembled application message, then hands
// off to the event loop for the actual service dispatch so every
// session/subscription mutation stays on that single goroutine.
func (s *Server) handleMessage(ch *securechannel.Channel, requestID uint32, payload []byte, logger zerolog.Logger) error {
	d := ua.NewDecoder(payload)
	eid, err := d.ReadExpandedNodeId()
	if err != nil {
		return err
	}
	reqHeader, err := decodeRequestHeader(d)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	s.loop.AddCallback(func() {
		defer close(done)
		s.dispatchOne(ch, requestID, eid.NodeId, reqHeader, d, logger)
	})
	<-done
	return nil
}

// dispatchOne decodes the service-specific body for typeID, runs it
// through s.dispatcher, and writes the encoded response back over ch. It
// always runs on the event loop goroutine.
func (s *Server) dispatchOne(ch *securechannel.Channel, requestID uint32, typeID ua.NodeId, reqHeader dispatch.RequestHeader, body *ua.Decoder, logger zerolog.Logger) {
	ctx := withRequestID(withChannel(s.ctx, ch), requestID)

	var (
		arg  interface{}
		err  error
		sess *session.Session
	)

	if !reqHeader.AuthenticationToken.IsNull() {
		if found, ok := s.sessions.LookupByToken(reqHeader.AuthenticationToken); ok {
			sess = found
			sess.Touch()
			ctx = withSessionID(ctx, sess.SessionID.String())
		}
	}

	identFn := func() session.Identity {
		if sess != nil {
			return sess.Identity()
		}
		return session.Identity{}
	}

	switch typeID {
	case typeCreateSessionRequest:
		arg, err = decodeCreateSessionArgs(body)
	case typeActivateSessionRequest:
		if sess == nil {
			err = errUnknownSession
			break
		}
		var a ActivateSessionArgs
		a.Identity, err = decodeIdentityToken(body)
		a.Channel = sess
		arg = a
	case typeCloseSessionRequest:
		if _, err2 := body.ReadBoolean(); err2 != nil { // DeleteSubscriptions
			err = err2
			break
		}
		if sess == nil {
			err = errUnknownSession
			break
		}
		arg = sess
	case typeCreateSubscriptionRequest:
		arg, err = decodeCreateSubscriptionArgs(body)
	case typePublishRequest:
		arg, err = decodePublishArgs(body)
	case typeReadRequest:
		arg, err = decodeReadArgs(identFn)(body)
	case typeWriteRequest:
		arg, err = decodeWriteArgs(identFn)(body)
	default:
		err = errUnknownRequestType
	}

	var result interface{}
	if err == nil {
		result, err = s.dispatcher.Dispatch(ctx, typeID, arg)
	}

	status := ua.StatusGood
	if err != nil {
		var code ua.StatusCode
		if errors.As(err, &code) {
			status = code
		} else {
			status = ua.BadInvalidState
		}
		logger.Warn().Err(err).Str("type", typeID.String()).Msg("server: dispatch failed")
	}

	resp := ua.NewEncoder(256)
	writeResponseEnvelope(resp, typeID, dispatch.ResponseHeader{Timestamp: time.Now(), RequestHandle: reqHeader.RequestHandle, ServiceResult: status})
	encodeResult(resp, result)

	if err := ch.SendMessage(s.ctx, requestID, resp.Bytes()); err != nil {
		logger.Warn().Err(err).Msg("server: failed to send response")
	}
}

func writeResponseEnvelope(e *ua.Encoder, reqType ua.NodeId, h dispatch.ResponseHeader) {
	// The response type id is written as the request's type id plus one;
	// services.go names only the request ids.
	respType := reqType
	respType.Numeric++
	e.WriteExpandedNodeId(ua.ExpandedNodeId{NodeId: respType})
	encodeResponseHeader(e, h)
}

func encodeResult(e *ua.Encoder, result interface{}) {
	switch r := result.(type) {
	case CreateSessionResult:
		encodeCreateSessionResult(e, r)
	case ActivateSessionResult:
		encodeActivateSessionResult(e, r)
	case CreateSubscriptionResult:
		encodeCreateSubscriptionResult(e, r)
	case PublishResult:
		encodePublishResult(e, r)
	case ReadResult:
		_ = encodeReadResult(e, r)
	case WriteResult:
		encodeWriteResult(e, r)
	default:
		// CloseSession's response carries nothing beyond the header.
	}
}
