package server

import (
	"fmt"
	"time"

	"github.com/opcua-go/uacore/internal/dispatch"
	"github.com/opcua-go/uacore/internal/nodestore"
	"github.com/opcua-go/uacore/internal/session"
	"github.com/opcua-go/uacore/internal/ua"
)

// decodeRequestHeader reads the common envelope every request carries
// (Part 4 §7.29), in the order AuthenticationToken, Timestamp,
// RequestHandle, ReturnDiagnostics, then an AuditEntryId string that is
// read and discarded and a TimeoutHint uint32 returned as Timeout.
func decodeRequestHeader(d *ua.Decoder) (dispatch.RequestHeader, error) {
	token, err := d.ReadNodeId()
	if err != nil {
		return dispatch.RequestHeader{}, err
	}
	ts, err := d.ReadDateTime()
	if err != nil {
		return dispatch.RequestHeader{}, err
	}
	handle, err := d.ReadUInt32()
	if err != nil {
		return dispatch.RequestHeader{}, err
	}
	diag, err := d.ReadUInt32()
	if err != nil {
		return dispatch.RequestHeader{}, err
	}
	if _, _, err := d.ReadString(); err != nil { // AuditEntryId, unused
		return dispatch.RequestHeader{}, err
	}
	timeoutMs, err := d.ReadUInt32()
	if err != nil {
		return dispatch.RequestHeader{}, err
	}
	return dispatch.RequestHeader{
		AuthenticationToken: token,
		Timestamp:           ts,
		RequestHandle:       handle,
		ReturnDiagnostics:   diag,
		Timeout:             time.Duration(timeoutMs) * time.Millisecond,
	}, nil
}

func encodeResponseHeader(e *ua.Encoder, h dispatch.ResponseHeader) {
	e.WriteDateTime(h.Timestamp)
	e.WriteUInt32(h.RequestHandle)
	e.WriteUInt32(uint32(h.ServiceResult))
	e.WriteByte(0) // DiagnosticInfo presence mask, always absent on this path
	e.WriteInt32(int32(len(h.StringTable)))
	for _, s := range h.StringTable {
		e.WriteString(s, true)
	}
}

func decodeCreateSessionArgs(d *ua.Decoder) (CreateSessionArgs, error) {
	// ClientDescription (ApplicationDescription) and the fields after it
	// are read in wire order; only ApplicationUri and SessionName are kept.
	appURI, _, err := d.ReadString()
	if err != nil {
		return CreateSessionArgs{}, err
	}
	if _, _, err := d.ReadString(); err != nil { // ProductUri
		return CreateSessionArgs{}, err
	}
	if _, err := d.ReadLocalizedText(); err != nil { // ApplicationName
		return CreateSessionArgs{}, err
	}
	if _, err := d.ReadUInt32(); err != nil { // ApplicationType
		return CreateSessionArgs{}, err
	}
	if _, _, err := d.ReadString(); err != nil { // GatewayServerUri
		return CreateSessionArgs{}, err
	}
	if _, _, err := d.ReadString(); err != nil { // DiscoveryProfileUri
		return CreateSessionArgs{}, err
	}
	urlCount, err := d.ReadInt32()
	if err != nil {
		return CreateSessionArgs{}, err
	}
	for i := int32(0); i < urlCount; i++ { // DiscoveryUrls
		if _, _, err := d.ReadString(); err != nil {
			return CreateSessionArgs{}, err
		}
	}
	if _, _, err := d.ReadString(); err != nil { // ServerUri
		return CreateSessionArgs{}, err
	}
	if _, _, err := d.ReadString(); err != nil { // EndpointUrl
		return CreateSessionArgs{}, err
	}
	sessionName, _, err := d.ReadString()
	if err != nil {
		return CreateSessionArgs{}, err
	}
	if _, _, err := d.ReadByteString(); err != nil { // ClientNonce
		return CreateSessionArgs{}, err
	}
	if _, _, err := d.ReadByteString(); err != nil { // ClientCertificate
		return CreateSessionArgs{}, err
	}
	timeoutMs, err := d.ReadDouble()
	if err != nil {
		return CreateSessionArgs{}, err
	}
	return CreateSessionArgs{
		ClientDescription: appURI,
		SessionName:       sessionName,
		RequestedTimeout:  time.Duration(timeoutMs) * time.Millisecond,
	}, nil
}

func encodeCreateSessionResult(e *ua.Encoder, r CreateSessionResult) {
	e.WriteNodeId(r.SessionID)
	e.WriteNodeId(r.AuthenticationToken)
	e.WriteDouble(float64(r.RevisedTimeout / time.Millisecond))
	e.WriteByteString(r.ServerNonce, r.ServerNonce != nil)
}

func decodeIdentityToken(d *ua.Decoder) (session.IdentityTokenRequest, error) {
	kind, err := d.ReadByte()
	if err != nil {
		return session.IdentityTokenRequest{}, err
	}
	switch session.IdentityKind(kind) {
	case session.IdentityAnonymous:
		return session.IdentityTokenRequest{Kind: session.IdentityAnonymous}, nil
	case session.IdentityUserName:
		name, _, err := d.ReadString()
		if err != nil {
			return session.IdentityTokenRequest{}, err
		}
		pw, _, err := d.ReadByteString()
		if err != nil {
			return session.IdentityTokenRequest{}, err
		}
		return session.IdentityTokenRequest{Kind: session.IdentityUserName, UserName: name, Password: pw}, nil
	case session.IdentityIssued:
		tok, _, err := d.ReadString()
		if err != nil {
			return session.IdentityTokenRequest{}, err
		}
		return session.IdentityTokenRequest{Kind: session.IdentityIssued, JWT: tok}, nil
	case session.IdentityX509:
		cert, _, err := d.ReadByteString()
		if err != nil {
			return session.IdentityTokenRequest{}, err
		}
		return session.IdentityTokenRequest{Kind: session.IdentityX509, X509Cert: cert}, nil
	default:
		return session.IdentityTokenRequest{}, fmt.Errorf("server: unknown identity token kind %d", kind)
	}
}

func encodeActivateSessionResult(e *ua.Encoder, r ActivateSessionResult) {
	e.WriteByteString(r.ServerNonce, r.ServerNonce != nil)
	e.WriteInt32(0) // no per-token diagnostic results modeled
}

func decodeCreateSubscriptionArgs(d *ua.Decoder) (CreateSubscriptionArgs, error) {
	intervalMs, err := d.ReadDouble()
	if err != nil {
		return CreateSubscriptionArgs{}, err
	}
	lifetime, err := d.ReadUInt32()
	if err != nil {
		return CreateSubscriptionArgs{}, err
	}
	keepAlive, err := d.ReadUInt32()
	if err != nil {
		return CreateSubscriptionArgs{}, err
	}
	maxNotif, err := d.ReadUInt32()
	if err != nil {
		return CreateSubscriptionArgs{}, err
	}
	enabled, err := d.ReadBoolean()
	if err != nil {
		return CreateSubscriptionArgs{}, err
	}
	if _, err := d.ReadByte(); err != nil { // Priority
		return CreateSubscriptionArgs{}, err
	}
	return CreateSubscriptionArgs{
		RequestedPublishingInterval: time.Duration(intervalMs) * time.Millisecond,
		RequestedMaxKeepAliveCount:  keepAlive,
		RequestedLifetimeCount:      lifetime,
		MaxNotificationsPerPublish:  maxNotif,
		PublishingEnabled:           enabled,
	}, nil
}

func encodeCreateSubscriptionResult(e *ua.Encoder, r CreateSubscriptionResult) {
	e.WriteUInt32(r.SubscriptionID)
	e.WriteDouble(float64(r.RevisedPublishingInterval / time.Millisecond))
	e.WriteUInt32(0) // RevisedLifetimeCount, always written as 0
	e.WriteUInt32(0) // RevisedMaxKeepAliveCount, always written as 0
}

func decodePublishArgs(d *ua.Decoder) (PublishArgs, error) {
	count, err := d.ReadInt32()
	if err != nil {
		return PublishArgs{}, err
	}
	acks := make([]SubscriptionAcknowledgement, 0, max32(count))
	for i := int32(0); i < count; i++ {
		subID, err := d.ReadUInt32()
		if err != nil {
			return PublishArgs{}, err
		}
		sn, err := d.ReadUInt32()
		if err != nil {
			return PublishArgs{}, err
		}
		acks = append(acks, SubscriptionAcknowledgement{SubscriptionID: subID, SequenceNumber: sn})
	}
	return PublishArgs{SubscriptionAcknowledgements: acks}, nil
}

func max32(n int32) int32 {
	if n < 0 {
		return 0
	}
	return n
}

func decodeReadArgs(ident func() session.Identity) func(d *ua.Decoder) (ReadArgs, error) {
	return func(d *ua.Decoder) (ReadArgs, error) {
		if _, err := d.ReadDouble(); err != nil { // MaxAge
			return ReadArgs{}, err
		}
		if _, err := d.ReadUInt32(); err != nil { // TimestampsToReturn
			return ReadArgs{}, err
		}
		count, err := d.ReadInt32()
		if err != nil {
			return ReadArgs{}, err
		}
		if count <= 0 {
			return ReadArgs{}, fmt.Errorf("server: ReadRequest with no NodesToRead")
		}
		nodeID, err := d.ReadNodeId()
		if err != nil {
			return ReadArgs{}, err
		}
		attr, err := d.ReadUInt32()
		if err != nil {
			return ReadArgs{}, err
		}
		return ReadArgs{Identity: ident(), NodeID: nodeID, AttrID: nodestore.AttributeID(attr)}, nil
	}
}

func encodeReadResult(e *ua.Encoder, r ReadResult) error {
	return e.WriteDataValue(r.Value)
}

func decodeWriteArgs(ident func() session.Identity) func(d *ua.Decoder) (WriteArgs, error) {
	return func(d *ua.Decoder) (WriteArgs, error) {
		count, err := d.ReadInt32()
		if err != nil {
			return WriteArgs{}, err
		}
		if count <= 0 {
			return WriteArgs{}, fmt.Errorf("server: WriteRequest with no NodesToWrite")
		}
		nodeID, err := d.ReadNodeId()
		if err != nil {
			return WriteArgs{}, err
		}
		attr, err := d.ReadUInt32()
		if err != nil {
			return WriteArgs{}, err
		}
		if _, _, err := d.ReadString(); err != nil { // IndexRange
			return WriteArgs{}, err
		}
		dv, err := d.ReadDataValue()
		if err != nil {
			return WriteArgs{}, err
		}
		return WriteArgs{Identity: ident(), NodeID: nodeID, AttrID: nodestore.AttributeID(attr), Value: dv}, nil
	}
}

func encodeWriteResult(e *ua.Encoder, r WriteResult) {
	e.WriteInt32(1)
	e.WriteUInt32(uint32(r.StatusCode))
}

func encodePublishResult(e *ua.Encoder, r PublishResult) {
	e.WriteUInt32(r.SubscriptionID)
	e.WriteInt32(0) // AvailableSequenceNumbers, not tracked on this path
	e.WriteBoolean(false)
	e.WriteUInt32(r.Notification.SequenceNumber)
	e.WriteDateTime(r.Notification.PublishTime)
	e.WriteInt32(int32(len(r.Notification.DataChanges)))
	for _, dc := range r.Notification.DataChanges {
		e.WriteUInt32(dc.ClientHandle)
		e.WriteInt32(int32(len(dc.Values)))
		for _, v := range dc.Values {
			_ = e.WriteDataValue(v)
		}
	}
}
