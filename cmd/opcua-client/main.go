// Command opcua-client is a minimal OPC UA client exercising the
// SecureChannel/Session/Subscription stack end to end: it opens a
// channel, creates and activates a session, creates a subscription, and
// prints every DataChangeNotification it receives until interrupted.
// Grounded on open62541's examples/client_subscription_eventloop.c for
// the connect -> create session -> activate -> subscribe -> publish-loop
// shape, reimplemented against this module's own wire types.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/opcua-go/uacore/internal/securechannel"
	"github.com/opcua-go/uacore/internal/transport"
	"github.com/opcua-go/uacore/internal/ua"
)

var (
	typeCreateSessionRequest      = ua.NewNumericNodeId(0, 461)
	typeActivateSessionRequest    = ua.NewNumericNodeId(0, 467)
	typeCreateSubscriptionRequest = ua.NewNumericNodeId(0, 787)
	typePublishRequest            = ua.NewNumericNodeId(0, 826)
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4840", "opc.tcp server address")
	endpoint := flag.String("endpoint", "opc.tcp://127.0.0.1:4840", "endpoint URL announced in HEL")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := run(ctx, *addr, *endpoint); err != nil {
		fmt.Fprintln(os.Stderr, "opcua-client:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, endpoint string) error {
	conn, err := transport.DialTCP(ctx, addr, transport.DefaultLimits())
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	ch := securechannel.NewChannel(conn, zerolog.Nop())
	if err := ch.SendHello(ctx, securechannel.DefaultClientLimits(), endpoint); err != nil {
		return fmt.Errorf("HEL: %w", err)
	}
	if err := ch.ReadAck(ctx); err != nil {
		return fmt.Errorf("ACK: %w", err)
	}
	fmt.Println("channel negotiated")

	nonce := make([]byte, 32)
	if _, err := ch.OpenChannel(ctx, securechannel.PolicyNone, nonce, time.Hour); err != nil {
		return fmt.Errorf("OPN: %w", err)
	}
	fmt.Println("secure channel opened")

	sessionID, authToken, err := createSession(ctx, ch)
	if err != nil {
		return fmt.Errorf("CreateSession: %w", err)
	}
	fmt.Println("session created:", sessionID.String())

	if err := activateSession(ctx, ch, authToken); err != nil {
		return fmt.Errorf("ActivateSession: %w", err)
	}
	fmt.Println("session activated")

	subID, interval, err := createSubscription(ctx, ch, authToken, 500*time.Millisecond)
	if err != nil {
		return fmt.Errorf("CreateSubscription: %w", err)
	}
	fmt.Printf("subscription %d created, publishing interval %s\n", subID, interval)

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := publishOnce(ctx, ch, authToken); err != nil {
			return fmt.Errorf("Publish: %w", err)
		}
	}
}

func createSession(ctx context.Context, ch *securechannel.Channel) (ua.NodeId, ua.NodeId, error) {
	e := ua.NewEncoder(256)
	writeRequestEnvelope(e, typeCreateSessionRequest, ua.NodeId{})
	e.WriteString("urn:opcua-go:client", true) // ApplicationUri
	e.WriteString("", true)                    // ProductUri
	e.WriteLocalizedText(ua.LocalizedText{HasText: true, Text: "opcua-go client"})
	e.WriteUInt32(1) // ApplicationType: Client
	e.WriteString("", true)
	e.WriteString("", true)
	e.WriteInt32(-1)           // DiscoveryUrls: null array
	e.WriteString("", true)    // ServerUri
	e.WriteString("", true)    // EndpointUrl
	e.WriteString("opcua-go-client-session", true) // SessionName
	e.WriteByteString(nil, false)                  // ClientNonce
	e.WriteByteString(nil, false)                  // ClientCertificate
	e.WriteDouble(float64(60 * time.Second / time.Millisecond))

	if err := ch.SendMessage(ctx, 1, e.Bytes()); err != nil {
		return ua.NodeId{}, ua.NodeId{}, err
	}
	_, payload, err := ch.ReceiveMessage(ctx)
	if err != nil {
		return ua.NodeId{}, ua.NodeId{}, err
	}
	d, err := readResponseEnvelope(payload)
	if err != nil {
		return ua.NodeId{}, ua.NodeId{}, err
	}
	sessionID, err := d.ReadNodeId()
	if err != nil {
		return ua.NodeId{}, ua.NodeId{}, err
	}
	authToken, err := d.ReadNodeId()
	if err != nil {
		return ua.NodeId{}, ua.NodeId{}, err
	}
	return sessionID, authToken, nil
}

func activateSession(ctx context.Context, ch *securechannel.Channel, authToken ua.NodeId) error {
	e := ua.NewEncoder(64)
	writeRequestEnvelope(e, typeActivateSessionRequest, authToken)
	e.WriteByte(0) // IdentityKind: Anonymous

	if err := ch.SendMessage(ctx, 2, e.Bytes()); err != nil {
		return err
	}
	_, payload, err := ch.ReceiveMessage(ctx)
	if err != nil {
		return err
	}
	_, err = readResponseEnvelope(payload)
	return err
}

func createSubscription(ctx context.Context, ch *securechannel.Channel, authToken ua.NodeId, interval time.Duration) (uint32, time.Duration, error) {
	e := ua.NewEncoder(64)
	writeRequestEnvelope(e, typeCreateSubscriptionRequest, authToken)
	e.WriteDouble(float64(interval / time.Millisecond))
	e.WriteUInt32(10000) // RequestedLifetimeCount
	e.WriteUInt32(10)    // RequestedMaxKeepAliveCount
	e.WriteUInt32(1000)  // MaxNotificationsPerPublish
	e.WriteBoolean(true) // PublishingEnabled
	e.WriteByte(0)       // Priority

	if err := ch.SendMessage(ctx, 3, e.Bytes()); err != nil {
		return 0, 0, err
	}
	_, payload, err := ch.ReceiveMessage(ctx)
	if err != nil {
		return 0, 0, err
	}
	d, err := readResponseEnvelope(payload)
	if err != nil {
		return 0, 0, err
	}
	subID, err := d.ReadUInt32()
	if err != nil {
		return 0, 0, err
	}
	revisedMs, err := d.ReadDouble()
	if err != nil {
		return 0, 0, err
	}
	return subID, time.Duration(revisedMs) * time.Millisecond, nil
}

var nextPublishReqID uint32 = 4

func publishOnce(ctx context.Context, ch *securechannel.Channel, authToken ua.NodeId) error {
	e := ua.NewEncoder(32)
	writeRequestEnvelope(e, typePublishRequest, authToken)
	e.WriteInt32(-1) // SubscriptionAcknowledgements: none yet

	nextPublishReqID++
	if err := ch.SendMessage(ctx, nextPublishReqID, e.Bytes()); err != nil {
		return err
	}
	_, payload, err := ch.ReceiveMessage(ctx)
	if err != nil {
		return err
	}
	d, err := readResponseEnvelope(payload)
	if err != nil {
		return err
	}
	subID, err := d.ReadUInt32()
	if err != nil {
		return err
	}
	if _, err := d.ReadInt32(); err != nil { // AvailableSequenceNumbers: skip
		return err
	}
	if _, err := d.ReadBoolean(); err != nil { // MoreNotifications
		return err
	}
	sn, err := d.ReadUInt32()
	if err != nil {
		return err
	}
	publishTime, err := d.ReadDateTime()
	if err != nil {
		return err
	}
	count, err := d.ReadInt32()
	if err != nil {
		return err
	}
	for i := int32(0); i < count; i++ {
		handle, err := d.ReadUInt32()
		if err != nil {
			return err
		}
		valCount, err := d.ReadInt32()
		if err != nil {
			return err
		}
		for j := int32(0); j < valCount; j++ {
			dv, err := d.ReadDataValue()
			if err != nil {
				return err
			}
			fmt.Printf("subscription=%d seq=%d time=%s handle=%d value=%v\n", subID, sn, publishTime.Format(time.RFC3339), handle, dv.Value.Value)
		}
	}
	if count == 0 {
		fmt.Printf("subscription=%d keep-alive seq=%d\n", subID, sn)
	}
	return nil
}

// writeRequestEnvelope writes the ExpandedNodeId request-type id and the
// common RequestHeader every service request carries.
func writeRequestEnvelope(e *ua.Encoder, reqType ua.NodeId, authToken ua.NodeId) {
	e.WriteExpandedNodeId(ua.ExpandedNodeId{NodeId: reqType})
	e.WriteNodeId(authToken)
	e.WriteDateTime(time.Now())
	e.WriteUInt32(0) // RequestHandle
	e.WriteUInt32(0) // ReturnDiagnostics
	e.WriteString("", true)
	e.WriteUInt32(30000) // TimeoutHint ms
}

// readResponseEnvelope reads the ExpandedNodeId response-type id and
// common ResponseHeader, returning a Decoder positioned at the
// service-specific result body, or an error if ServiceResult was not Good.
func readResponseEnvelope(payload []byte) (*ua.Decoder, error) {
	d := ua.NewDecoder(payload)
	if _, err := d.ReadExpandedNodeId(); err != nil {
		return nil, err
	}
	if _, err := d.ReadDateTime(); err != nil { // Timestamp
		return nil, err
	}
	if _, err := d.ReadUInt32(); err != nil { // RequestHandle
		return nil, err
	}
	result, err := d.ReadUInt32() // ServiceResult
	if err != nil {
		return nil, err
	}
	if _, err := d.ReadByte(); err != nil { // diagnostics mask
		return nil, err
	}
	strCount, err := d.ReadInt32() // StringTable
	if err != nil {
		return nil, err
	}
	for i := int32(0); i < strCount; i++ {
		if _, _, err := d.ReadString(); err != nil {
			return nil, err
		}
	}
	if status := ua.StatusCode(result); !status.IsGood() {
		return nil, fmt.Errorf("service returned %s", status)
	}
	return d, nil
}
