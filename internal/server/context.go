package server

import (
	"context"

	"github.com/opcua-go/uacore/internal/securechannel"
)

type ctxKey int

const (
	ctxKeyChannel ctxKey = iota
	ctxKeySessionID
	ctxKeyRequestID
)

func withChannel(ctx context.Context, ch *securechannel.Channel) context.Context {
	return context.WithValue(ctx, ctxKeyChannel, ch)
}

func channelFromContext(ctx context.Context) (*securechannel.Channel, bool) {
	ch, ok := ctx.Value(ctxKeyChannel).(*securechannel.Channel)
	return ch, ok
}

func withSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

func sessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeySessionID).(string)
	return id, ok
}

func withRequestID(ctx context.Context, id uint32) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFromContext(ctx context.Context) uint32 {
	id, _ := ctx.Value(ctxKeyRequestID).(uint32)
	return id
}
