// Package nodestore defines the external collaborator interfaces a
// server wires into dispatch/subscription (attribute access,
// certificate trust, access control, logging) plus a
// minimal in-memory NodeStore sufficient to exercise them in tests.
// Persistence and XML NodeSet loading are out of scope; this is the
// attribute table a dispatch Handler reads and writes, nothing more.
package nodestore

import (
	"context"

	"github.com/opcua-go/uacore/internal/session"
	"github.com/opcua-go/uacore/internal/ua"
)

// AttributeID identifies which attribute of a node is being read or
// written; only the subset dispatch/subscription exercise is listed.
type AttributeID uint32

const (
	AttributeNodeId     AttributeID = 1
	AttributeBrowseName AttributeID = 3
	AttributeValue      AttributeID = 13
	AttributeDataType   AttributeID = 14
)

// NodeStore is the attribute-level read/write surface a NodeStore
// implementation exposes to dispatch. Real servers back this with an
// address space; the in-memory Store below is a test double.
type NodeStore interface {
	Read(ctx context.Context, id ua.NodeId, attr AttributeID) (ua.DataValue, error)
	Write(ctx context.Context, id ua.NodeId, attr AttributeID, value ua.DataValue) error
}

// CertificateVerifier validates a client/server certificate against a
// trust list and revocation state at channel-open time.
type CertificateVerifier interface {
	Verify(ctx context.Context, der []byte) error
}

// AccessControl decides whether an authenticated identity may perform
// an operation against a node, layered on top of session.Role.
type AccessControl interface {
	AllowRead(ctx context.Context, ident session.Identity, id ua.NodeId, attr AttributeID) bool
	AllowWrite(ctx context.Context, ident session.Identity, id ua.NodeId, attr AttributeID) bool
}

// Logger is a minimal structured-logging surface, kept as an interface so
// nodestore has no zerolog dependency of its own. zerolog.Logger does not
// satisfy it directly: its Error and Info methods return *zerolog.Event.
type Logger interface {
	Error(msg string, err error, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
}
