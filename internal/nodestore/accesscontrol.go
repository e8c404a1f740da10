package nodestore

import (
	"context"

	"github.com/opcua-go/uacore/internal/session"
	"github.com/opcua-go/uacore/internal/ua"
)

// RoleAccessControl grants read to any authenticated identity and write
// to RoleOperator/RoleEngineer, mirroring the coarse role tiers defined
// alongside session.Identity rather than a per-node ACL table.
type RoleAccessControl struct{}

func (RoleAccessControl) AllowRead(ctx context.Context, ident session.Identity, id ua.NodeId, attr AttributeID) bool {
	for _, r := range ident.Roles {
		if r != session.RoleAnonymous {
			return true
		}
	}
	return false
}

func (RoleAccessControl) AllowWrite(ctx context.Context, ident session.Identity, id ua.NodeId, attr AttributeID) bool {
	for _, r := range ident.Roles {
		if r == session.RoleOperator || r == session.RoleEngineer {
			return true
		}
	}
	return false
}
