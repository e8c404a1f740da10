package nodestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-go/uacore/internal/session"
	"github.com/opcua-go/uacore/internal/ua"
)

func TestStoreReadMissingReturnsBadNodeIdUnknown(t *testing.T) {
	s := NewStore()
	_, err := s.Read(context.Background(), ua.NewNumericNodeId(1, 1), AttributeValue)
	assert.Equal(t, ua.BadNodeIdUnknown, err)
}

func TestStoreSeedAndRead(t *testing.T) {
	s := NewStore()
	id := ua.NewNumericNodeId(1, 42)
	dv := ua.DataValue{HasValue: true, Value: ua.Variant{Type: ua.TypeInt32, Value: int32(7)}}
	s.Seed(id, AttributeValue, dv)

	got, err := s.Read(context.Background(), id, AttributeValue)
	require.NoError(t, err)
	assert.Equal(t, int32(7), got.Value.Value)
}

func TestStoreWriteRejectsNonValueAttribute(t *testing.T) {
	s := NewStore()
	id := ua.NewNumericNodeId(1, 42)
	err := s.Write(context.Background(), id, AttributeBrowseName, ua.DataValue{})
	assert.Error(t, err)
}

func TestRoleAccessControl(t *testing.T) {
	ac := RoleAccessControl{}
	anon := session.Identity{Kind: session.IdentityAnonymous}
	op := session.Identity{Kind: session.IdentityUserName, Roles: []session.Role{session.RoleOperator}}

	assert.False(t, ac.AllowRead(context.Background(), anon, ua.NodeId{}, AttributeValue))
	assert.True(t, ac.AllowRead(context.Background(), op, ua.NodeId{}, AttributeValue))
	assert.False(t, ac.AllowWrite(context.Background(), anon, ua.NodeId{}, AttributeValue))
	assert.True(t, ac.AllowWrite(context.Background(), op, ua.NodeId{}, AttributeValue))
}
