package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opcua-go/uacore/internal/ua"
)

func TestValidatorAnonymous(t *testing.T) {
	v := NewValidator([]byte("secret"))
	id, err := v.Validate(IdentityTokenRequest{Kind: IdentityAnonymous})
	require.NoError(t, err)
	assert.Equal(t, IdentityAnonymous, id.Kind)
	assert.Contains(t, id.Roles, RoleAnonymous)
}

func TestValidatorUserNameRejectsWrongPassword(t *testing.T) {
	v := NewValidator([]byte("secret"))
	v.AddUser("alice", "hunter2", RoleEngineer)

	_, err := v.Validate(IdentityTokenRequest{Kind: IdentityUserName, UserName: "alice", Password: []byte("wrong")})
	require.Error(t, err)

	id, err := v.Validate(IdentityTokenRequest{Kind: IdentityUserName, UserName: "alice", Password: []byte("hunter2")})
	require.NoError(t, err)
	assert.Contains(t, id.Roles, RoleEngineer)
}

func TestIssuedJWTRoundTrip(t *testing.T) {
	v := NewValidator([]byte("topsecret"))
	tok, err := v.IssueJWT("operator-42", []string{string(RoleOperator)}, time.Minute)
	require.NoError(t, err)

	id, err := v.Validate(IdentityTokenRequest{Kind: IdentityIssued, JWT: tok})
	require.NoError(t, err)
	assert.Equal(t, "operator-42", id.Subject)
	assert.Contains(t, id.Roles, RoleOperator)
}

func TestExpiredJWTRejected(t *testing.T) {
	v := NewValidator([]byte("topsecret"))
	tok, err := v.IssueJWT("bob", nil, -time.Minute)
	require.NoError(t, err)

	_, err = v.Validate(IdentityTokenRequest{Kind: IdentityIssued, JWT: tok})
	require.Error(t, err)
}

func TestSessionExpiryAndTouch(t *testing.T) {
	s := NewSession(ua.NewNumericNodeId(1, 1), ua.NewNumericNodeId(1, 2), nil, 50*time.Millisecond)
	assert.False(t, s.Expired(time.Now()))
	time.Sleep(80 * time.Millisecond)
	assert.True(t, s.Expired(time.Now()))
	s.Touch()
	assert.False(t, s.Expired(time.Now()))
}
