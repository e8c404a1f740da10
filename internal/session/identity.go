// Package session implements CreateSession/ActivateSession/CloseSession,
// identity token validation, role resolution, and the session-transfer
// path that lets a client resume a Session on a new SecureChannel after a
// reconnect.
package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/opcua-go/uacore/internal/ua"
)

// IdentityKind discriminates the identity token union carried by
// ActivateSession: the identity token proves who is activating the
// session, independent of which channel it arrives on.
type IdentityKind int

const (
	IdentityAnonymous IdentityKind = iota
	IdentityUserName
	IdentityX509
	IdentityIssued
)

// Identity is the resolved result of validating an incoming identity
// token: who the caller is and which roles they hold.
type Identity struct {
	Kind     IdentityKind
	UserName string
	Subject  string
	Roles    []Role
}

// Role is a coarse permission grant resolved from an identity, mirroring
// the reference stack's role-based access control model (Part 18).
type Role string

const (
	RoleAnonymous     Role = "Anonymous"
	RoleAuthenticated Role = "AuthenticatedUser"
	RoleOperator      Role = "Operator"
	RoleEngineer      Role = "Engineer"
)

// IdentityTokenRequest is the decoded union sent in ActivateSessionRequest.
type IdentityTokenRequest struct {
	Kind     IdentityKind
	UserName string
	Password []byte
	JWT      string
	X509Cert []byte
}

// Validator resolves an IdentityTokenRequest to an Identity, or returns an
// error status code (BadIdentityTokenInvalid/BadIdentityTokenRejected)
// describing why it could not.
type Validator struct {
	// userStore maps a username to its expected password and roles; in a
	// production deployment this would be backed by an external identity
	// provider, not an in-memory map.
	userStore map[string]userRecord
	jwtSecret []byte
}

type userRecord struct {
	password string
	roles    []Role
}

// NewValidator constructs a Validator with an empty user store and the
// given JWT signing secret, used to verify issued identity tokens.
func NewValidator(jwtSecret []byte) *Validator {
	return &Validator{userStore: make(map[string]userRecord), jwtSecret: jwtSecret}
}

// AddUser registers a username/password credential with the given roles.
func (v *Validator) AddUser(name, password string, roles ...Role) {
	v.userStore[name] = userRecord{password: password, roles: roles}
}

// Validate resolves req to an Identity.
func (v *Validator) Validate(req IdentityTokenRequest) (Identity, error) {
	switch req.Kind {
	case IdentityAnonymous:
		return Identity{Kind: IdentityAnonymous, Roles: []Role{RoleAnonymous}}, nil

	case IdentityUserName:
		rec, ok := v.userStore[req.UserName]
		if !ok || rec.password != string(req.Password) {
			return Identity{}, ua.BadIdentityTokenRejected
		}
		roles := append([]Role{RoleAuthenticated}, rec.roles...)
		return Identity{Kind: IdentityUserName, UserName: req.UserName, Roles: roles}, nil

	case IdentityIssued:
		claims, err := v.verifyJWT(req.JWT)
		if err != nil {
			return Identity{}, ua.BadIdentityTokenRejected
		}
		return Identity{
			Kind:    IdentityIssued,
			Subject: claims.Subject,
			Roles:   rolesFromClaims(claims),
		}, nil

	case IdentityX509:
		if len(req.X509Cert) == 0 {
			return Identity{}, ua.BadIdentityTokenInvalid
		}
		// The certificate is not validated: any non-empty certificate is
		// accepted as an authenticated identity.
		return Identity{Kind: IdentityX509, Roles: []Role{RoleAuthenticated}}, nil

	default:
		return Identity{}, ua.BadIdentityTokenInvalid
	}
}

// opcuaClaims extends jwt.RegisteredClaims with an OPC UA role list, the
// shape issued by an external identity provider.
type opcuaClaims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

func (v *Validator) verifyJWT(tokenStr string) (opcuaClaims, error) {
	var claims opcuaClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("session: unexpected JWT signing method %v", t.Header["alg"])
		}
		return v.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return opcuaClaims{}, err
	}
	if !token.Valid {
		return opcuaClaims{}, fmt.Errorf("session: token failed validation")
	}
	return claims, nil
}

func rolesFromClaims(c opcuaClaims) []Role {
	out := make([]Role, 0, len(c.Roles)+1)
	out = append(out, RoleAuthenticated)
	for _, r := range c.Roles {
		out = append(out, Role(r))
	}
	return out
}

// IssueJWT is a test/bootstrap helper that mints a signed identity token.
func (v *Validator) IssueJWT(subject string, roles []string, ttl time.Duration) (string, error) {
	claims := opcuaClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.jwtSecret)
}
