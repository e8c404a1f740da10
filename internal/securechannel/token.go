package securechannel

import "time"

// TokenState tracks where a security token sits in its renew/expire
// lifecycle: a token is renewed at 75% of its lifetime and expires at
// 100%; the previous token remains valid for a grace period after
// renewal so in-flight chunks signed with it are not rejected.
type TokenState int

const (
	TokenActive TokenState = iota
	TokenRenewing
	TokenExpired
)

// Token is one negotiated security token: an id, the channel it belongs
// to, and the keys derived from the nonces exchanged when it was created.
type Token struct {
	ChannelID uint32
	TokenID   uint32
	CreatedAt time.Time
	Lifetime  time.Duration

	ClientSignKey, ClientEncKey, ClientIV []byte
	ServerSignKey, ServerEncKey, ServerIV []byte
}

// renewAt returns the instant this token should be proactively renewed,
// 75% of the way through its lifetime.
func (t Token) renewAt() time.Time {
	return t.CreatedAt.Add(t.Lifetime * 75 / 100)
}

// expireAt returns the instant this token must no longer be accepted.
func (t Token) expireAt() time.Time {
	return t.CreatedAt.Add(t.Lifetime)
}

func (t Token) State(now time.Time) TokenState {
	switch {
	case now.After(t.expireAt()):
		return TokenExpired
	case now.After(t.renewAt()):
		return TokenRenewing
	default:
		return TokenActive
	}
}

// TokenRing holds the currently active token and, for a short grace
// window after renewal, the previous one, so chunks that were already in
// flight when the new token took over still verify.
type TokenRing struct {
	current *Token
	prior   *Token
	// graceUntil bounds how long prior remains acceptable after a new
	// token replaces it.
	graceUntil time.Time
	graceSpan  time.Duration
}

// NewTokenRing starts a ring with grace bounding the window a just-replaced
// token continues to be accepted for.
func NewTokenRing(grace time.Duration) *TokenRing {
	return &TokenRing{graceSpan: grace}
}

// Install makes tok the current token, demoting any previous current
// token to prior with a fresh grace window.
func (r *TokenRing) Install(tok Token, now time.Time) {
	if r.current != nil {
		prior := *r.current
		r.prior = &prior
		r.graceUntil = now.Add(r.graceSpan)
	}
	cur := tok
	r.current = &cur
}

// Lookup returns the token matching id, if it is either the current token
// or a prior token still within its grace window.
func (r *TokenRing) Lookup(id uint32, now time.Time) (Token, bool) {
	if r.current != nil && r.current.TokenID == id {
		return *r.current, true
	}
	if r.prior != nil && r.prior.TokenID == id && now.Before(r.graceUntil) {
		return *r.prior, true
	}
	return Token{}, false
}

// Current returns the active token, if any has been installed yet.
func (r *TokenRing) Current() (Token, bool) {
	if r.current == nil {
		return Token{}, false
	}
	return *r.current, true
}
