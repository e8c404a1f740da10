package securechannel

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceGeneratorWrapsTo1(t *testing.T) {
	g := &SequenceGenerator{next: sequenceWrapThreshold}
	first := g.Next()
	assert.Equal(t, sequenceWrapThreshold, first)
	second := g.Next()
	assert.Equal(t, sequenceWrapTo, second)
}

func TestSequenceVerifierDetectsGap(t *testing.T) {
	v := NewSequenceVerifier(1)
	require.NoError(t, v.Verify(1))
	require.NoError(t, v.Verify(2))
	err := v.Verify(4)
	require.Error(t, err)
}

func TestSequenceVerifierHonorsWrap(t *testing.T) {
	v := NewSequenceVerifier(sequenceWrapThreshold)
	require.NoError(t, v.Verify(sequenceWrapThreshold))
	require.NoError(t, v.Verify(sequenceWrapTo))
}

func TestTokenRenewalThresholds(t *testing.T) {
	now := time.Now()
	tok := Token{CreatedAt: now, Lifetime: 1000 * time.Millisecond}
	assert.Equal(t, TokenActive, tok.State(now))
	assert.Equal(t, TokenRenewing, tok.State(now.Add(800*time.Millisecond)))
	assert.Equal(t, TokenExpired, tok.State(now.Add(1200*time.Millisecond)))
}

func TestTokenRingGraceWindow(t *testing.T) {
	r := NewTokenRing(50 * time.Millisecond)
	now := time.Now()
	t1 := Token{TokenID: 1, CreatedAt: now, Lifetime: time.Hour}
	r.Install(t1, now)

	t2 := Token{TokenID: 2, CreatedAt: now.Add(time.Second), Lifetime: time.Hour}
	r.Install(t2, now.Add(time.Second))

	_, ok := r.Lookup(1, now.Add(time.Second).Add(10*time.Millisecond))
	assert.True(t, ok, "prior token should still verify within grace window")

	_, ok = r.Lookup(1, now.Add(time.Second).Add(100*time.Millisecond))
	assert.False(t, ok, "prior token should be rejected after grace window elapses")

	cur, ok := r.Lookup(2, now.Add(time.Second))
	assert.True(t, ok)
	assert.Equal(t, uint32(2), cur.TokenID)
}

func TestPHashProducesRequestedLength(t *testing.T) {
	out, err := pHashTestHelper([]byte("secret"), []byte("seed"), 100)
	require.NoError(t, err)
	assert.Len(t, out, 100)
}

func pHashTestHelper(secret, seed []byte, n int) ([]byte, error) {
	return pHash(sha256.New, secret, seed, n)
}

func TestBasic256Sha256EncryptDecryptRoundTrip(t *testing.T) {
	p := NewBasic256Sha256()
	secret := []byte("client-nonce-0123456789012345678")
	seed := []byte("server-nonce-0123456789012345678")
	_, encKey, iv, err := p.DeriveKeys(secret, seed)
	require.NoError(t, err)

	plaintext := make([]byte, 32)
	copy(plaintext, []byte("hello opc ua secure channel!!"))

	ct, err := p.Encrypt(encKey, iv, plaintext)
	require.NoError(t, err)
	pt, err := p.Decrypt(encKey, iv, ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	p := NewBasic256Sha256()
	key := []byte("signing-key")
	data := []byte("chunk body bytes")
	sig, err := p.Sign(key, data)
	require.NoError(t, err)
	require.NoError(t, p.VerifySign(key, data, sig))
	require.Error(t, p.VerifySign(key, data, append(sig, 0x00)))
}
