package securechannel

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"hash"
)

// SecurityPolicy implements the signing/encryption algorithm suite named
// by a policy URI. None signs and encrypts nothing; the Basic256Sha256
// and Aes128/256 families below perform real symmetric encryption and
// HMAC signing once keys have been derived via DeriveKeys, matching the
// reference stack's plugins/securityPolicies/*.c structure (one file per
// policy, dispatched through a common vtable-like interface). No example
// repo in the pack implements a security-policy abstraction, so this is
// grounded on open62541's policy plugin shape rather than a Go library;
// the cryptographic primitives themselves are stdlib crypto/*, which is
// the idiomatic choice the wider Go ecosystem (including gopcua/opcua,
// sampled in other_examples/) also reaches for.
type SecurityPolicy interface {
	URI() string
	// SymmetricKeyLength is the symmetric encryption key length in bytes.
	SymmetricKeyLength() int
	// SignatureLength is the length in bytes of a symmetric signature.
	SignatureLength() int
	// DeriveKeys runs P_HASH over the given secret/seed pair to produce a
	// signing key, an encryption key, and an initialization vector.
	DeriveKeys(secret, seed []byte) (signKey, encKey, iv []byte, err error)
	// Sign computes the symmetric signature (HMAC) of data.
	Sign(signKey, data []byte) ([]byte, error)
	// VerifySign checks a received signature.
	VerifySign(signKey, data, sig []byte) error
	// Encrypt/Decrypt operate in the policy's symmetric block cipher mode.
	Encrypt(encKey, iv, plaintext []byte) ([]byte, error)
	Decrypt(encKey, iv, ciphertext []byte) ([]byte, error)
}

// URI constants identifying each supported security policy.
const (
	PolicyNone              = "http://opcfoundation.org/UA/SecurityPolicy#None"
	PolicyBasic256Sha256     = "http://opcfoundation.org/UA/SecurityPolicy#Basic256Sha256"
	PolicyAes128Sha256RsaOaep = "http://opcfoundation.org/UA/SecurityPolicy#Aes128_Sha256_RsaOaep"
	PolicyAes256Sha256RsaPss  = "http://opcfoundation.org/UA/SecurityPolicy#Aes256_Sha256_RsaPss"
)

// nonePolicy implements SecurityPolicy with every operation a no-op,
// used when a channel is opened with MessageSecurityModeNone.
type nonePolicy struct{}

func NewNonePolicy() SecurityPolicy { return nonePolicy{} }

func (nonePolicy) URI() string               { return PolicyNone }
func (nonePolicy) SymmetricKeyLength() int   { return 0 }
func (nonePolicy) SignatureLength() int      { return 0 }
func (nonePolicy) DeriveKeys(secret, seed []byte) ([]byte, []byte, []byte, error) {
	return nil, nil, nil, nil
}
func (nonePolicy) Sign(signKey, data []byte) ([]byte, error) { return nil, nil }
func (nonePolicy) VerifySign(signKey, data, sig []byte) error { return nil }
func (nonePolicy) Encrypt(encKey, iv, plaintext []byte) ([]byte, error) { return plaintext, nil }
func (nonePolicy) Decrypt(encKey, iv, ciphertext []byte) ([]byte, error) { return ciphertext, nil }

// aesSha256Policy implements the Basic256Sha256 / Aes128-Sha256-RsaOaep /
// Aes256-Sha256-RsaPss family: they share HMAC-SHA256 signing and P_HASH
// key derivation, differing only in AES key length and the asymmetric
// padding scheme used during the OPN handshake (not modeled here; this
// package applies no asymmetric encryption or signing to the OPN
// exchange).
type aesSha256Policy struct {
	uri       string
	keyLength int
}

func NewBasic256Sha256() SecurityPolicy {
	return aesSha256Policy{uri: PolicyBasic256Sha256, keyLength: 32}
}

func NewAes128Sha256RsaOaep() SecurityPolicy {
	return aesSha256Policy{uri: PolicyAes128Sha256RsaOaep, keyLength: 16}
}

func NewAes256Sha256RsaPss() SecurityPolicy {
	return aesSha256Policy{uri: PolicyAes256Sha256RsaPss, keyLength: 32}
}

func (p aesSha256Policy) URI() string             { return p.uri }
func (p aesSha256Policy) SymmetricKeyLength() int { return p.keyLength }
func (p aesSha256Policy) SignatureLength() int    { return sha256.Size }

func (p aesSha256Policy) DeriveKeys(secret, seed []byte) (signKey, encKey, iv []byte, err error) {
	total := sha256.Size + p.keyLength + aes.BlockSize
	material, err := pHash(sha256.New, secret, seed, total)
	if err != nil {
		return nil, nil, nil, err
	}
	signKey = material[:sha256.Size]
	encKey = material[sha256.Size : sha256.Size+p.keyLength]
	iv = material[sha256.Size+p.keyLength:]
	return signKey, encKey, iv, nil
}

func (p aesSha256Policy) Sign(signKey, data []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, signKey)
	mac.Write(data)
	return mac.Sum(nil), nil
}

func (p aesSha256Policy) VerifySign(signKey, data, sig []byte) error {
	expected, _ := p.Sign(signKey, data)
	if !hmac.Equal(expected, sig) {
		return fmt.Errorf("securechannel: signature verification failed")
	}
	return nil
}

func (p aesSha256Policy) Encrypt(encKey, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	if len(plaintext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("securechannel: plaintext not a multiple of the AES block size")
	}
	out := make([]byte, len(plaintext))
	cbc := cipher.NewCBCEncrypter(block, iv)
	cbc.CryptBlocks(out, plaintext)
	return out, nil
}

func (p aesSha256Policy) Decrypt(encKey, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("securechannel: ciphertext not a multiple of the AES block size")
	}
	out := make([]byte, len(ciphertext))
	cbc := cipher.NewCBCDecrypter(block, iv)
	cbc.CryptBlocks(out, ciphertext)
	return out, nil
}

// pHash implements the TLS-derived P_HASH key expansion function used for
// symmetric key derivation: keys are derived using the P_SHA256 function
// as defined in RFC 2246, repeated HMAC application over a rolling A(i)
// value until enough output bytes have been produced.
func pHash(newHash func() hash.Hash, secret, seed []byte, length int) ([]byte, error) {
	out := make([]byte, 0, length)
	a := seed
	for len(out) < length {
		mac := hmac.New(newHash, secret)
		mac.Write(a)
		a = mac.Sum(nil)

		mac = hmac.New(newHash, secret)
		mac.Write(a)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)
	}
	return out[:length], nil
}

// GenerateNonce produces a cryptographically random nonce of the given
// length, used for client/server nonces exchanged during OPN and
// ActivateSession.
func GenerateNonce(length int) ([]byte, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("securechannel: generating nonce: %w", err)
	}
	return b, nil
}

// rsaOaepDecrypt and rsaPssSign wrap the RSA-OAEP decryption and RSA-PSS
// signing primitives of this policy family, one entry point per padding
// scheme. Nothing in this package calls them.
func rsaOaepDecrypt(priv *rsa.PrivateKey, ciphertext []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
}

func rsaPssSign(priv *rsa.PrivateKey, digest []byte) ([]byte, error) {
	return rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest, nil)
}
