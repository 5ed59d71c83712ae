package crypto

import (
	"bytes"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Verifier checks that signature was produced over message by the owner
// of address. Implementations must be pure.
type Verifier interface {
	Verify(address, message, signature []byte) bool
}

// VerifierFunc adapts a plain function to the Verifier interface.
type VerifierFunc func(address, message, signature []byte) bool

func (f VerifierFunc) Verify(address, message, signature []byte) bool {
	return f(address, message, signature)
}

// ECDSAVerifier verifies DER encoded secp256k1 signatures over the double
// SHA-256 of the message. Addresses are serialized public keys.
type ECDSAVerifier struct{}

func (ECDSAVerifier) Verify(address, message, signature []byte) bool {
	pubKey, err := btcec.ParsePubKey(address)
	if err != nil {
		return false
	}
	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}
	return sig.Verify(chainhash.DoubleHashB(message), pubKey)
}

// CachedVerifier wraps a Verifier and remembers successful verifications.
// Failures are never cached.
type CachedVerifier struct {
	next  Verifier
	cache *lru.Cache[string, struct{}]
}

func NewCachedVerifier(next Verifier, size int) (*CachedVerifier, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &CachedVerifier{next: next, cache: cache}, nil
}

func (v *CachedVerifier) Verify(address, message, signature []byte) bool {
	key := cacheKey(address, message, signature)
	if v.cache.Contains(key) {
		return true
	}
	if !v.next.Verify(address, message, signature) {
		return false
	}
	v.cache.Add(key, struct{}{})
	return true
}

// cacheKey hashes the length prefixed triple.
func cacheKey(address, message, signature []byte) string {
	var buf bytes.Buffer
	for _, b := range [][]byte{address, message, signature} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(b)))
		buf.Write(n[:])
		buf.Write(b)
	}
	hash := chainhash.HashH(buf.Bytes())
	return string(hash[:])
}

// Len returns the number of cached verifications.
func (v *CachedVerifier) Len() int {
	return v.cache.Len()
}

// PrivateKey is a signing key; its compressed public key is the address.
type PrivateKey = btcec.PrivateKey

func NewPrivateKey() (*PrivateKey, error) {
	return btcec.NewPrivateKey()
}

// Address returns the address owned by key.
func Address(key *PrivateKey) []byte {
	return key.PubKey().SerializeCompressed()
}

// Sign produces a signature that ECDSAVerifier accepts for message.
func Sign(key *PrivateKey, message []byte) []byte {
	return ecdsa.Sign(key, chainhash.DoubleHashB(message)).Serialize()
}
