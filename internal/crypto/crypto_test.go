package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestECDSAVerifier(t *testing.T) {
	key, err := NewPrivateKey()
	require.NoError(t, err)
	other, err := NewPrivateKey()
	require.NoError(t, err)

	msg := []byte("message to be signed")
	sig := Sign(key, msg)

	v := ECDSAVerifier{}
	require.True(t, v.Verify(Address(key), msg, sig))
	require.False(t, v.Verify(Address(other), msg, sig))
	require.False(t, v.Verify(Address(key), []byte("another message"), sig))
	require.False(t, v.Verify(Address(key), msg, []byte{0x30, 0x01}))
	require.False(t, v.Verify([]byte{1, 2, 3}, msg, sig))
}

func TestCachedVerifier(t *testing.T) {
	calls := 0
	next := VerifierFunc(func(address, message, signature []byte) bool {
		calls++
		return string(signature) == "ok"
	})
	v, err := NewCachedVerifier(next, 2)
	require.NoError(t, err)

	require.True(t, v.Verify([]byte("a"), []byte("m"), []byte("ok")))
	require.True(t, v.Verify([]byte("a"), []byte("m"), []byte("ok")))
	require.Equal(t, 1, calls)
	require.Equal(t, 1, v.Len())

	require.False(t, v.Verify([]byte("a"), []byte("m"), []byte("bad")))
	require.False(t, v.Verify([]byte("a"), []byte("m"), []byte("bad")))
	require.Equal(t, 3, calls, "failures are never cached")
	require.Equal(t, 1, v.Len())

	require.True(t, v.Verify([]byte("b"), []byte("m"), []byte("ok")))
	require.True(t, v.Verify([]byte("c"), []byte("m"), []byte("ok")))
	require.Equal(t, 2, v.Len())

	_, err = NewCachedVerifier(next, 0)
	require.Error(t, err)
}

func TestCacheKeyBoundaries(t *testing.T) {
	keys := map[string]struct{}{
		cacheKey([]byte("ab"), []byte("c"), nil):        {},
		cacheKey([]byte("a"), []byte("bc"), nil):        {},
		cacheKey(nil, []byte("abc"), nil):               {},
		cacheKey([]byte("a"), []byte("b"), []byte("c")): {},
		cacheKey([]byte("a"), nil, []byte("bc")):        {},
	}
	require.Len(t, keys, 5)
}
