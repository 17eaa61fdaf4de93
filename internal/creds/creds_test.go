package creds

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeeper(t *testing.T) *Keeper {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)
	k, err := NewKeeper(key)
	require.NoError(t, err)
	return k
}

func TestSealOpenRoundTrip(t *testing.T) {
	k := testKeeper(t)

	in := map[string]any{
		"access_token":  "tok-123",
		"refresh_token": "ref-456",
		"extra_field":   "kept as-is",
		"numeric":       float64(7),
	}
	sealed, err := k.Seal(in)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "tok-123")

	out, err := k.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSealProducesDifferentCiphertexts(t *testing.T) {
	k := testKeeper(t)
	in := map[string]any{"access_token": "tok"}

	a, err := k.Seal(in)
	require.NoError(t, err)
	b, err := k.Seal(in)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonce must differ per seal")
}

func TestOpenRejectsTampering(t *testing.T) {
	k := testKeeper(t)
	sealed, err := k.Seal(map[string]any{"access_token": "tok"})
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = k.Open(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestOpenWithWrongKey(t *testing.T) {
	a := testKeeper(t)
	b := testKeeper(t)

	sealed, err := a.Seal(map[string]any{"access_token": "tok"})
	require.NoError(t, err)
	_, err = b.Open(sealed)
	assert.Error(t, err)
}

func TestNewKeeperValidation(t *testing.T) {
	_, err := NewKeeper("not base64 !!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = NewKeeper(short)
	assert.Error(t, err)
}

func TestOpenGarbage(t *testing.T) {
	k := testKeeper(t)
	_, err := k.Open("AAAA")
	assert.Error(t, err)
}
