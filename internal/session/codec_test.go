package session

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(GenerateKey())
	require.NoError(t, err)
	require.True(t, c.Enabled())
	return c
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	for _, id := range []string{NewID(), "x", strings.Repeat("é", 200)} {
		token := c.Encode(id)
		assert.NotEqual(t, id, token)
		got, ok := c.Open(token)
		assert.True(t, ok)
		assert.Equal(t, id, got)
		assert.Equal(t, id, c.Decode(token))
	}
}

func TestCodecTokensAreHeaderSafeAndRandomized(t *testing.T) {
	c := newTestCodec(t)
	id := NewID()
	a, b := c.Encode(id), c.Encode(id)
	assert.NotEqual(t, a, b)
	for _, tok := range []string{a, b} {
		assert.NotContains(t, tok, "+")
		assert.NotContains(t, tok, "/")
		assert.NotContains(t, tok, "=")
	}
}

func TestCodecPassThroughWithoutKey(t *testing.T) {
	c, err := NewCodec("")
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	id := NewID()
	assert.Equal(t, id, c.Encode(id))
	assert.Equal(t, id, c.Decode(id))
	got, ok := c.Open(id)
	assert.Equal(t, id, got)
	assert.False(t, ok)

	var nilCodec *Codec
	assert.Equal(t, "abc", nilCodec.Encode("abc"))
	assert.Equal(t, "abc", nilCodec.Decode("abc"))
}

func TestCodecEncodeEmptyIsIdentity(t *testing.T) {
	c := newTestCodec(t)
	assert.Equal(t, "", c.Encode(""))
	assert.Equal(t, "", c.Decode(""))
}

func TestCodecTamperedTokenReturnsInput(t *testing.T) {
	c := newTestCodec(t)
	token := c.Encode(NewID())

	raw, err := base64.RawURLEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(raw)

	got, ok := c.Open(tampered)
	assert.False(t, ok)
	assert.Equal(t, tampered, got)

	for _, foreign := range []string{"not-a-token", "%%%", "YQ", NewID()} {
		got, ok := c.Open(foreign)
		assert.False(t, ok)
		assert.Equal(t, foreign, got)
	}
}

func TestCodecRejectsTokensFromAnotherKey(t *testing.T) {
	a, b := newTestCodec(t), newTestCodec(t)
	token := a.Encode(NewID())
	got, ok := b.Open(token)
	assert.False(t, ok)
	assert.Equal(t, token, got)
}

func TestNewCodecRejectsBadKeys(t *testing.T) {
	_, err := NewCodec("short")
	assert.Error(t, err)

	_, err = NewCodec(base64.StdEncoding.EncodeToString([]byte("sixteen-byte-key")))
	assert.Error(t, err)

	c, err := NewCodec("!!not base64!!")
	require.Error(t, err)
	assert.False(t, c.Enabled(), "a bad key must leave a usable pass-through codec")
}

func TestNormalizeID(t *testing.T) {
	id := NewID()
	got, ok := NormalizeID(strings.ToUpper(id))
	assert.True(t, ok)
	assert.Equal(t, id, got)

	for _, bad := range []string{"", "abc", "12345678-1234-1234-1234-12345678901Z"} {
		_, ok := NormalizeID(bad)
		assert.False(t, ok, bad)
	}
}
