package session

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// tokenAD binds tokens to their purpose so other sealed values cannot be replayed as sessions.
var tokenAD = []byte("sauti/session/v1")

// Codec seals session identifiers into opaque header-safe tokens. A Codec
// built without a key is the identity transform.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a base64 encoded 32-byte key (the same shape
// as a Fernet key). An empty key yields a pass-through codec.
func NewCodec(key string) (*Codec, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return &Codec{}, nil
	}
	raw, err := decodeKey(key)
	if err != nil {
		return &Codec{}, err
	}
	aead, err := chacha20poly1305.NewX(raw)
	if err != nil {
		return &Codec{}, fmt.Errorf("session key: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// GenerateKey returns a fresh key in the format NewCodec accepts.
func GenerateKey() string {
	raw := make([]byte, chacha20poly1305.KeySize)
	_, _ = rand.Read(raw)
	return base64.URLEncoding.EncodeToString(raw)
}

func decodeKey(key string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.StdEncoding,
		base64.RawURLEncoding,
		base64.RawStdEncoding,
	} {
		raw, err := enc.DecodeString(key)
		if err != nil {
			continue
		}
		if len(raw) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("session key must decode to %d bytes, got %d", chacha20poly1305.KeySize, len(raw))
		}
		return raw, nil
	}
	return nil, fmt.Errorf("session key is not valid base64")
}

// Enabled reports whether a key is configured.
func (c *Codec) Enabled() bool {
	return c != nil && c.aead != nil
}

// Encode seals id. Empty ids and pass-through codecs return id unchanged.
func (c *Codec) Encode(id string) string {
	if !c.Enabled() || id == "" {
		return id
	}
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(id)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return id
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(id), tokenAD)
	return base64.RawURLEncoding.EncodeToString(sealed)
}

// Decode opens token and returns the session id inside it. Any failure
// returns token unchanged.
func (c *Codec) Decode(token string) string {
	id, _ := c.Open(token)
	return id
}

// Open is Decode that also reports whether token was authenticated by the
// configured key. Pass-through codecs never authenticate.
func (c *Codec) Open(token string) (string, bool) {
	if !c.Enabled() || token == "" {
		return token, false
	}
	sealed, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil || len(sealed) < c.aead.NonceSize()+c.aead.Overhead() {
		return token, false
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, ciphertext, tokenAD)
	if err != nil {
		return token, false
	}
	return string(plain), true
}
