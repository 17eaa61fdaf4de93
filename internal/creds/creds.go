package creds

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

// Keeper seals and opens account credential maps. Credentials live at rest
// only in sealed form; callers open them transiently around a posting call.
type Keeper struct {
	key [32]byte
}

// NewKeeper expects a base64-encoded 32-byte key.
func NewKeeper(encodedKey string) (*Keeper, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(raw))
	}
	k := &Keeper{}
	copy(k.key[:], raw)
	return k, nil
}

// GenerateKey returns a fresh base64-encoded key suitable for NewKeeper.
func GenerateKey() (string, error) {
	var raw [32]byte
	if _, err := io.ReadFull(rand.Reader, raw[:]); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw[:]), nil
}

// Seal encrypts the credential map. Unknown fields round-trip unchanged
// since the whole map is serialized as JSON.
func (k *Keeper) Seal(creds map[string]any) (string, error) {
	plain, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	var nonce [24]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &k.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (k *Keeper) Open(sealed string) (map[string]any, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decode sealed credentials: %w", err)
	}
	if len(raw) < 24 {
		return nil, fmt.Errorf("sealed credentials too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &k.key)
	if !ok {
		return nil, fmt.Errorf("open sealed credentials: authentication failed")
	}
	var creds map[string]any
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return creds, nil
}
