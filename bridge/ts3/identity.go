// Package ts3 implements the TS3 voice-protocol connection actor: identity
// resolution, wire framing, UDP transport, and the single-task event loop
// that owns the connection object. No TS3 client library exists in the
// wider Go ecosystem at the fidelity this bridge needs, so this package is
// a first-party implementation wrapping the protocol in a dedicated local
// package.
package ts3

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Identity is the keypair a TS3 client authenticates with. The real TS3
// protocol uses an offline-signed Ed25519/ECDSA identity plus a "security
// level" proof-of-work counter; this captures its externally visible shape.
type Identity struct {
	PrivateKeyD string `json:"private_key_d"`
	PublicKeyX  string `json:"public_key_x"`
	PublicKeyY  string `json:"public_key_y"`
	KeyOffset   uint64 `json:"key_offset"`
}

// ResolveIdentity resolves an identity in order: explicit identity string,
// else JSON file, else generate and persist.
func ResolveIdentity(explicit string, filePath string) (Identity, error) {
	if explicit != "" {
		var id Identity
		if err := json.Unmarshal([]byte(explicit), &id); err != nil {
			return Identity{}, fmt.Errorf("parse explicit identity: %w", err)
		}
		return id, nil
	}

	if data, err := os.ReadFile(filePath); err == nil {
		var id Identity
		if err := json.Unmarshal(data, &id); err == nil {
			return id, nil
		}
	}

	id, err := generateIdentity()
	if err != nil {
		return Identity{}, fmt.Errorf("generate identity: %w", err)
	}
	if err := persistIdentity(filePath, id); err != nil {
		return Identity{}, fmt.Errorf("persist identity: %w", err)
	}
	return id, nil
}

func generateIdentity() (Identity, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		PrivateKeyD: key.D.Text(16),
		PublicKeyX:  key.PublicKey.X.Text(16),
		PublicKeyY:  key.PublicKey.Y.Text(16),
		KeyOffset:   0,
	}, nil
}

func persistIdentity(filePath string, id Identity) error {
	dir := filepath.Dir(filePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, data, 0o600)
}

// UniqueID derives the TS3 client unique identifier from the public key, the
// way the real protocol derives a base64 unique ID from the public key blob.
func (id Identity) UniqueID() string {
	sum := sha256.Sum256([]byte(id.PublicKeyX + ":" + id.PublicKeyY))
	return base64.StdEncoding.EncodeToString(sum[:])
}
