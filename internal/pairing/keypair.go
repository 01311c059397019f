// Package pairing implements C10: daemon keypair persistence, server-id
// minting, connection-offer encoding, and QR rendering for out-of-band
// pairing of remote clients to the relay transport.
package pairing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flynn/noise"
)

// KeyPair is the daemon's long-lived Curve25519 keypair used for the relay
// E2EE handshake.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// keyPairFile is the on-disk JSON shape, versioned so a future format
// change can detect and migrate older files.
type keyPairFile struct {
	V            int    `json:"v"`
	PublicKeyB64 string `json:"publicKeyB64"`
	SecretKeyB64 string `json:"secretKeyB64"`
}

const keyPairFileVersion = 2

// LoadOrCreateKeyPair reads the keypair at path, minting and persisting a
// fresh one (mode 0600) if none exists yet.
func LoadOrCreateKeyPair(path string) (KeyPair, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return decodeKeyPairFile(data)
	}
	if !os.IsNotExist(err) {
		return KeyPair{}, fmt.Errorf("reading keypair file: %w", err)
	}

	kp, err := generateKeyPair(nil)
	if err != nil {
		return KeyPair{}, err
	}
	if err := persistKeyPair(path, kp); err != nil {
		return KeyPair{}, err
	}
	return kp, nil
}

func generateKeyPair(rng io.Reader) (KeyPair, error) {
	dh := noise.DH25519
	key, err := dh.GenerateKeypair(rng)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating daemon keypair: %w", err)
	}
	return KeyPair{Private: key.Private, Public: key.Public}, nil
}

func persistKeyPair(path string, kp KeyPair) error {
	f := keyPairFile{
		V:            keyPairFileVersion,
		PublicKeyB64: base64.StdEncoding.EncodeToString(kp.Public),
		SecretKeyB64: base64.StdEncoding.EncodeToString(kp.Private),
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling keypair file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating keypair directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing keypair file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("installing keypair file: %w", err)
	}
	return nil
}

func decodeKeyPairFile(data []byte) (KeyPair, error) {
	var f keyPairFile
	if err := json.Unmarshal(data, &f); err != nil {
		return KeyPair{}, fmt.Errorf("decoding keypair file: %w", err)
	}
	pub, err := base64.StdEncoding.DecodeString(f.PublicKeyB64)
	if err != nil {
		return KeyPair{}, fmt.Errorf("decoding public key: %w", err)
	}
	priv, err := base64.StdEncoding.DecodeString(f.SecretKeyB64)
	if err != nil {
		return KeyPair{}, fmt.Errorf("decoding secret key: %w", err)
	}
	return KeyPair{Private: priv, Public: pub}, nil
}
