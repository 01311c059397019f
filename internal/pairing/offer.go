package pairing

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ConnectionOffer identifies the daemon and its relay endpoint to a client
// pairing for the first time.
type ConnectionOffer struct {
	ServerID        string `json:"serverId"`
	DaemonPublicKey string `json:"daemonPublicKey"`
	RelayEndpoint   string `json:"relayEndpoint"`
}

// NewOffer builds a ConnectionOffer from the daemon's minted identity.
func NewOffer(serverID string, publicKey []byte, relayEndpoint string) ConnectionOffer {
	return ConnectionOffer{
		ServerID:        serverID,
		DaemonPublicKey: base64.StdEncoding.EncodeToString(publicKey),
		RelayEndpoint:   relayEndpoint,
	}
}

// EncodeURL renders the offer as "<appBaseUrl>#offer=<base64url(json)>".
func (o ConnectionOffer) EncodeURL(appBaseURL string) (string, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("marshaling connection offer: %w", err)
	}
	return fmt.Sprintf("%s#offer=%s", appBaseURL, base64.RawURLEncoding.EncodeToString(data)), nil
}

// DecodeOfferFragment parses the base64url(json) fragment value produced by
// EncodeURL back into a ConnectionOffer, the inverse used by clients (and by
// this package's round-trip tests).
func DecodeOfferFragment(fragment string) (ConnectionOffer, error) {
	data, err := base64.RawURLEncoding.DecodeString(fragment)
	if err != nil {
		return ConnectionOffer{}, fmt.Errorf("decoding offer fragment: %w", err)
	}
	var offer ConnectionOffer
	if err := json.Unmarshal(data, &offer); err != nil {
		return ConnectionOffer{}, fmt.Errorf("unmarshaling connection offer: %w", err)
	}
	return offer, nil
}
