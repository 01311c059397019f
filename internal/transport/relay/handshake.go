package relay

import (
	"fmt"

	"github.com/flynn/noise"

	"github.com/getpaseo/paseod/internal/pairing"
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// respond runs the daemon's half of a Noise_NK handshake as responder: the
// client already knows the daemon's static public key (from the pairing
// offer) and has no static key of its own. read/write exchange exactly one
// handshake message each, matching the data socket's framing.
func respond(kp pairing.KeyPair, read func() ([]byte, error), write func([]byte) error) (send, recv *noise.CipherState, err error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeNK,
		Initiator:     false,
		StaticKeypair: noise.DHKey{Private: kp.Private, Public: kp.Public},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initializing handshake state: %w", err)
	}

	msg1, err := read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading handshake message 1: %w", err)
	}
	if _, _, _, err := hs.ReadMessage(nil, msg1); err != nil {
		return nil, nil, fmt.Errorf("processing handshake message 1: %w", err)
	}

	out, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("building handshake message 2: %w", err)
	}
	if err := write(out); err != nil {
		return nil, nil, fmt.Errorf("sending handshake message 2: %w", err)
	}
	if cs1 == nil || cs2 == nil {
		return nil, nil, fmt.Errorf("handshake did not complete after two messages")
	}
	// flynn/noise returns the same ordered pair to both roles from the
	// completing WriteMessage/ReadMessage call: cs1 carries
	// initiator-to-responder traffic and cs2 responder-to-initiator. The
	// responder therefore sends with cs2 and receives with cs1.
	return cs2, cs1, nil
}
