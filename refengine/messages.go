package refengine

import "crypto/rand"

// helloMessage is this engine's simplified stand-in for ClientHello /
// ServerHello: an ephemeral X25519 public key plus a random nonce, with no
// extensions, cipher suite list or certificate material: negotiation is
// out of scope here, both sides are pinned to TLS_AES_128_GCM_SHA256 at
// construction.
type helloMessage struct {
	pubKey [32]byte
	random [32]byte
}

func newHelloMessage(pubKey [32]byte) (helloMessage, error) {
	h := helloMessage{pubKey: pubKey}
	if _, err := rand.Read(h.random[:]); err != nil {
		return helloMessage{}, err
	}
	return h, nil
}

func (h helloMessage) bytes() []byte {
	b := make([]byte, 64)
	copy(b[:32], h.pubKey[:])
	copy(b[32:], h.random[:])
	return b
}

func helloFromBytes(b []byte) (helloMessage, error) {
	var h helloMessage
	if len(b) != 64 {
		return h, errShortMessage
	}
	copy(h.pubKey[:], b[:32])
	copy(h.random[:], b[32:])
	return h, nil
}
