package refengine

import (
	"crypto/hmac"

	"tlschannel/internal/util/hkdf"

	"golang.org/x/crypto/curve25519"

	"github.com/pkg/errors"
)

// deriveKeys runs once both hello messages are known: it computes the
// shared secret, derives a pair of directional traffic secrets via
// HKDF-Expand-Label (the same labels and construction as
// tlschannel/internal/util/hkdf, just skipping TLS 1.3's full
// early/handshake/master secret chain), and precomputes both finished
// tags so either side can verify the peer's Finished message.
func (e *Engine) deriveKeys() error {
	if e.keysDerived {
		return nil
	}
	if e.clientHelloMsg == nil || e.serverHelloMsg == nil {
		return nil
	}

	shared, err := curve25519.X25519(e.privKey[:], e.peerPub[:])
	if err != nil {
		return errors.Wrap(err, "computing ECDHE shared secret")
	}

	h := e.suite.Hash().New()
	h.Write(e.clientHelloMsg)
	h.Write(e.serverHelloMsg)
	transcriptHash := h.Sum(nil)

	secret, err := hkdf.Extract(e.suite, shared, nil)
	if err != nil {
		return errors.Wrap(err, "extracting handshake secret")
	}

	clientSecret, err := hkdf.DeriveSecret(e.suite, secret, "c traffic", transcriptHash)
	if err != nil {
		return errors.Wrap(err, "deriving client traffic secret")
	}
	serverSecret, err := hkdf.DeriveSecret(e.suite, secret, "s traffic", transcriptHash)
	if err != nil {
		return errors.Wrap(err, "deriving server traffic secret")
	}

	clientKey, err := hkdf.ExpandLabel(e.suite, clientSecret, "key", "", e.suite.AEAD().KeyLen)
	if err != nil {
		return errors.Wrap(err, "expanding client key")
	}
	serverKey, err := hkdf.ExpandLabel(e.suite, serverSecret, "key", "", e.suite.AEAD().KeyLen)
	if err != nil {
		return errors.Wrap(err, "expanding server key")
	}
	clientIV, err := hkdf.ExpandLabel(e.suite, clientSecret, "iv", "", nonceLen)
	if err != nil {
		return errors.Wrap(err, "expanding client iv")
	}
	serverIV, err := hkdf.ExpandLabel(e.suite, serverSecret, "iv", "", nonceLen)
	if err != nil {
		return errors.Wrap(err, "expanding server iv")
	}

	clientAEAD, err := e.suite.AEAD().New(clientKey)
	if err != nil {
		return errors.Wrap(err, "constructing client AEAD")
	}
	serverAEAD, err := e.suite.AEAD().New(serverKey)
	if err != nil {
		return errors.Wrap(err, "constructing server AEAD")
	}

	e.clientFinishedTag, err = finishedTag(e, clientSecret, transcriptHash)
	if err != nil {
		return errors.Wrap(err, "computing client finished tag")
	}
	e.serverFinishedTag, err = finishedTag(e, serverSecret, transcriptHash)
	if err != nil {
		return errors.Wrap(err, "computing server finished tag")
	}

	if e.role == RoleClient {
		e.writeAEAD, e.writeIV = clientAEAD, clientIV
		e.readAEAD, e.readIV = serverAEAD, serverIV
	} else {
		e.writeAEAD, e.writeIV = serverAEAD, serverIV
		e.readAEAD, e.readIV = clientAEAD, clientIV
	}

	e.keysDerived = true
	return nil
}

// finishedTag computes an HMAC (keyed by a label-derived finished key)
// over the handshake transcript hash, standing in for TLS 1.3's Finished
// verify-data without the full key schedule.
func finishedTag(e *Engine, directionSecret, transcriptHash []byte) ([]byte, error) {
	finishedKey, err := hkdf.ExpandLabel(e.suite, directionSecret, "finished", "", e.suite.Hash().Size())
	if err != nil {
		return nil, err
	}

	mac := hmac.New(e.suite.Hash().New, finishedKey)
	mac.Write(transcriptHash)
	return mac.Sum(nil), nil
}
