package refengine

import (
	"tlschannel/engine"
	tlsrecord "tlschannel/session/tls"
	"tlschannel/session/tls/common"

	"github.com/pkg/errors"
)

const nonceLen = 12

// maxAppDataPerRecord caps how much plaintext one Wrap call encrypts into
// a single record, matching the real TLS 1.3 fragment limit even though
// tlschannel's own MaxDataSize is a bit larger.
const maxAppDataPerRecord = tlsrecord.MaxRecordLen

func makeNonce(iv []byte, seq uint64) []byte {
	nonce := make([]byte, len(iv))
	copy(nonce, iv)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(seq >> (8 * i))
	}
	return nonce
}

func (e *Engine) wrapAppData(src, dst []byte) (engine.Result, error) {
	if !e.established || e.writeAEAD == nil {
		return engine.Result{}, errors.New("refengine: write requested before handshake established")
	}

	n := len(src)
	if n > maxAppDataPerRecord {
		n = maxAppDataPerRecord
	}
	plain := src[:n]

	inner := tlsrecord.InnerPlainText{Content: plain, ContentType: tlsrecord.TypeApplicationData}.Bytes()

	nonce := makeNonce(e.writeIV, e.writeSeq)
	e.writeSeq++

	ciphertextLen := len(inner) + e.writeAEAD.Overhead()
	header := tlsrecord.TLSText{
		ContentType:   tlsrecord.TypeApplicationData,
		RecordVersion: common.VersionTLS12,
		Fragment:      make([]byte, ciphertextLen),
	}.Header()

	ciphertext := e.writeAEAD.Seal(nil, nonce, inner, header)
	full := append(header, ciphertext...)
	produced := copy(dst, full)

	return engine.Result{
		Status:          engine.OK,
		HandshakeStatus: engine.NotHandshaking,
		BytesConsumed:   n,
		BytesProduced:   produced,
	}, nil
}

func (e *Engine) unwrapAppData(rec tlsrecord.TLSText, consumed int, dst []byte) (engine.Result, error) {
	if rec.ContentType != tlsrecord.TypeApplicationData {
		return engine.Result{}, errUnexpectedRecord
	}
	if !e.established || e.readAEAD == nil {
		return engine.Result{}, errors.New("refengine: read requested before handshake established")
	}

	// The content-type trailer and any zero padding only ever shrink the
	// recovered plaintext, so the ciphertext length alone is a safe upper
	// bound on len(inner.Content) — enough to detect overflow without
	// decrypting (and without burning a sequence number) first.
	maxContentLen := len(rec.Fragment) - e.readAEAD.Overhead() - 1
	if maxContentLen < 0 {
		return engine.Result{}, errors.New("refengine: application data record too short")
	}
	if len(dst) < maxContentLen {
		return engine.Result{Status: engine.BufferOverflow, HandshakeStatus: engine.NotHandshaking}, nil
	}

	nonce := makeNonce(e.readIV, e.readSeq)
	header := rec.Header()
	plainWithType, err := e.readAEAD.Open(nil, nonce, rec.Fragment, header)
	if err != nil {
		return engine.Result{}, errors.Wrap(err, "decrypting application data record")
	}
	e.readSeq++

	var inner tlsrecord.InnerPlainText
	if err := inner.FillFrom(plainWithType); err != nil {
		return engine.Result{}, err
	}

	produced := copy(dst, inner.Content)
	return engine.Result{
		Status:          engine.OK,
		HandshakeStatus: engine.NotHandshaking,
		BytesConsumed:   consumed,
		BytesProduced:   produced,
	}, nil
}

func (e *Engine) wrapCloseNotify(dst []byte) (engine.Result, error) {
	rec := tlsrecord.TLSText{
		ContentType:   tlsrecord.TypeAlert,
		RecordVersion: common.VersionTLS12,
		Fragment:      []byte{1, 0}, // level=warning, description=close_notify
	}
	marshaled := rec.Marshal()
	produced := copy(dst, marshaled)

	e.wantCloseNotify = false
	e.closed = true

	return engine.Result{
		Status:          engine.Closed,
		HandshakeStatus: engine.NotHandshaking,
		BytesProduced:   produced,
	}, nil
}
