package refengine

import (
	"tlschannel/engine"
	tlsrecord "tlschannel/session/tls"
	"tlschannel/session/tls/common"
)

// Wrap implements engine.Engine. During the handshake it produces exactly
// one handshake (or alert) record per call; once established it encrypts
// one application-data record from src.
func (e *Engine) Wrap(src, dst []byte) (engine.Result, error) {
	if e.wantCloseNotify {
		return e.wrapCloseNotify(dst)
	}

	if e.started && e.pos < len(e.order) && e.order[e.pos].dir == dirSend {
		return e.wrapHandshakeMessage(dst)
	}

	return e.wrapAppData(src, dst)
}

// Unwrap implements engine.Engine.
func (e *Engine) Unwrap(src, dst []byte) (engine.Result, error) {
	var rec tlsrecord.TLSText
	consumed, err := rec.Unmarshal(src)
	if err != nil {
		return engine.Result{}, err
	}
	if consumed == 0 {
		return engine.Result{Status: engine.BufferUnderflow, HandshakeStatus: e.HandshakeStatus()}, nil
	}

	if rec.ContentType == tlsrecord.TypeAlert {
		e.closed = true
		return engine.Result{
			Status:          engine.Closed,
			HandshakeStatus: engine.NotHandshaking,
			BytesConsumed:   consumed,
		}, nil
	}

	// A handshake record arriving while not already mid-handshake is the
	// peer starting a renegotiation; re-arm to receive it rather than
	// reject it as an unexpected record type.
	if rec.ContentType == tlsrecord.TypeHandshake && (!e.started || e.pos >= len(e.order)) {
		e.beginPassiveHandshake()
	}

	if e.started && e.pos < len(e.order) && e.order[e.pos].dir == dirRecv {
		return e.unwrapHandshakeMessage(rec, consumed)
	}

	return e.unwrapAppData(rec, consumed, dst)
}

func (e *Engine) wrapHandshakeMessage(dst []byte) (engine.Result, error) {
	entry := e.order[e.pos]

	var payload []byte
	switch entry.step {
	case stepHello:
		hello, err := newHelloMessage(e.pubKey)
		if err != nil {
			return engine.Result{}, err
		}
		payload = hello.bytes()
		if e.role == RoleClient {
			e.clientHelloMsg = payload
		} else {
			e.serverHelloMsg = payload
		}
	case stepFinished:
		if err := e.deriveKeys(); err != nil {
			return engine.Result{}, err
		}
		if e.role == RoleClient {
			payload = e.clientFinishedTag
		} else {
			payload = e.serverFinishedTag
		}
	}

	rec := tlsrecord.TLSText{
		ContentType:   tlsrecord.TypeHandshake,
		RecordVersion: common.VersionTLS12,
		Fragment:      payload,
	}
	marshaled := rec.Marshal()
	n := copy(dst, marshaled)

	e.pos++
	e.maybeEstablish()

	return engine.Result{
		Status:          engine.OK,
		HandshakeStatus: e.HandshakeStatus(),
		BytesProduced:   n,
	}, nil
}

func (e *Engine) unwrapHandshakeMessage(rec tlsrecord.TLSText, consumed int) (engine.Result, error) {
	if rec.ContentType != tlsrecord.TypeHandshake {
		return engine.Result{}, errUnexpectedRecord
	}

	entry := e.order[e.pos]

	switch entry.step {
	case stepHello:
		hello, err := helloFromBytes(rec.Fragment)
		if err != nil {
			return engine.Result{}, err
		}
		e.peerPub = hello.pubKey
		if e.role == RoleClient {
			e.serverHelloMsg = rec.Fragment
		} else {
			e.clientHelloMsg = rec.Fragment
		}
	case stepFinished:
		if err := e.deriveKeys(); err != nil {
			return engine.Result{}, err
		}
		var want []byte
		if e.role == RoleClient {
			want = e.serverFinishedTag
		} else {
			want = e.clientFinishedTag
		}
		if !constantTimeEqual(want, rec.Fragment) {
			return engine.Result{}, errFinishedMismatch
		}
	}

	e.pos++
	e.maybeEstablish()

	return engine.Result{
		Status:          engine.OK,
		HandshakeStatus: e.HandshakeStatus(),
		BytesConsumed:   consumed,
	}, nil
}

func (e *Engine) maybeEstablish() {
	if e.pos >= len(e.order) {
		e.established = true
	}
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
