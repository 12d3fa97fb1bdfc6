// Package refengine is a concrete, deliberately simplified TLS engine: an
// X25519 ECDHE key exchange followed by AES-GCM record protection, wired
// together from the kept ciphersuite/HKDF/record-framing packages. It is
// not RFC 8446 compliant (no certificates, no cipher suite negotiation, a
// toy four-message handshake) — it exists to give tlschannel.Channel a real
// collaborator to drive in tests, exactly the sort of engine the adapter
// treats as supplied and out of scope for itself.
package refengine

import (
	"crypto/cipher"
	"crypto/rand"

	"tlschannel/engine"
	"tlschannel/session/tls/common/ciphersuite"

	"golang.org/x/crypto/curve25519"
)

// Role distinguishes which side of the handshake an Engine plays.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

// step identifies one message exchange in the handshake.
type step uint8

const (
	stepHello step = iota
	stepFinished
)

type direction uint8

const (
	dirSend direction = iota
	dirRecv
)

type orderEntry struct {
	step step
	dir  direction
}

var clientOrder = []orderEntry{
	{stepHello, dirSend},
	{stepHello, dirRecv},
	{stepFinished, dirSend},
	{stepFinished, dirRecv},
}

var serverOrder = []orderEntry{
	{stepHello, dirRecv},
	{stepHello, dirSend},
	{stepFinished, dirRecv},
	{stepFinished, dirSend},
}

// Engine implements tlschannel's engine.Engine interface.
type Engine struct {
	role  Role
	suite ciphersuite.Suite

	started bool
	order   []orderEntry
	pos     int

	privKey [32]byte
	pubKey  [32]byte
	peerPub [32]byte

	clientHelloMsg, serverHelloMsg []byte

	keysDerived                bool
	clientFinishedTag          []byte
	serverFinishedTag          []byte
	writeAEAD, readAEAD        cipher.AEAD
	writeIV, readIV            []byte
	writeSeq, readSeq          uint64

	established bool

	wantCloseNotify bool
	closed          bool
}

// New constructs an Engine for the given role. For RoleServer the engine
// is already primed to receive a ClientHello without an explicit
// BeginHandshake call, mirroring a passive SSLEngine waiting on its first
// unwrap.
func New(role Role) (*Engine, error) {
	suite, ok := ciphersuite.Get(ciphersuite.TLS_AES_128_GCM_SHA256)
	if !ok {
		panic("refengine: default ciphersuite not registered")
	}

	e := &Engine{role: role, suite: suite}

	if _, err := rand.Read(e.privKey[:]); err != nil {
		return nil, err
	}
	curve25519.ScalarBaseMult(&e.pubKey, &e.privKey)

	if role == RoleServer {
		e.started = true
		e.order = serverOrder
	}

	return e, nil
}

var _ engine.Engine = (*Engine)(nil)

// BeginHandshake starts an actively initiated handshake (the initial one,
// or a renegotiation the caller asked for). See beginPassiveHandshake for
// the peer-initiated counterpart.
func (e *Engine) BeginHandshake() error {
	e.rearmHandshake()
	return nil
}

// beginPassiveHandshake re-arms the engine on receipt of a handshake
// record while not already mid-handshake: the peer-initiated counterpart
// to BeginHandshake, taken the moment an inbound TypeHandshake record
// shows up outside an active handshake (initial handshake or
// renegotiation started by the other side).
func (e *Engine) beginPassiveHandshake() {
	e.rearmHandshake()
}

// rearmHandshake resets per-handshake state and picks this role's message
// order, dropping any session material derived for a prior handshake so a
// renegotiation always finishes with freshly derived keys.
func (e *Engine) rearmHandshake() {
	e.started = true
	e.pos = 0
	e.established = false
	e.keysDerived = false
	e.clientHelloMsg = nil
	e.serverHelloMsg = nil
	if e.role == RoleClient {
		e.order = clientOrder
	} else {
		e.order = serverOrder
	}
}

func (e *Engine) CloseOutbound() {
	if !e.closed {
		e.wantCloseNotify = true
	}
}

func (e *Engine) HandshakeStatus() engine.HandshakeStatus {
	if e.wantCloseNotify {
		return engine.NeedWrap
	}
	if !e.started || e.pos >= len(e.order) {
		return engine.NotHandshaking
	}

	switch e.order[e.pos].dir {
	case dirSend:
		return engine.NeedWrap
	default:
		return engine.NeedUnwrap
	}
}

// Task never returns pending work: the only CPU-bound step (the ECDHE
// computation) is cheap enough to run inline inside Wrap/Unwrap.
func (e *Engine) Task() (func(), bool) { return nil, false }

func (e *Engine) Session() engine.Session {
	return refSession{suite: e.suite, established: e.established}
}

type refSession struct {
	suite       ciphersuite.Suite
	established bool
}

func (s refSession) CipherSuiteName() string {
	if !s.established {
		return ""
	}
	switch s.suite.ID() {
	case ciphersuite.TLS_AES_128_GCM_SHA256:
		return "TLS_AES_128_GCM_SHA256"
	case ciphersuite.TLS_AES_256_GCM_SHA384:
		return "TLS_AES_256_GCM_SHA384"
	default:
		return "unknown"
	}
}
