// Package tlschannel implements a non-blocking TLS framing adapter: it
// wraps an underlying bidirectional byte transport and an externally
// supplied TLS engine, and exposes an identical byte-channel interface
// whose payload is transparently encrypted and decrypted.
//
// The engine (cipher suites, certificate validation, key exchange) is an
// opaque collaborator — see package engine and, for a concrete
// implementation, package refengine. Channel's job is orchestration:
// buffering, record framing alignment, handshake driving, renegotiation,
// half-close, and correct behavior when the transport reports it would
// block.
package tlschannel

import (
	"io"
	"sync"

	"tlschannel/engine"
	"tlschannel/transport"

	"github.com/pkg/errors"
)

// MaxDataSize is the maximum plaintext payload carried by one record: 2^15
// bytes, intentionally one bit larger than the TLS-spec 2^14 to
// accommodate engine behavior observed in some implementations.
const MaxDataSize = 32768

// MaxRecordSize is the maximum size of one on-the-wire TLS record:
// 5 (header) + 256 (IV) + 32768 (data) + 256 (padding) + 20 (MAC).
const MaxRecordSize = 5 + 256 + MaxDataSize + 256 + 20

// Config holds everything needed to construct a Channel.
type Config struct {
	// Conn is the underlying transport. Both halves (read and write) of
	// the adapter use it; supply the same transport.Conn for a typical
	// bidirectional connection.
	Conn transport.Conn

	// Engine drives the actual TLS state machine.
	Engine engine.Engine

	// InboundEncrypted is the caller-supplied ciphertext scratch buffer.
	// Its length must be >= MaxRecordSize; the whole slice is used.
	InboundEncrypted []byte

	// SessionInitialized, if non-nil, is invoked exactly once after the
	// initial handshake completes, with the engine's session.
	SessionInitialized func(engine.Session)
}

// Channel is the TLS channel adapter.
type Channel struct {
	conn   transport.Conn
	engine engine.Engine

	inEncrypted  *recordBuf
	inPlain      *recordBuf
	outEncrypted *recordBuf

	sessionInitialized func(engine.Session)

	initMu  sync.Mutex
	readMu  sync.Mutex
	writeMu sync.Mutex

	initialHandshaked bool // guarded by initMu

	invalidMu sync.Mutex
	invalid   bool

	tlsClosePending bool // only read-path touches this, under readMu
}

// New constructs a Channel. It fails immediately, before any I/O, if
// InboundEncrypted is too small to hold one record.
func New(cfg Config) (*Channel, error) {
	if len(cfg.InboundEncrypted) < MaxRecordSize {
		return nil, errors.Errorf(
			"tlschannel: inbound encrypted buffer capacity %d is below required minimum %d",
			len(cfg.InboundEncrypted), MaxRecordSize)
	}

	c := &Channel{
		conn:               cfg.Conn,
		engine:             cfg.Engine,
		inEncrypted:        &recordBuf{data: cfg.InboundEncrypted},
		inPlain:            newRecordBuf(MaxDataSize),
		outEncrypted:       newRecordBuf(MaxRecordSize),
		sessionInitialized: cfg.SessionInitialized,
	}

	return c, nil
}

func (c *Channel) isInvalid() bool {
	c.invalidMu.Lock()
	defer c.invalidMu.Unlock()
	return c.invalid
}

// latchInvalid is the monotonic invalid-state latch: once true, it is
// never unset for the adapter's lifetime.
func (c *Channel) latchInvalid() {
	c.invalidMu.Lock()
	defer c.invalidMu.Unlock()
	c.invalid = true
}

// IsOpen reports true until the adapter latches invalid (Close, a clean
// end-of-stream, or a fatal error), and false from then on. It does not
// query the transport: a transport closed from outside the adapter is not
// reflected here.
func (c *Channel) IsOpen() bool {
	return !c.isInvalid()
}

// Session returns the engine's current session descriptor.
func (c *Channel) Session() engine.Session { return c.engine.Session() }

// readFromTransport adapts transport.Conn's deadline-based would-block
// signal and close-as-EOF semantics onto the adapter's own vocabulary.
func readFromTransport(conn transport.Conn, dst []byte) (int, error) {
	n, err := conn.Read(dst)
	if err == nil {
		return n, nil
	}
	switch {
	case errors.Is(err, transport.ErrDeadLineExceeded):
		return n, ErrWouldBlock
	case errors.Is(err, transport.ErrConnClosed):
		return n, io.EOF
	default:
		return n, err
	}
}

func writeToTransport(conn transport.Conn, src []byte) (int, error) {
	n, err := conn.Write(src)
	if err == nil {
		return n, nil
	}
	switch {
	case errors.Is(err, transport.ErrDeadLineExceeded):
		return n, ErrWouldBlock
	case errors.Is(err, transport.ErrConnClosed):
		return n, ErrClosed
	default:
		return n, err
	}
}
