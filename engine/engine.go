// Package engine defines the TLS engine contract consumed by the
// tlschannel adapter: a pull/push wrap/unwrap state machine modeled on
// javax.net.ssl.SSLEngine. It carries no cryptography of its own.
package engine

// Status is the outcome of a single Wrap or Unwrap call.
type Status uint8

const (
	OK Status = iota
	BufferUnderflow
	BufferOverflow
	Closed
)

func (s Status) String() string {
	switch s {
	case OK:
		return "ok"
	case BufferUnderflow:
		return "buffer_underflow"
	case BufferOverflow:
		return "buffer_overflow"
	case Closed:
		return "closed"
	default:
		return "unknown_status"
	}
}

// HandshakeStatus is the engine's self-reported next required action.
type HandshakeStatus uint8

const (
	NotHandshaking HandshakeStatus = iota
	NeedWrap
	NeedUnwrap
	NeedTask
	Finished
)

func (h HandshakeStatus) String() string {
	switch h {
	case NotHandshaking:
		return "not_handshaking"
	case NeedWrap:
		return "need_wrap"
	case NeedUnwrap:
		return "need_unwrap"
	case NeedTask:
		return "need_task"
	case Finished:
		return "finished"
	default:
		return "unknown_handshake_status"
	}
}

// Result is the shape returned by both Wrap and Unwrap.
type Result struct {
	Status          Status
	HandshakeStatus HandshakeStatus
	BytesConsumed   int
	BytesProduced   int
}

// Session is an opaque, engine-defined descriptor of the negotiated
// session, returned to the adapter's caller unexamined.
type Session interface {
	// CipherSuiteName reports the negotiated ciphersuite, for diagnostics.
	CipherSuiteName() string
}

// Engine is the TLS state machine the adapter orchestrates. Implementations
// own all cryptography, certificate validation and parameter negotiation;
// the adapter treats an Engine purely as a collaborator driven through this
// interface.
//
// src/dst are raw byte slices used in "write mode at rest": callers pass
// the writable remainder (dst) and the unread remainder (src); Wrap/Unwrap
// report how much of each they consumed/produced. This mirrors SSLEngine's
// ByteBuffer convention without requiring a position/limit abstraction.
type Engine interface {
	// Wrap consumes plaintext from src and produces a ciphertext record
	// (or handshake message) into dst.
	Wrap(src, dst []byte) (Result, error)
	// Unwrap consumes ciphertext from src and produces plaintext (or
	// drives the handshake) into dst.
	Unwrap(src, dst []byte) (Result, error)

	// BeginHandshake starts (or restarts, for renegotiation) the
	// handshake. HandshakeStatus() will report NeedWrap or NeedUnwrap
	// immediately afterward.
	BeginHandshake() error

	// CloseOutbound signals intent to send a close-notify; the next
	// HandshakeStatus() call reports NeedWrap if one must be produced.
	CloseOutbound()

	// HandshakeStatus reports the next required action.
	HandshakeStatus() HandshakeStatus

	// Task returns one unit of delegated, CPU-bound work if the engine
	// currently has one pending (ok == true), or (nil, false) otherwise.
	// The caller must run it synchronously before calling Wrap/Unwrap
	// again.
	Task() (task func(), ok bool)

	// Session returns the current (possibly not-yet-complete) session
	// descriptor.
	Session() Session
}
