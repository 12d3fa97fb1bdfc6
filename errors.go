package tlschannel

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrWouldBlock is returned by read/write when the underlying transport is
// non-blocking and cannot currently make progress (a needs-read /
// needs-write signal). Its remedy is identical regardless of direction:
// wait for the transport to become ready and retry.
var ErrWouldBlock = errors.New("tlschannel: would block")

// ErrClosed is returned when an operation is attempted on an adapter that
// has already latched invalid.
var ErrClosed = errors.New("tlschannel: channel is closed")

// TLSError wraps an error returned by the engine's Wrap/Unwrap outside of
// a handshake. It always latches the adapter invalid before being raised.
type TLSError struct {
	Cause error
}

func (e *TLSError) Error() string { return fmt.Sprintf("tlschannel: tls error: %s", e.Cause) }
func (e *TLSError) Unwrap() error { return e.Cause }

// HandshakeError wraps any non-would-block failure encountered while
// driving the handshake loop. The original cause is chained rather than
// reduced to a message or exception-class-name string. A clean
// end-of-stream is not wrapped: the handshake loop returns io.EOF as is.
type HandshakeError struct {
	Cause error
}

func (e *HandshakeError) Error() string { return fmt.Sprintf("tlschannel: handshake failed: %s", e.Cause) }
func (e *HandshakeError) Unwrap() error { return e.Cause }

// invariantViolation panics: these conditions indicate a bug in the
// adapter or a contract violation by the engine, never attacker- or
// peer-controlled input, so there is nothing a caller could legitimately
// recover from.
func invariantViolation(format string, args ...any) {
	panic(fmt.Sprintf("tlschannel: invariant violation: "+format, args...))
}
