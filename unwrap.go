package tlschannel

import (
	"io"

	"tlschannel/engine"
)

// unwrapLoop is the unwrap driver. h is the loop-condition handshake
// status: NotHandshaking for data reads, or
// NeedUnwrap for handshake reads. It pulls ciphertext already buffered in
// inEncrypted, feeds the engine, and accumulates plaintext into inPlain,
// stopping once the engine's status stops matching h or no further
// progress is possible without more ciphertext from the transport.
//
// inEncrypted is compacted by consumed() as it drains, so by the time this
// returns (including on error) it is already back in write-mode-at-rest —
// there is no separate flip/compact step to remember.
func (c *Channel) unwrapLoop(h engine.HandshakeStatus) error {
	for {
		result, err := c.engine.Unwrap(c.inEncrypted.readable(), c.inPlain.writable())
		if err != nil {
			c.latchInvalid()
			return &TLSError{Cause: err}
		}

		c.inEncrypted.consumed(result.BytesConsumed)
		c.inPlain.produced(result.BytesProduced)

		if result.HandshakeStatus == engine.NeedTask {
			task, ok := c.engine.Task()
			if !ok {
				invariantViolation("engine reported need-task but returned none")
			}
			task()
			if c.engine.HandshakeStatus() == engine.NeedTask {
				invariantViolation("engine still reports need-task after running delegated task")
			}
			continue
		}

		switch result.Status {
		case engine.OK, engine.BufferUnderflow:
			// Handled by the loop-continuation check below.
		case engine.BufferOverflow:
			// The plaintext buffer filled; the engine may still have
			// undelivered bytes, but we already have data to hand back.
			if c.inPlain.len() == 0 {
				invariantViolation("engine reported buffer overflow but produced no plaintext")
			}
			return nil
		case engine.Closed:
			c.tlsClosePending = true
			if c.inPlain.len() == 0 {
				return io.EOF
			}
			return nil
		}

		if result.Status != engine.OK || result.HandshakeStatus != h {
			return nil
		}
	}
}
