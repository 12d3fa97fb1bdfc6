package tlschannel

import (
	"tlschannel/engine"

	"github.com/pkg/errors"
)

// wrapLoop is the wrap driver. Caller must hold writeMu.
func (c *Channel) wrapLoop(src []byte) (int, error) {
	total := 0
	for {
		if c.outEncrypted.len() > 0 {
			if err := c.flushOutbound(); err != nil {
				if errors.Is(err, ErrWouldBlock) {
					if total > 0 {
						return total, nil
					}
					return total, ErrWouldBlock
				}
				return total, err
			}
		}

		if len(src) == 0 {
			return total, nil
		}

		result, err := c.engine.Wrap(src, c.outEncrypted.writable())
		if err != nil {
			c.latchInvalid()
			return total, &TLSError{Cause: err}
		}

		src = src[result.BytesConsumed:]
		total += result.BytesConsumed
		c.outEncrypted.produced(result.BytesProduced)

		switch result.Status {
		case engine.OK:
		case engine.BufferOverflow:
			invariantViolation("wrap reported buffer overflow with a full-size outbound buffer")
		case engine.BufferUnderflow:
			invariantViolation("wrap reported buffer underflow")
		case engine.Closed:
			c.latchInvalid()
			return total, ErrClosed
		}

		if result.HandshakeStatus == engine.NeedTask {
			invariantViolation("engine requested a delegated task during steady-state wrap")
		}
	}
}

// flushOutbound drains outEncrypted to the transport.
func (c *Channel) flushOutbound() error {
	for c.outEncrypted.len() > 0 {
		n, err := writeToTransport(c.conn, c.outEncrypted.readable())
		if err != nil {
			c.outEncrypted.consumed(n)
			return err
		}
		c.outEncrypted.consumed(n)
	}
	return nil
}
