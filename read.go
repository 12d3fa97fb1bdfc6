package tlschannel

import (
	"io"

	"tlschannel/engine"

	"github.com/pkg/errors"
)

// Read copies decrypted application data into dst. It returns 0 without
// touching the engine or transport if dst has no remaining capacity, and
// io.EOF on a clean end-of-stream (including after Close).
func (c *Channel) Read(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if c.isInvalid() {
		return 0, io.EOF
	}

	if err := c.DoHandshake(); err != nil {
		return 0, err
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	return c.readLocked(dst)
}

// readLocked drains buffered plaintext, driving the handshake or pulling
// more ciphertext off the transport as needed. Caller must hold readMu.
func (c *Channel) readLocked(dst []byte) (int, error) {
	for {
		if c.inPlain.len() > 0 {
			n := copy(dst, c.inPlain.readable())
			c.inPlain.consumed(n)
			return n, nil
		}

		if c.tlsClosePending {
			_ = c.Close()
			return 0, io.EOF
		}

		if hs := c.engine.HandshakeStatus(); hs == engine.NeedWrap || hs == engine.NeedUnwrap {
			c.writeMu.Lock()
			err := c.handshakeLoop(false)
			c.writeMu.Unlock()
			if err != nil {
				return 0, err
			}
			continue
		}

		if err := c.unwrapLoop(engine.NotHandshaking); err != nil {
			return 0, c.translateReadErr(err)
		}

		for c.inPlain.len() == 0 && c.engine.HandshakeStatus() == engine.NotHandshaking {
			n, err := readFromTransport(c.conn, c.inEncrypted.writable())
			if err != nil {
				if err == io.EOF {
					c.latchInvalid()
					return 0, io.EOF
				}
				if errors.Is(err, ErrWouldBlock) {
					return 0, ErrWouldBlock
				}
				return 0, err
			}
			c.inEncrypted.produced(n)

			if err := c.unwrapLoop(engine.NotHandshaking); err != nil {
				return 0, c.translateReadErr(err)
			}
		}
	}
}

func (c *Channel) translateReadErr(err error) error {
	if err == io.EOF {
		c.latchInvalid()
		return io.EOF
	}
	return err
}
