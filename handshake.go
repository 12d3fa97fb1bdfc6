package tlschannel

import (
	"io"

	"tlschannel/engine"

	"github.com/pkg/errors"
)

// DoHandshake drives the initial handshake if it has not yet happened.
// Idempotent: a second call is a no-op. Guarded by initMu; acquires read
// then write lock (lock hierarchy order) only on the first call.
func (c *Channel) DoHandshake() error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialHandshaked {
		return nil
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.handshakeLoop(true); err != nil {
		return err
	}

	// The flag is set after the callback completes: a failing callback
	// leaves the adapter in a pre-handshake state, so the next operation
	// retries the whole handshake.
	if c.sessionInitialized != nil {
		c.sessionInitialized(c.engine.Session())
	}
	c.initialHandshaked = true

	return nil
}

// Renegotiate forces a new active handshake. It drives the initial
// handshake first if it has not yet completed.
func (c *Channel) Renegotiate() error {
	if err := c.DoHandshake(); err != nil {
		return err
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.handshakeLoop(true)
}

// DoPassiveHandshake drives a handshake initiated by the peer.
func (c *Channel) DoPassiveHandshake() error {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.handshakeLoop(false)
}

// handshakeLoop drives the engine through need-wrap/need-unwrap until it
// reaches not-handshaking or finished, interleaving delegated tasks.
// Caller must hold both readMu and writeMu.
func (c *Channel) handshakeLoop(active bool) error {
	if err := c.flushOutbound(); err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return ErrWouldBlock
		}
		c.latchInvalid()
		return &HandshakeError{Cause: err}
	}

	if active {
		if err := c.engine.BeginHandshake(); err != nil {
			c.latchInvalid()
			return &HandshakeError{Cause: err}
		}
	}

	for {
		switch status := c.engine.HandshakeStatus(); status {
		case engine.NeedWrap:
			if c.outEncrypted.len() != 0 {
				invariantViolation("need-wrap encountered with a non-empty outbound buffer")
			}

			result, err := c.engine.Wrap(nil, c.outEncrypted.writable())
			if err != nil {
				c.latchInvalid()
				return &HandshakeError{Cause: err}
			}
			c.outEncrypted.produced(result.BytesProduced)

			if err := c.flushOutbound(); err != nil {
				if errors.Is(err, ErrWouldBlock) {
					return ErrWouldBlock
				}
				c.latchInvalid()
				return &HandshakeError{Cause: err}
			}

			if result.HandshakeStatus == engine.NeedTask {
				c.runDelegatedTask()
			}

		case engine.NeedUnwrap:
			if c.inPlain.len() != 0 {
				invariantViolation("need-unwrap encountered with non-empty inbound plaintext")
			}

			if err := c.unwrapLoop(engine.NeedUnwrap); err != nil {
				return handshakeWrapErr(err)
			}

			for c.engine.HandshakeStatus() == engine.NeedUnwrap && c.inPlain.len() == 0 {
				n, err := readFromTransport(c.conn, c.inEncrypted.writable())
				if err != nil {
					if err == io.EOF {
						c.latchInvalid()
						return io.EOF
					}
					if errors.Is(err, ErrWouldBlock) {
						return ErrWouldBlock
					}
					c.latchInvalid()
					return &HandshakeError{Cause: err}
				}
				c.inEncrypted.produced(n)

				if err := c.unwrapLoop(engine.NeedUnwrap); err != nil {
					return handshakeWrapErr(err)
				}
			}

			if c.inPlain.len() > 0 {
				// Plaintext arrived interleaved with handshake messages;
				// the read path drains it once this returns.
				return nil
			}

		case engine.NotHandshaking, engine.Finished:
			return nil

		case engine.NeedTask:
			c.runDelegatedTask()

		default:
			invariantViolation("engine reported unknown handshake status %v", status)
		}
	}
}

func (c *Channel) runDelegatedTask() {
	task, ok := c.engine.Task()
	if !ok {
		invariantViolation("engine reported need-task but returned none")
	}
	task()
}

// handshakeWrapErr adapts unwrapLoop's own error vocabulary (io.EOF or
// *TLSError) onto the handshake loop's handshake-failure wrapping, without
// double-wrapping a clean end-of-stream.
func handshakeWrapErr(err error) error {
	if err == io.EOF {
		return io.EOF
	}
	return &HandshakeError{Cause: err}
}
