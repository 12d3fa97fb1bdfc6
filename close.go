package tlschannel

import "tlschannel/engine"

// Close is idempotent: it attempts a best-effort close-notify, then closes
// the transport. Calling it again after the adapter is already invalid is
// a no-op beyond re-closing the (already-closed) transport.
func (c *Channel) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if !c.isInvalid() {
		c.engine.CloseOutbound()

		if c.engine.HandshakeStatus() == engine.NeedWrap {
			if result, err := c.engine.Wrap(nil, c.outEncrypted.writable()); err == nil {
				c.outEncrypted.produced(result.BytesProduced)
				_ = c.flushOutbound() // Best-effort: a misbehaving peer never blocks close.
			}
		}

		c.latchInvalid()
	}

	return c.conn.Close()
}
