package tlschannel

// Unimplemented:
//   - TLS session resumption / tickets.
//   - 0-RTT early data.
//   - Handshake timeouts (the caller's transport deadlines apply instead).
//   - Multi-buffer scatter/gather read/write.
//   - Server-name-based engine selection.
//   - Socket-level connect/accept lifecycle — callers supply an already
//     connected transport.Conn.
