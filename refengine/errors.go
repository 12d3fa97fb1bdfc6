package refengine

import "github.com/pkg/errors"

var (
	errShortMessage     = errors.New("refengine: handshake message too short")
	errFinishedMismatch = errors.New("refengine: finished tag mismatch")
	errUnexpectedRecord = errors.New("refengine: unexpected record content type")
)
