package domain

import "errors"

// Sentinel errors for the peer manager and signaling path. No code path
// returns them: the handlers and the peer manager report failures as
// pkg/errors AppError values instead.
var (
	ErrPeerNotFound     = errors.New("peer not found")
	ErrInvalidOffer     = errors.New("invalid offer")
	ErrInvalidCandidate = errors.New("invalid candidate")
	ErrResourceExhausted = errors.New("peer capacity reached")
	ErrSessionClosed    = errors.New("session closed")
)

// IngestError kinds named after the producer-ingest error taxonomy. The IPC
// consumer builds its own error values and does not return these.
var (
	ErrProducerTooLarge   = errors.New("ipc message exceeds maximum size")
	ErrProducerTruncated  = errors.New("ipc message truncated")
	ErrProducerBadJSON    = errors.New("ipc message has malformed json header")
	ErrProducerUnknownType = errors.New("ipc message has unknown type byte")
)
