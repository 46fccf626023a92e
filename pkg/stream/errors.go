package stream

import "errors"

// Error kinds surfaced by the stream layer. Following the teacher's
// errors.go idiom (package-level sentinels, not exported types), every
// failure is one of these, optionally wrapped to preserve an underlying
// cause.
var (
	ErrClosed                   = errors.New("stream: operation on closed stream")
	ErrErrorState               = errors.New("stream: operation on stream in error state")
	ErrEmpty                    = errors.New("stream: read underflow")
	ErrFull                     = errors.New("stream: write overflow")
	ErrIO                       = errors.New("stream: io failure")
	ErrRemainingBitsMismatch    = errors.New("stream: remaining bits do not match expectation")
	ErrRemainingBytesUnsupported = errors.New("stream: remaining bytes not supported by this backing store")
)
