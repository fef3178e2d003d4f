package h2wire

import (
	"errors"
	"fmt"
)

// CompressionError reports an HPACK or frame serialization failure: a bad
// table index, an oversize frame, an unknown flag for a frame type, a padding
// overrun. It is fatal to the connection; the driver answers it with
// GOAWAY(COMPRESSION_ERROR).
type CompressionError struct {
	Reason string
}

func (e *CompressionError) Error() string {
	return "compression error: " + e.Reason
}

// NewCompressionError builds a CompressionError with a formatted reason.
func NewCompressionError(format string, args ...any) *CompressionError {
	return &CompressionError{Reason: fmt.Sprintf(format, args...)}
}

// ProtocolError reports an HTTP/2 framing violation: a connection-scope frame
// on a nonzero stream, a malformed SETTINGS payload, a frame that is illegal
// in the current stream state. Fatal to the connection when observed on
// receive; on send it indicates a driver bug.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

// NewProtocolError builds a ProtocolError with a formatted reason.
func NewProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// StreamError reports a violation confined to a single stream. The stream is
// reset (RST_STREAM with the carried code) and closed; the connection
// survives.
type StreamError struct {
	StreamID uint32
	Code     ErrCode
	Reason   string
}

func (e *StreamError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("stream error on stream %d: %s", e.StreamID, e.Code)
	}
	return fmt.Sprintf("stream error on stream %d: %s (%s)", e.StreamID, e.Code, e.Reason)
}

// IsCompressionError reports whether err is, or wraps, a CompressionError.
func IsCompressionError(err error) bool {
	var ce *CompressionError
	return errors.As(err, &ce)
}

// IsProtocolError reports whether err is, or wraps, a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsStreamError reports whether err is, or wraps, a StreamError, returning
// the typed error when it is.
func IsStreamError(err error) (*StreamError, bool) {
	var se *StreamError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
