package stream

import (
	"github.com/xkilldash9x/h2wire/frame"
	"github.com/xkilldash9x/h2wire/hpack"
)

// Events is the fixed menu of callbacks a stream emits. A driver registers
// the handlers it cares about at construction; nil handlers are skipped.
type Events struct {
	// Active fires once, when the stream first enters open or either
	// half-closed state.
	Active func()

	// Reserved fires when the stream enters a reserved state via
	// PUSH_PROMISE.
	Reserved func()

	// HalfClose fires when the stream enters half_closed_local or
	// half_closed_remote. Closing the remaining direction fires Close only.
	HalfClose func()

	// Close fires when the stream reaches its terminal state. err is nil on
	// a clean close and carries the stream error otherwise.
	Close func(err error)

	// Headers delivers a decoded header list for an inbound HEADERS frame.
	// It requires a HeaderDecoder in the config; without one the raw
	// fragment arrives via HeadersBlock instead.
	Headers func(headers []hpack.Header)

	// HeadersBlock delivers the raw header-block fragment of an inbound
	// HEADERS frame when no decoder is configured, and of every inbound
	// CONTINUATION frame.
	HeadersBlock func(block []byte)

	// Data delivers an inbound DATA payload, after flow-control accounting
	// and after transparent decompression of compressed payloads.
	Data func(p []byte)

	// Priority reports an inbound reprioritization.
	Priority func(weight uint16, dependency uint32, exclusive bool)

	// PushPromise reports an inbound stream reservation: the promised
	// stream id and the request header-block fragment.
	PushPromise func(promised uint32, block []byte)

	// Frame hands an outbound frame to the driver for serialization. Every
	// frame the stream sends, including generated RST_STREAM and
	// WINDOW_UPDATE frames, passes through here in program order.
	Frame func(f *frame.Frame)

	// Window reports the remote (send) window after it changed.
	Window func(v int64)

	// LocalWindow reports the local (receive) window after it changed.
	LocalWindow func(v int64)
}

func (e *Events) emitFrame(f *frame.Frame) {
	if e.Frame != nil {
		e.Frame(f)
	}
}

// HeaderEncoder encodes a header list into a header-block fragment. The
// hpack.Compressor satisfies it; the instance is owned by the connection's
// sending direction and shared by its streams.
type HeaderEncoder interface {
	Encode(headers []hpack.Header) ([]byte, error)
}

// HeaderDecoder decodes a header-block fragment. The hpack.Decompressor
// satisfies it.
type HeaderDecoder interface {
	DecodeBytes(p []byte) ([]hpack.Header, error)
}
