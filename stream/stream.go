// Package stream implements the per-stream lifecycle state machine: the
// idle → open/reserved → half-closed → closed transitions, per-stream flow
// control, outbound DATA chunking with send buffering, and the event hooks a
// connection driver consumes.
//
// The machine is single-threaded: a driver feeds frames in arrival order and
// every transition, window adjustment and event emission happens
// synchronously on that call.
package stream

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/xkilldash9x/h2wire"
	"github.com/xkilldash9x/h2wire/flow"
	"github.com/xkilldash9x/h2wire/frame"
	"github.com/xkilldash9x/h2wire/hpack"
)

// State is a stream lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StateReservedLocal
	StateReservedRemote
	StateOpen
	StateHalfClosedLocal
	StateHalfClosedRemote
	StateClosed

	// Intermediate states: a transition parks here while the triggering
	// frame's effects run, and completeTransition settles it.
	stateHalfClosingLocal
	stateHalfClosingRemote
	stateClosing
)

var stateNames = [...]string{
	"idle", "reserved_local", "reserved_remote", "open",
	"half_closed_local", "half_closed_remote", "closed",
	"half_closing", "half_closing", "closing",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

// ClosedReason records which side terminated the stream, and how.
type ClosedReason uint8

const (
	ReasonNone ClosedReason = iota
	ReasonLocalRST
	ReasonRemoteRST
	ReasonLocalClosed
	ReasonRemoteClosed
)

var reasonNames = [...]string{"", "local_rst", "remote_rst", "local_closed", "remote_closed"}

func (r ClosedReason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "invalid"
}

// action is a transition verdict: apply the frame's effects, or swallow the
// frame without effects (tolerated frames on closed streams).
type action uint8

const (
	actProceed action = iota
	actIgnore
)

// compressThreshold is the smallest DATA chunk worth gzip-compressing under
// the compress_data setting.
const compressThreshold = 128

// pendingData is outbound payload blocked on the remote window.
type pendingData struct {
	payload   []byte
	endStream bool
}

// Config carries everything a stream needs at construction. The window and
// frame-size fields snapshot the connection's settings; later SETTINGS
// changes reach the stream through AdjustRemoteWindow, AdjustLocalWindow and
// SetMaxFrameSize, so the stream never holds a connection reference.
type Config struct {
	// ID is the stream identifier: odd for client-initiated streams, even
	// for server-initiated.
	ID uint32

	// Weight (1-256), Dependency and Exclusive seed the priority fields.
	// Zero Weight means the default of 16.
	Weight     uint16
	Dependency uint32
	Exclusive  bool

	// Parent is the originating stream for pushed streams, zero otherwise.
	Parent uint32

	// LocalWindow is the receive window to advertise; RemoteWindow is the
	// peer's initial_window_size. Zero means the protocol default.
	LocalWindow  int64
	RemoteWindow int64

	// MaxFrameSize bounds outbound DATA chunks. Zero means the default.
	MaxFrameSize int

	// CompressData enables gzip DATA payloads, as negotiated through the
	// compress_data setting.
	CompressData bool

	// Encoder and Decoder are the connection's per-direction HPACK codecs.
	// Optional: without a decoder, inbound header blocks are emitted raw.
	Encoder HeaderEncoder
	Decoder HeaderDecoder

	Logger *zap.Logger
	Events Events
}

// Stream is one HTTP/2 stream. Created in idle; driven exclusively through
// Receive, Send and the outbound operations; terminates in closed and is
// never resurrected.
type Stream struct {
	id     uint32
	state  State
	reason ClosedReason

	weight     uint16
	dependency uint32
	exclusive  bool
	parent     uint32

	local        *flow.Controller
	remoteWindow int64
	maxFrameSize int
	compressData bool

	enc HeaderEncoder
	dec HeaderDecoder

	pending       []pendingData
	events        Events
	log           *zap.Logger
	activated     bool
	closeNotified bool
	closeErr      error
}

// New builds a stream in the idle state.
func New(cfg Config) *Stream {
	if cfg.Weight == 0 {
		cfg.Weight = 16
	}
	if cfg.LocalWindow <= 0 {
		cfg.LocalWindow = h2wire.DefaultInitialWindowSize
	}
	if cfg.RemoteWindow <= 0 {
		cfg.RemoteWindow = h2wire.DefaultInitialWindowSize
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = h2wire.DefaultMaxFrameSize
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Stream{
		id:           cfg.ID,
		state:        StateIdle,
		weight:       cfg.Weight,
		dependency:   cfg.Dependency,
		exclusive:    cfg.Exclusive,
		parent:       cfg.Parent,
		local:        flow.New(cfg.LocalWindow, 0, flow.Hooks{}),
		remoteWindow: cfg.RemoteWindow,
		maxFrameSize: cfg.MaxFrameSize,
		compressData: cfg.CompressData,
		enc:          cfg.Encoder,
		dec:          cfg.Decoder,
		events:       cfg.Events,
		log:          log.Named("stream").With(zap.Uint32("stream", cfg.ID)),
	}
}

// Accessors.

func (s *Stream) ID() uint32                 { return s.id }
func (s *Stream) State() State               { return s.state }
func (s *Stream) ClosedReason() ClosedReason { return s.reason }
func (s *Stream) Parent() uint32             { return s.parent }
func (s *Stream) Weight() uint16             { return s.weight }
func (s *Stream) Dependency() uint32         { return s.dependency }
func (s *Stream) Exclusive() bool            { return s.exclusive }
func (s *Stream) RemoteWindow() int64        { return s.remoteWindow }
func (s *Stream) LocalWindow() int64         { return s.local.Window() }

// BufferedBytes reports how much outbound payload is blocked on the remote
// window.
func (s *Stream) BufferedBytes() int {
	n := 0
	for _, pd := range s.pending {
		n += len(pd.payload)
	}
	return n
}

// Receive applies an inbound frame. Stream errors close the stream, queue a
// RST_STREAM through the Frame event and are returned; protocol and
// compression errors are returned for the driver to escalate.
func (s *Stream) Receive(f *frame.Frame) error {
	if f.Stream != s.id {
		return h2wire.NewProtocolError("frame for stream %d routed to stream %d", f.Stream, s.id)
	}
	act, err := s.transition(f, false)
	if err != nil {
		if se, ok := h2wire.IsStreamError(err); ok {
			s.reset(se)
		}
		return err
	}

	switch f.Type {
	case frame.TypeData:
		if err := s.receiveData(f, act); err != nil {
			return err
		}

	case frame.TypeHeaders, frame.TypeContinuation:
		if act == actProceed {
			if err := s.emitHeaders(f); err != nil {
				return err
			}
		}

	case frame.TypePriority:
		if f.Priority != nil {
			s.weight = f.Priority.Weight
			s.dependency = f.Priority.Dependency
			s.exclusive = f.Priority.Exclusive
			// A closed stream still absorbs reprioritization, but Close is
			// the last event a driver ever sees from it.
			if act == actProceed && s.state != StateClosed && s.events.Priority != nil {
				s.events.Priority(s.weight, s.dependency, s.exclusive)
			}
		}

	case frame.TypePushPromise:
		if act == actProceed && s.events.PushPromise != nil {
			s.events.PushPromise(f.PromisedStream, f.Payload)
		}

	case frame.TypeWindowUpdate:
		if act == actProceed {
			s.remoteWindow += int64(f.Increment)
			if s.events.Window != nil {
				s.events.Window(s.remoteWindow)
			}
			if err := s.Pump(); err != nil {
				return err
			}
		}

	case frame.TypeRSTStream:
		if f.ErrCode != h2wire.ErrCodeNoError {
			s.closeErr = &h2wire.StreamError{StreamID: s.id, Code: f.ErrCode}
		}
	}

	s.completeTransition()
	return nil
}

// Send applies an outbound frame and hands it to the Frame event. Illegal
// sends are driver bugs and come back as protocol errors (STREAM_CLOSED
// stream errors on a closed stream) without touching the stream state.
func (s *Stream) Send(f *frame.Frame) error {
	if f.Stream == 0 {
		f.Stream = s.id
	}
	if f.Stream != s.id {
		return h2wire.NewProtocolError("frame for stream %d sent on stream %d", f.Stream, s.id)
	}
	act, err := s.transition(f, true)
	if err != nil {
		return err
	}
	if act == actIgnore {
		return nil
	}

	switch f.Type {
	case frame.TypeData:
		s.remoteWindow -= int64(len(f.Payload))
		if s.events.Window != nil {
			s.events.Window(s.remoteWindow)
		}
	case frame.TypePriority:
		if f.Priority != nil {
			s.weight = f.Priority.Weight
			s.dependency = f.Priority.Dependency
			s.exclusive = f.Priority.Exclusive
		}
	}

	s.events.emitFrame(f)
	s.completeTransition()
	return nil
}

// Headers encodes a header list through the configured encoder and sends it.
func (s *Stream) Headers(headers []hpack.Header, endHeaders, endStream bool) error {
	if s.enc == nil {
		return h2wire.NewProtocolError("stream %d has no header encoder", s.id)
	}
	block, err := s.enc.Encode(headers)
	if err != nil {
		return err
	}
	return s.HeadersBlock(block, endHeaders, endStream)
}

// HeadersBlock sends a pre-encoded header-block fragment.
func (s *Stream) HeadersBlock(block []byte, endHeaders, endStream bool) error {
	f := &frame.Frame{Type: frame.TypeHeaders, Stream: s.id, Payload: block}
	if endHeaders {
		f.Flags |= frame.FlagEndHeaders
	}
	if endStream {
		f.Flags |= frame.FlagEndStream
	}
	return s.Send(f)
}

// Data queues payload for sending, split into chunks of at most the remote
// max frame size. Chunks beyond the remote window stay buffered until
// WINDOW_UPDATE frames arrive (or Pump is called after an external window
// change).
func (s *Stream) Data(payload []byte, endStream bool) error {
	s.pending = append(s.pending, pendingData{payload: payload, endStream: endStream})
	return s.Pump()
}

// Pump drains as much of the send buffer as the remote window allows.
func (s *Stream) Pump() error {
	for len(s.pending) > 0 {
		pd := &s.pending[0]

		if len(pd.payload) == 0 {
			// A bare END_STREAM costs no window.
			s.pending = s.pending[1:]
			f := &frame.Frame{Type: frame.TypeData, Stream: s.id}
			if pd.endStream {
				f.Flags |= frame.FlagEndStream
			}
			if err := s.Send(f); err != nil {
				return err
			}
			continue
		}

		if s.remoteWindow <= 0 {
			s.log.Debug("send buffer blocked on remote window",
				zap.Int("buffered", s.BufferedBytes()))
			return nil
		}

		n := len(pd.payload)
		if n > s.maxFrameSize {
			n = s.maxFrameSize
		}
		if int64(n) > s.remoteWindow {
			n = int(s.remoteWindow)
		}

		chunk := pd.payload[:n]
		rest := pd.payload[n:]
		last := len(rest) == 0

		f := &frame.Frame{Type: frame.TypeData, Stream: s.id, Payload: chunk}
		if s.compressData && len(chunk) >= compressThreshold {
			if packed, err := gzipCompress(chunk); err == nil && len(packed) < len(chunk) {
				f.Payload = packed
				f.Flags |= frame.FlagCompressed
			}
		}
		if pd.endStream && last {
			f.Flags |= frame.FlagEndStream
		}

		if last {
			s.pending = s.pending[1:]
		} else {
			pd.payload = rest
		}
		if err := s.Send(f); err != nil {
			return err
		}
	}
	return nil
}

// Priority sends a reprioritization. Either peer may reprioritize at any
// point in the stream's life.
func (s *Stream) Priority(weight uint16, dependency uint32, exclusive bool) error {
	return s.Send(&frame.Frame{
		Type:   frame.TypePriority,
		Stream: s.id,
		Priority: &frame.PrioritySpec{
			Weight:     weight,
			Dependency: dependency,
			Exclusive:  exclusive,
		},
	})
}

// Close resets the stream with the given code.
func (s *Stream) Close(code h2wire.ErrCode) error {
	return s.Send(&frame.Frame{Type: frame.TypeRSTStream, Stream: s.id, ErrCode: code})
}

// Cancel resets the stream with CANCEL.
func (s *Stream) Cancel() error { return s.Close(h2wire.ErrCodeCancel) }

// Refuse resets the stream with REFUSED_STREAM, as an endpoint does for
// streams it will not process.
func (s *Stream) Refuse() error { return s.Close(h2wire.ErrCodeRefusedStream) }

// AdjustRemoteWindow applies a signed delta to the send window, as a peer
// SETTINGS_INITIAL_WINDOW_SIZE change requires, and drains anything the new
// window admits.
func (s *Stream) AdjustRemoteWindow(delta int64) error {
	s.remoteWindow += delta
	if s.events.Window != nil {
		s.events.Window(s.remoteWindow)
	}
	return s.Pump()
}

// AdjustLocalWindow applies a signed delta to the receive window.
func (s *Stream) AdjustLocalWindow(delta int64) {
	s.local.Adjust(delta)
	if s.events.LocalWindow != nil {
		s.events.LocalWindow(s.local.Window())
	}
}

// SetMaxFrameSize updates the outbound chunk bound.
func (s *Stream) SetMaxFrameSize(n int) {
	if n > 0 {
		s.maxFrameSize = n
	}
}

// receiveData runs flow accounting for an inbound DATA frame and emits the
// payload. Accounting happens even for ignored frames: the peer legally had
// the bytes in flight, so they are charged against the window and replenished
// like any others.
func (s *Stream) receiveData(f *frame.Frame, act action) error {
	n := len(f.Payload)
	s.local.Receive(n)
	if s.events.LocalWindow != nil {
		s.events.LocalWindow(s.local.Window())
	}
	if inc, ok := s.local.CreateWindowUpdate(); ok {
		s.local.ApplyWindowUpdate(int(inc))
		s.events.emitFrame(&frame.Frame{Type: frame.TypeWindowUpdate, Stream: s.id, Increment: inc})
	}

	if act != actProceed {
		return nil
	}
	payload := f.Payload
	if f.Flags.Has(frame.FlagCompressed) {
		unpacked, err := gzipDecompress(payload)
		if err != nil {
			se := &h2wire.StreamError{StreamID: s.id, Code: h2wire.ErrCodeInternalError, Reason: "compressed DATA payload is not valid gzip"}
			s.reset(se)
			return se
		}
		payload = unpacked
	}
	if s.events.Data != nil {
		s.events.Data(payload)
	}
	return nil
}

// emitHeaders delivers an inbound header block: decoded when a decoder is
// configured and the frame is a complete HEADERS, raw otherwise.
// CONTINUATION fragments are always raw; assembling a block across frames is
// the driver's job.
func (s *Stream) emitHeaders(f *frame.Frame) error {
	if s.dec != nil && s.events.Headers != nil && f.Type == frame.TypeHeaders {
		headers, err := s.dec.DecodeBytes(f.Payload)
		if err != nil {
			// HPACK failures poison the connection, not just the stream.
			return err
		}
		s.events.Headers(headers)
		return nil
	}
	if s.events.HeadersBlock != nil {
		s.events.HeadersBlock(f.Payload)
	}
	return nil
}

// reset applies the stream-error policy: the stream transitions to closed
// with a local reset, a RST_STREAM is queued through the Frame event, and
// the driver is notified through Close.
func (s *Stream) reset(se *h2wire.StreamError) {
	alreadyClosed := s.state == StateClosed
	s.state = StateClosed
	if s.reason == ReasonNone {
		s.reason = ReasonLocalRST
	}
	s.pending = nil
	s.events.emitFrame(&frame.Frame{Type: frame.TypeRSTStream, Stream: s.id, ErrCode: se.Code})
	if !alreadyClosed && !s.closeNotified {
		s.closeNotified = true
		if s.events.Close != nil {
			s.events.Close(se)
		}
	}
	s.log.Debug("stream reset", zap.String("code", se.Code.String()), zap.String("reason", se.Reason))
}

// activate fires the Active event the first time the stream leaves idle or
// reserved for a live state.
func (s *Stream) activate() {
	if s.activated {
		return
	}
	s.activated = true
	if s.events.Active != nil {
		s.events.Active()
	}
}

// closing parks the stream in the closing intermediate state, recording the
// terminal reason.
func (s *Stream) closing(reason ClosedReason) {
	if s.reason == ReasonNone {
		s.reason = reason
	}
	s.state = stateClosing
}

// completeTransition settles the intermediate states and fires the
// corresponding lifecycle events.
func (s *Stream) completeTransition() {
	switch s.state {
	case stateHalfClosingLocal:
		s.state = StateHalfClosedLocal
	case stateHalfClosingRemote:
		s.state = StateHalfClosedRemote
	case stateClosing:
		s.state = StateClosed
		s.pending = nil
		if !s.closeNotified {
			s.closeNotified = true
			if s.events.Close != nil {
				s.events.Close(s.closeErr)
			}
		}
		s.log.Debug("stream closed", zap.String("reason", s.reason.String()))
		return
	default:
		return
	}
	if s.events.HalfClose != nil {
		s.events.HalfClose()
	}
	s.log.Debug("stream half-closed", zap.String("state", s.state.String()))
}

func gzipCompress(p []byte) ([]byte, error) {
	var b bytes.Buffer
	w := gzip.NewWriter(&b)
	if _, err := w.Write(p); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func gzipDecompress(p []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
