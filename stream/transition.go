package stream

import (
	"github.com/xkilldash9x/h2wire"
	"github.com/xkilldash9x/h2wire/frame"
)

// transition validates one frame against the current state and moves the
// stream, possibly into an intermediate state that completeTransition
// settles after the frame's effects have run.
//
// Violations surface three ways: sending an illegal frame is a driver bug
// and returns an error without touching state (a protocol error, or a
// STREAM_CLOSED stream error on a closed stream); receiving a frame the
// protocol forbids on the whole connection returns a protocol error; and
// receiving a frame that only poisons this stream returns a stream error,
// which Receive answers with the reset policy.
func (s *Stream) transition(f *frame.Frame, sending bool) (action, error) {
	switch s.state {
	case StateIdle:
		return s.fromIdle(f, sending)
	case StateReservedLocal:
		return s.fromReservedLocal(f, sending)
	case StateReservedRemote:
		return s.fromReservedRemote(f, sending)
	case StateOpen:
		return s.fromOpen(f, sending)
	case StateHalfClosedLocal:
		return s.fromHalfClosedLocal(f, sending)
	case StateHalfClosedRemote:
		return s.fromHalfClosedRemote(f, sending)
	case StateClosed:
		return s.fromClosed(f, sending)
	}
	return actProceed, h2wire.NewProtocolError("stream %d in invalid state %s", s.id, s.state)
}

func (s *Stream) fromIdle(f *frame.Frame, sending bool) (action, error) {
	switch f.Type {
	case frame.TypeHeaders, frame.TypeContinuation:
		s.activate()
		if f.EndStream() {
			if sending {
				s.state = stateHalfClosingLocal
			} else {
				s.state = stateHalfClosingRemote
			}
		} else {
			s.state = StateOpen
		}
		return actProceed, nil

	case frame.TypePushPromise:
		if sending {
			s.state = StateReservedLocal
		} else {
			s.state = StateReservedRemote
		}
		if s.events.Reserved != nil {
			s.events.Reserved()
		}
		return actProceed, nil

	case frame.TypePriority:
		// Reprioritization is legal on idle streams.
		return actProceed, nil

	case frame.TypeRSTStream:
		s.closing(localOrRemoteRST(sending))
		return actProceed, nil
	}

	if sending {
		return actProceed, h2wire.NewProtocolError("cannot send %s on idle stream %d", f.Type, s.id)
	}
	return actProceed, h2wire.NewProtocolError("received %s on idle stream %d", f.Type, s.id)
}

func (s *Stream) fromReservedLocal(f *frame.Frame, sending bool) (action, error) {
	if sending {
		switch f.Type {
		case frame.TypeHeaders, frame.TypeContinuation:
			s.activate()
			s.state = stateHalfClosingRemote
			return actProceed, nil
		case frame.TypeRSTStream:
			s.closing(ReasonLocalRST)
			return actProceed, nil
		case frame.TypePriority:
			return actProceed, nil
		}
		return actProceed, h2wire.NewProtocolError("cannot send %s on reserved(local) stream %d", f.Type, s.id)
	}

	switch f.Type {
	case frame.TypePriority, frame.TypeWindowUpdate:
		return actProceed, nil
	case frame.TypeRSTStream:
		s.closing(ReasonRemoteRST)
		return actProceed, nil
	}
	return actProceed, h2wire.NewProtocolError("received %s on reserved(local) stream %d", f.Type, s.id)
}

func (s *Stream) fromReservedRemote(f *frame.Frame, sending bool) (action, error) {
	if sending {
		switch f.Type {
		case frame.TypePriority, frame.TypeWindowUpdate:
			return actProceed, nil
		case frame.TypeRSTStream:
			s.closing(ReasonLocalRST)
			return actProceed, nil
		}
		return actProceed, h2wire.NewProtocolError("cannot send %s on reserved(remote) stream %d", f.Type, s.id)
	}

	switch f.Type {
	case frame.TypeHeaders, frame.TypeContinuation:
		s.activate()
		s.state = stateHalfClosingLocal
		return actProceed, nil
	case frame.TypePriority:
		return actProceed, nil
	case frame.TypeRSTStream:
		s.closing(ReasonRemoteRST)
		return actProceed, nil
	}
	return actProceed, h2wire.NewProtocolError("received %s on reserved(remote) stream %d", f.Type, s.id)
}

func (s *Stream) fromOpen(f *frame.Frame, sending bool) (action, error) {
	switch f.Type {
	case frame.TypeRSTStream:
		s.closing(localOrRemoteRST(sending))
		return actProceed, nil
	default:
		if f.EndStream() {
			if sending {
				s.state = stateHalfClosingLocal
			} else {
				s.state = stateHalfClosingRemote
			}
		}
		return actProceed, nil
	}
}

func (s *Stream) fromHalfClosedLocal(f *frame.Frame, sending bool) (action, error) {
	if sending {
		switch f.Type {
		case frame.TypeWindowUpdate, frame.TypePriority:
			return actProceed, nil
		case frame.TypeRSTStream:
			s.closing(ReasonLocalRST)
			return actProceed, nil
		}
		return actProceed, h2wire.NewProtocolError("cannot send %s on half-closed(local) stream %d", f.Type, s.id)
	}

	switch f.Type {
	case frame.TypeData, frame.TypeHeaders, frame.TypeContinuation:
		if f.EndStream() {
			s.closing(ReasonRemoteClosed)
		}
		return actProceed, nil
	case frame.TypePriority, frame.TypeWindowUpdate:
		return actProceed, nil
	case frame.TypeRSTStream:
		s.closing(ReasonRemoteRST)
		return actProceed, nil
	}
	return actProceed, h2wire.NewProtocolError("received %s on half-closed(local) stream %d", f.Type, s.id)
}

func (s *Stream) fromHalfClosedRemote(f *frame.Frame, sending bool) (action, error) {
	if sending {
		switch f.Type {
		case frame.TypeData, frame.TypeHeaders, frame.TypeContinuation:
			if f.EndStream() {
				s.closing(ReasonLocalClosed)
			}
			return actProceed, nil
		case frame.TypePriority:
			return actProceed, nil
		case frame.TypeRSTStream:
			s.closing(ReasonLocalRST)
			return actProceed, nil
		}
		return actProceed, h2wire.NewProtocolError("cannot send %s on half-closed(remote) stream %d", f.Type, s.id)
	}

	switch f.Type {
	case frame.TypeWindowUpdate, frame.TypePriority:
		return actProceed, nil
	case frame.TypeRSTStream:
		s.closing(ReasonRemoteRST)
		return actProceed, nil
	}
	// The peer already ended its direction; anything further is a
	// stream-level violation.
	return actProceed, &h2wire.StreamError{
		StreamID: s.id,
		Code:     h2wire.ErrCodeStreamClosed,
		Reason:   "frame received on half-closed(remote) stream",
	}
}

func (s *Stream) fromClosed(f *frame.Frame, sending bool) (action, error) {
	if sending {
		switch f.Type {
		case frame.TypePriority:
			return actProceed, nil
		case frame.TypeRSTStream:
			// A reset of an already-closed stream is dropped silently.
			return actIgnore, nil
		}
		return actProceed, &h2wire.StreamError{
			StreamID: s.id,
			Code:     h2wire.ErrCodeStreamClosed,
			Reason:   "send on closed stream",
		}
	}

	if f.Type == frame.TypePriority {
		return actProceed, nil
	}

	switch s.reason {
	case ReasonLocalRST, ReasonLocalClosed:
		// The peer may not have seen our reset yet; its in-flight frames
		// are tolerated but carry no effects. DATA among them still counts
		// against the flow window (Receive handles that before consulting
		// the verdict).
		return actIgnore, nil
	default:
		switch f.Type {
		case frame.TypeRSTStream, frame.TypeWindowUpdate:
			return actIgnore, nil
		}
		return actProceed, &h2wire.StreamError{
			StreamID: s.id,
			Code:     h2wire.ErrCodeStreamClosed,
			Reason:   "frame received on closed stream",
		}
	}
}

func localOrRemoteRST(sending bool) ClosedReason {
	if sending {
		return ReasonLocalRST
	}
	return ReasonRemoteRST
}
