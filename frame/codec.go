package frame

import (
	"sort"

	"github.com/xkilldash9x/h2wire"
	"github.com/xkilldash9x/h2wire/buffer"
)

// headerLen is the size of the common frame header: length:16, type:8,
// flags:8, stream:32 with a reserved top bit.
const headerLen = 8

// maxPadding bounds the total padding: one pad-length octet plus up to 255
// zero octets.
const maxPadding = 256

// Generate serializes f. The length field is computed from the payload; the
// caller never sets it.
func Generate(f *Frame) ([]byte, error) {
	if !f.Type.known() {
		return nil, h2wire.NewCompressionError("unknown frame type %d", uint8(f.Type))
	}
	if f.Stream > h2wire.MaxStreamID {
		return nil, h2wire.NewCompressionError("stream id %d exceeds 31 bits", f.Stream)
	}
	if f.Flags&^typeFlags[f.Type] != 0 {
		return nil, h2wire.NewCompressionError("invalid flags %#02x for %s", uint8(f.Flags), f.Type)
	}
	if f.ConnectionScope() && f.Stream != 0 {
		return nil, h2wire.NewProtocolError("%s requires stream 0, got %d", f.Type, f.Stream)
	}
	if f.StreamScope() && f.Stream == 0 {
		return nil, h2wire.NewProtocolError("%s requires a nonzero stream id", f.Type)
	}

	payload, flags, err := generatePayload(f)
	if err != nil {
		return nil, err
	}

	if f.Padding > 0 {
		payload, flags, err = pad(f, payload, flags)
		if err != nil {
			return nil, err
		}
	}
	if len(payload) > h2wire.MaxFrameLength {
		return nil, h2wire.NewCompressionError("frame length %d exceeds maximum %d", len(payload), h2wire.MaxFrameLength)
	}

	out := buffer.New(make([]byte, 0, headerLen+len(payload)))
	out.WriteUint16(uint16(len(payload)))
	out.WriteByte(byte(f.Type))
	out.WriteByte(byte(flags))
	out.WriteUint32(f.Stream & h2wire.MaxStreamID)
	out.Write(payload)
	return out.Bytes(), nil
}

// pad applies the padding scheme to a serialized payload: a one-octet pad
// length of Padding-1, then that many zero octets at the tail.
func pad(f *Frame, payload []byte, flags Flags) ([]byte, Flags, error) {
	switch f.Type {
	case TypeData, TypeHeaders, TypePushPromise:
	default:
		return nil, 0, h2wire.NewCompressionError("%s cannot carry padding", f.Type)
	}
	if f.Padding > maxPadding {
		return nil, 0, h2wire.NewCompressionError("padding %d exceeds maximum %d", f.Padding, maxPadding)
	}
	if f.Padding+len(payload) > h2wire.MaxFrameLength {
		return nil, 0, h2wire.NewCompressionError("padding overruns maximum frame length")
	}
	padded := make([]byte, 0, len(payload)+f.Padding)
	padded = append(padded, byte(f.Padding-1))
	padded = append(padded, payload...)
	padded = append(padded, make([]byte, f.Padding-1)...)
	return padded, flags | FlagPadded, nil
}

func generatePayload(f *Frame) ([]byte, Flags, error) {
	flags := f.Flags &^ FlagPadded

	switch f.Type {
	case TypeData, TypeContinuation, TypeBlocked:
		if f.Type == TypeBlocked && len(f.Payload) != 0 {
			return nil, 0, h2wire.NewProtocolError("BLOCKED carries no payload")
		}
		return f.Payload, flags, nil

	case TypeHeaders:
		if f.Priority == nil {
			return f.Payload, flags &^ FlagPriority, nil
		}
		out := buffer.New(make([]byte, 0, 5+len(f.Payload)))
		writePriority(out, f.Priority)
		out.Write(f.Payload)
		return out.Bytes(), flags | FlagPriority, nil

	case TypePriority:
		if f.Priority == nil {
			return nil, 0, h2wire.NewProtocolError("PRIORITY requires a priority spec")
		}
		out := buffer.New(make([]byte, 0, 5))
		writePriority(out, f.Priority)
		return out.Bytes(), flags, nil

	case TypeRSTStream:
		out := buffer.New(make([]byte, 0, 4))
		out.WriteUint32(uint32(f.ErrCode))
		return out.Bytes(), flags, nil

	case TypeSettings:
		ids := make([]h2wire.SettingID, 0, len(f.Settings))
		for id := range f.Settings {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out := buffer.New(make([]byte, 0, 6*len(ids)))
		for _, id := range ids {
			out.WriteUint16(uint16(id))
			out.WriteUint32(f.Settings[id])
		}
		return out.Bytes(), flags, nil

	case TypePushPromise:
		if f.PromisedStream == 0 || f.PromisedStream > h2wire.MaxStreamID {
			return nil, 0, h2wire.NewProtocolError("PUSH_PROMISE promised stream %d out of range", f.PromisedStream)
		}
		out := buffer.New(make([]byte, 0, 4+len(f.Payload)))
		out.WriteUint32(f.PromisedStream & h2wire.MaxStreamID)
		out.Write(f.Payload)
		return out.Bytes(), flags, nil

	case TypePing:
		if len(f.Payload) != 8 {
			return nil, 0, h2wire.NewProtocolError("PING payload must be 8 bytes, got %d", len(f.Payload))
		}
		return f.Payload, flags, nil

	case TypeGoAway:
		if f.LastStream > h2wire.MaxStreamID {
			return nil, 0, h2wire.NewProtocolError("GOAWAY last stream %d out of range", f.LastStream)
		}
		out := buffer.New(make([]byte, 0, 8+len(f.DebugData)))
		out.WriteUint32(f.LastStream)
		out.WriteUint32(uint32(f.ErrCode))
		out.Write(f.DebugData)
		return out.Bytes(), flags, nil

	case TypeWindowUpdate:
		if f.Increment > h2wire.MaxWindowSize {
			return nil, 0, h2wire.NewProtocolError("window increment %d out of range", f.Increment)
		}
		out := buffer.New(make([]byte, 0, 4))
		out.WriteUint32(f.Increment)
		return out.Bytes(), flags, nil

	case TypeAltSvc:
		if f.AltSvc == nil {
			return nil, 0, h2wire.NewProtocolError("ALTSVC requires a payload spec")
		}
		a := f.AltSvc
		if len(a.Proto) > 255 || len(a.Host) > 255 {
			return nil, 0, h2wire.NewCompressionError("ALTSVC proto/host exceed 255 bytes")
		}
		out := buffer.New(make([]byte, 0, 8+len(a.Proto)+len(a.Host)+len(a.Origin)))
		out.WriteUint32(a.MaxAge)
		out.WriteUint16(a.Port)
		out.WriteByte(byte(len(a.Proto)))
		out.WriteString(a.Proto)
		out.WriteByte(byte(len(a.Host)))
		out.WriteString(a.Host)
		out.WriteString(a.Origin)
		return out.Bytes(), flags, nil
	}
	return nil, 0, h2wire.NewCompressionError("unknown frame type %d", uint8(f.Type))
}

func writePriority(out *buffer.Buffer, p *PrioritySpec) {
	dep := p.Dependency & h2wire.MaxStreamID
	if p.Exclusive {
		dep |= 1 << 31
	}
	out.WriteUint32(dep)
	weight := p.Weight
	if weight == 0 {
		weight = 16
	}
	out.WriteByte(byte(weight - 1))
}

// Parse decodes the next frame from buf. It returns (nil, nil) without
// consuming anything until both the common header and the full declared
// payload are buffered.
func Parse(buf *buffer.Buffer) (*Frame, error) {
	head, err := buf.Peek(headerLen)
	if err != nil {
		return nil, nil
	}
	length := int(head[0])<<8 | int(head[1])
	if length > h2wire.MaxFrameLength {
		return nil, h2wire.NewCompressionError("frame length %d exceeds maximum %d", length, h2wire.MaxFrameLength)
	}
	if buf.Len() < headerLen+length {
		return nil, nil
	}

	f := &Frame{
		Type:  Type(head[2]),
		Flags: Flags(head[3]),
	}
	if !f.Type.known() {
		return nil, h2wire.NewCompressionError("unknown frame type %d", head[2])
	}
	// Canonicalize: drop flag bits that mean nothing for this type, mask the
	// reserved top bit of the stream id.
	f.Flags &= typeFlags[f.Type]
	f.Stream = (uint32(head[4])<<24 | uint32(head[5])<<16 | uint32(head[6])<<8 | uint32(head[7])) & h2wire.MaxStreamID

	buf.Discard(headerLen)
	raw, err := buf.Read(length)
	if err != nil {
		return nil, err
	}
	payload := append([]byte(nil), raw...)

	if f.Flags.Has(FlagPadded) {
		payload, err = unpad(f, payload)
		if err != nil {
			return nil, err
		}
	}

	if err := parsePayload(f, payload); err != nil {
		return nil, err
	}
	return f, nil
}

// unpad strips the pad-length octet and the trailing padding, clearing the
// padded flag so the parsed frame is canonical.
func unpad(f *Frame, payload []byte) ([]byte, error) {
	switch f.Type {
	case TypeData, TypeHeaders, TypePushPromise:
	default:
		return nil, h2wire.NewCompressionError("%s cannot carry padding", f.Type)
	}
	if len(payload) < 1 {
		return nil, h2wire.NewCompressionError("padding overrun")
	}
	padLen := int(payload[0])
	if padLen > len(payload)-1 {
		return nil, h2wire.NewCompressionError("padding overrun")
	}
	f.Flags &^= FlagPadded
	return payload[1 : len(payload)-padLen], nil
}

func parsePayload(f *Frame, payload []byte) error {
	f.Length = uint16(len(payload))
	buf := buffer.New(payload)

	switch f.Type {
	case TypeData, TypeContinuation:
		f.Payload = payload
		return nil

	case TypeBlocked:
		if len(payload) != 0 {
			return h2wire.NewProtocolError("BLOCKED carries no payload")
		}
		return nil

	case TypeHeaders:
		if f.Flags.Has(FlagPriority) {
			p, err := readPriority(buf)
			if err != nil {
				return err
			}
			f.Priority = p
			// Like the padded flag, the priority flag is a wire artifact;
			// the Priority field carries the information from here on.
			f.Flags &^= FlagPriority
		}
		f.Payload = buf.Bytes()
		return nil

	case TypePriority:
		if len(payload) != 5 {
			return h2wire.NewProtocolError("PRIORITY payload must be 5 bytes, got %d", len(payload))
		}
		p, err := readPriority(buf)
		if err != nil {
			return err
		}
		f.Priority = p
		return nil

	case TypeRSTStream:
		if len(payload) != 4 {
			return h2wire.NewProtocolError("RST_STREAM payload must be 4 bytes, got %d", len(payload))
		}
		code, _ := buf.ReadUint32()
		f.ErrCode = h2wire.ErrCode(code)
		return nil

	case TypeSettings:
		if f.Stream != 0 {
			return h2wire.NewProtocolError("SETTINGS requires stream 0, got %d", f.Stream)
		}
		if len(payload)%6 != 0 {
			return h2wire.NewProtocolError("SETTINGS payload length %d is not a multiple of 6", len(payload))
		}
		f.Settings = h2wire.Settings{}
		for !buf.Empty() {
			id, _ := buf.ReadUint16()
			value, _ := buf.ReadUint32()
			sid := h2wire.SettingID(id)
			if !sid.Known() {
				continue
			}
			f.Settings[sid] = value
		}
		return nil

	case TypePushPromise:
		promised, err := buf.ReadUint32()
		if err != nil {
			return h2wire.NewProtocolError("PUSH_PROMISE payload truncated")
		}
		f.PromisedStream = promised & h2wire.MaxStreamID
		f.Payload = buf.Bytes()
		return nil

	case TypePing:
		if len(payload) != 8 {
			return h2wire.NewProtocolError("PING payload must be 8 bytes, got %d", len(payload))
		}
		f.Payload = payload
		return nil

	case TypeGoAway:
		if len(payload) < 8 {
			return h2wire.NewProtocolError("GOAWAY payload must be at least 8 bytes, got %d", len(payload))
		}
		last, _ := buf.ReadUint32()
		code, _ := buf.ReadUint32()
		f.LastStream = last & h2wire.MaxStreamID
		f.ErrCode = h2wire.ErrCode(code)
		if !buf.Empty() {
			f.DebugData = buf.Bytes()
		}
		return nil

	case TypeWindowUpdate:
		if len(payload) != 4 {
			return h2wire.NewProtocolError("WINDOW_UPDATE payload must be 4 bytes, got %d", len(payload))
		}
		inc, _ := buf.ReadUint32()
		f.Increment = inc & h2wire.MaxStreamID
		return nil

	case TypeAltSvc:
		a := &AltSvc{}
		maxAge, err := buf.ReadUint32()
		if err != nil {
			return h2wire.NewProtocolError("ALTSVC payload truncated")
		}
		a.MaxAge = maxAge
		port, err := buf.ReadUint16()
		if err != nil {
			return h2wire.NewProtocolError("ALTSVC payload truncated")
		}
		a.Port = port
		proto, err := readLengthPrefixed(buf)
		if err != nil {
			return h2wire.NewProtocolError("ALTSVC payload truncated")
		}
		a.Proto = proto
		host, err := readLengthPrefixed(buf)
		if err != nil {
			return h2wire.NewProtocolError("ALTSVC payload truncated")
		}
		a.Host = host
		a.Origin = string(buf.Bytes())
		f.AltSvc = a
		return nil
	}
	return h2wire.NewCompressionError("unknown frame type %d", uint8(f.Type))
}

func readPriority(buf *buffer.Buffer) (*PrioritySpec, error) {
	dep, err := buf.ReadUint32()
	if err != nil {
		return nil, h2wire.NewProtocolError("priority prefix truncated")
	}
	weight, err := buf.ReadByte()
	if err != nil {
		return nil, h2wire.NewProtocolError("priority prefix truncated")
	}
	return &PrioritySpec{
		Exclusive:  dep&(1<<31) != 0,
		Dependency: dep & h2wire.MaxStreamID,
		Weight:     uint16(weight) + 1,
	}, nil
}

func readLengthPrefixed(buf *buffer.Buffer) (string, error) {
	n, err := buf.ReadByte()
	if err != nil {
		return "", err
	}
	p, err := buf.Read(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}
