// Package frame implements the binary frame codec: the twelve frame types,
// their flag sets and payload layouts, and the parse/generate pair that maps
// them onto the 8-byte common header wire format.
package frame

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/h2wire"
)

// Type identifies a frame type on the wire.
type Type uint8

const (
	TypeData Type = iota
	TypeHeaders
	TypePriority
	TypeRSTStream
	TypeSettings
	TypePushPromise
	TypePing
	TypeGoAway
	TypeWindowUpdate
	TypeContinuation
	TypeAltSvc
	TypeBlocked
)

var typeNames = [...]string{
	"DATA", "HEADERS", "PRIORITY", "RST_STREAM", "SETTINGS", "PUSH_PROMISE",
	"PING", "GOAWAY", "WINDOW_UPDATE", "CONTINUATION", "ALTSVC", "BLOCKED",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("unknown frame type %d", uint8(t))
}

// known reports whether the type is one this codec speaks.
func (t Type) known() bool { return t <= TypeBlocked }

// Flags is the frame's flag octet. Which bits are meaningful depends on the
// frame type.
type Flags uint8

const (
	// FlagEndStream terminates one direction of a stream. DATA, HEADERS,
	// CONTINUATION.
	FlagEndStream Flags = 0x1
	// FlagAck acknowledges a SETTINGS or PING frame.
	FlagAck Flags = 0x1
	// FlagEndHeaders ends a header block. HEADERS, PUSH_PROMISE,
	// CONTINUATION.
	FlagEndHeaders Flags = 0x4
	// FlagPadded marks a padded payload. DATA, HEADERS, PUSH_PROMISE.
	FlagPadded Flags = 0x8
	// FlagPriority marks a HEADERS frame carrying a priority prefix.
	FlagPriority Flags = 0x20
	// FlagCompressed marks a DATA payload compressed under the
	// compress_data setting.
	FlagCompressed Flags = 0x20
)

// Has reports whether every bit of mask is set.
func (f Flags) Has(mask Flags) bool { return f&mask == mask }

// typeFlags is the set of meaningful flag bits per type; everything outside
// it is rejected on generate and canonicalized away on parse.
var typeFlags = map[Type]Flags{
	TypeData:         FlagEndStream | FlagPadded | FlagCompressed,
	TypeHeaders:      FlagEndStream | FlagEndHeaders | FlagPadded | FlagPriority,
	TypeSettings:     FlagAck,
	TypePushPromise:  FlagEndHeaders | FlagPadded,
	TypePing:         FlagAck,
	TypeContinuation: FlagEndHeaders | FlagEndStream,
}

// flagNames supports readable logging and CLI output.
var flagNames = map[Type]map[Flags]string{
	TypeData:         {FlagEndStream: "END_STREAM", FlagPadded: "PADDED", FlagCompressed: "COMPRESSED"},
	TypeHeaders:      {FlagEndStream: "END_STREAM", FlagEndHeaders: "END_HEADERS", FlagPadded: "PADDED", FlagPriority: "PRIORITY"},
	TypeSettings:     {FlagAck: "ACK"},
	TypePushPromise:  {FlagEndHeaders: "END_HEADERS", FlagPadded: "PADDED"},
	TypePing:         {FlagAck: "ACK"},
	TypeContinuation: {FlagEndHeaders: "END_HEADERS", FlagEndStream: "END_STREAM"},
}

// Names renders the flags set on a frame of type t.
func (f Flags) Names(t Type) string {
	var out []string
	for bit, name := range flagNames[t] {
		if f.Has(bit) {
			out = append(out, name)
		}
	}
	if len(out) == 0 {
		return ""
	}
	// Map iteration order is random; callers expect stable output.
	sortStrings(out)
	return strings.Join(out, "|")
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// PrioritySpec is the 5-byte priority prefix carried by PRIORITY frames and
// by HEADERS frames with the priority flag: an exclusive bit, a stream
// dependency and a weight between 1 and 256.
type PrioritySpec struct {
	Exclusive  bool
	Dependency uint32
	Weight     uint16
}

// AltSvc is the ALTSVC frame payload.
type AltSvc struct {
	MaxAge uint32
	Port   uint16
	Proto  string
	Host   string
	Origin string
}

// Frame is one protocol frame. The type-specific fields beyond Payload are
// only meaningful for their own types; the codec enforces the per-type
// field/flag matrix.
type Frame struct {
	Type   Type
	Flags  Flags
	Stream uint32

	// Length is the payload length after padding removal. Parse fills it
	// in; Generate derives it from the payload and ignores this field.
	Length uint16

	// Padding is the total padding to add on generate: one pad-length octet
	// plus Padding-1 zero octets. At most 256. Parse strips padding and
	// leaves this zero.
	Padding int

	// Payload carries DATA payloads, header-block fragments (HEADERS,
	// PUSH_PROMISE, CONTINUATION) and PING opaque data.
	Payload []byte

	Priority       *PrioritySpec   // HEADERS (priority flag), PRIORITY
	ErrCode        h2wire.ErrCode  // RST_STREAM, GOAWAY
	Settings       h2wire.Settings // SETTINGS
	PromisedStream uint32          // PUSH_PROMISE
	LastStream     uint32          // GOAWAY
	DebugData      []byte          // GOAWAY
	Increment      uint32          // WINDOW_UPDATE
	AltSvc         *AltSvc         // ALTSVC
}

// EndStream reports whether the frame terminates its direction: the
// end_stream flag on DATA, HEADERS or CONTINUATION.
func (f *Frame) EndStream() bool {
	switch f.Type {
	case TypeData, TypeHeaders, TypeContinuation:
		return f.Flags.Has(FlagEndStream)
	}
	return false
}

// ConnectionScope reports whether the type lives on stream zero.
func (f *Frame) ConnectionScope() bool {
	switch f.Type {
	case TypeSettings, TypePing, TypeGoAway:
		return true
	}
	return false
}

// StreamScope reports whether the type requires a nonzero stream id.
func (f *Frame) StreamScope() bool {
	switch f.Type {
	case TypeData, TypeHeaders, TypePriority, TypeRSTStream, TypePushPromise, TypeContinuation:
		return true
	}
	return false
}

func (f *Frame) String() string {
	s := fmt.Sprintf("%s stream=%d", f.Type, f.Stream)
	if names := f.Flags.Names(f.Type); names != "" {
		s += " flags=" + names
	}
	switch f.Type {
	case TypeRSTStream, TypeGoAway:
		s += fmt.Sprintf(" err=%s", f.ErrCode)
	case TypeWindowUpdate:
		s += fmt.Sprintf(" increment=%d", f.Increment)
	}
	return s
}
