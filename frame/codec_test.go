package frame

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/h2wire"
	"github.com/xkilldash9x/h2wire/buffer"
)

// roundTrip generates f, reparses it, and compares the result against f
// modulo the decode-only Length field and the encode-only Padding field.
func roundTrip(t *testing.T, f *Frame) *Frame {
	t.Helper()
	wire, err := Generate(f)
	require.NoError(t, err)

	got, err := Parse(buffer.New(wire))
	require.NoError(t, err)
	require.NotNil(t, got)

	diff := cmp.Diff(f, got,
		cmpopts.IgnoreFields(Frame{}, "Length", "Padding"),
		cmpopts.EquateEmpty(),
	)
	require.Empty(t, diff, "frame did not survive the round trip")
	return got
}

func TestRoundTripAllTypes(t *testing.T) {
	frames := []*Frame{
		{Type: TypeData, Stream: 1, Payload: []byte("hello")},
		{Type: TypeData, Stream: 1, Flags: FlagEndStream, Payload: []byte{}},
		{Type: TypeHeaders, Stream: 3, Flags: FlagEndHeaders, Payload: []byte{0x82, 0x86}},
		{Type: TypeHeaders, Stream: 3, Flags: FlagEndHeaders | FlagEndStream,
			Priority: &PrioritySpec{Exclusive: true, Dependency: 1, Weight: 10},
			Payload:  []byte{0x82}},
		{Type: TypePriority, Stream: 5, Priority: &PrioritySpec{Dependency: 3, Weight: 256}},
		{Type: TypeRSTStream, Stream: 7, ErrCode: h2wire.ErrCodeCancel},
		{Type: TypeSettings, Stream: 0, Settings: h2wire.Settings{
			h2wire.SettingHeaderTableSize:   8192,
			h2wire.SettingInitialWindowSize: 1 << 20,
			h2wire.SettingCompressData:      1,
		}},
		{Type: TypeSettings, Stream: 0, Flags: FlagAck, Settings: h2wire.Settings{}},
		{Type: TypePushPromise, Stream: 9, Flags: FlagEndHeaders, PromisedStream: 10, Payload: []byte{0x82}},
		{Type: TypePing, Stream: 0, Payload: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{Type: TypePing, Stream: 0, Flags: FlagAck, Payload: []byte{0, 0, 0, 0, 0, 0, 0, 0}},
		{Type: TypeGoAway, Stream: 0, LastStream: 41, ErrCode: h2wire.ErrCodeEnhanceYourCalm, DebugData: []byte("calm down")},
		{Type: TypeWindowUpdate, Stream: 0, Increment: 1<<31 - 1},
		{Type: TypeWindowUpdate, Stream: 11, Increment: 65535},
		{Type: TypeContinuation, Stream: 13, Flags: FlagEndHeaders, Payload: []byte{0x41, 0x00}},
		{Type: TypeAltSvc, Stream: 0, AltSvc: &AltSvc{MaxAge: 3600, Port: 443, Proto: "h2", Host: "alt.example.com", Origin: "https://example.com"}},
		{Type: TypeBlocked, Stream: 15},
	}
	for _, f := range frames {
		t.Run(f.Type.String(), func(t *testing.T) {
			roundTrip(t, f)
		})
	}
}

func TestGenerateHeaderLayout(t *testing.T) {
	wire, err := Generate(&Frame{Type: TypeData, Stream: 0x12345, Payload: []byte("abc")})
	require.NoError(t, err)
	// length:16 type:8 flags:8 stream:32, big-endian throughout.
	assert.Equal(t, []byte{0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x23, 0x45, 'a', 'b', 'c'}, wire)
}

func TestPaddingRoundTrip(t *testing.T) {
	f := &Frame{Type: TypeData, Stream: 1, Padding: 5, Payload: []byte("payload")}
	wire, err := Generate(f)
	require.NoError(t, err)

	// 7 payload bytes + 1 pad-length octet + 4 zeros.
	assert.Equal(t, byte(0x00), wire[0])
	assert.Equal(t, byte(12), wire[1])
	assert.Equal(t, byte(FlagPadded), wire[3])
	assert.Equal(t, byte(4), wire[8], "pad length octet is padding-1")

	got, err := Parse(buffer.New(wire))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got.Payload)
	assert.False(t, got.Flags.Has(FlagPadded), "padded flag is stripped on decode")
	assert.Equal(t, uint16(7), got.Length)
}

func TestPaddingLimits(t *testing.T) {
	_, err := Generate(&Frame{Type: TypeData, Stream: 1, Padding: 257, Payload: []byte("x")})
	require.Error(t, err)
	assert.True(t, h2wire.IsCompressionError(err))

	_, err = Generate(&Frame{Type: TypeRSTStream, Stream: 1, Padding: 2})
	require.Error(t, err)

	big := make([]byte, h2wire.MaxFrameLength-1)
	_, err = Generate(&Frame{Type: TypeData, Stream: 1, Padding: 2, Payload: big})
	require.Error(t, err)
}

func TestPaddingOverrunOnParse(t *testing.T) {
	// A padded DATA frame whose pad length exceeds the payload.
	wire := []byte{0x00, 0x02, 0x00, byte(FlagPadded), 0x00, 0x00, 0x00, 0x01, 0x05, 0xaa}
	_, err := Parse(buffer.New(wire))
	require.Error(t, err)
	assert.True(t, h2wire.IsCompressionError(err))
}

func TestParseIncompleteReturnsNil(t *testing.T) {
	full, err := Generate(&Frame{Type: TypeData, Stream: 1, Payload: []byte("abcdef")})
	require.NoError(t, err)

	buf := buffer.New(nil)
	for i := 0; i < len(full)-1; i++ {
		buf.Write(full[i : i+1])
		f, err := Parse(buf)
		require.NoError(t, err)
		require.Nil(t, f, "frame parsed from %d of %d bytes", i+1, len(full))
	}
	require.Equal(t, len(full)-1, buf.Len(), "incomplete parse must not consume")

	buf.Write(full[len(full)-1:])
	f, err := Parse(buf)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 0, buf.Len())
}

func TestParseStreamIDMasksReservedBit(t *testing.T) {
	wire, err := Generate(&Frame{Type: TypeData, Stream: 1, Payload: nil})
	require.NoError(t, err)
	wire[4] |= 0x80

	f, err := Parse(buffer.New(wire))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), f.Stream)
}

func TestParseUnknownType(t *testing.T) {
	wire := []byte{0x00, 0x00, 0x0c, 0x00, 0x00, 0x00, 0x00, 0x01}
	_, err := Parse(buffer.New(wire))
	require.Error(t, err)
	assert.True(t, h2wire.IsCompressionError(err))
}

func TestParseOversizeLength(t *testing.T) {
	wire := []byte{0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	_, err := Parse(buffer.New(wire))
	require.Error(t, err)
	assert.True(t, h2wire.IsCompressionError(err))
}

func TestParseCanonicalizesUnknownFlags(t *testing.T) {
	wire, err := Generate(&Frame{Type: TypeRSTStream, Stream: 1, ErrCode: h2wire.ErrCodeNoError})
	require.NoError(t, err)
	wire[3] = 0xff

	f, err := Parse(buffer.New(wire))
	require.NoError(t, err)
	assert.Equal(t, Flags(0), f.Flags)
}

func TestSettingsValidation(t *testing.T) {
	// SETTINGS on a nonzero stream.
	_, err := Generate(&Frame{Type: TypeSettings, Stream: 1, Settings: h2wire.Settings{}})
	require.Error(t, err)
	assert.True(t, h2wire.IsProtocolError(err))

	// Payload length not a multiple of six.
	wire := []byte{0x00, 0x05, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 1, 2, 3, 4, 5}
	_, err = Parse(buffer.New(wire))
	require.Error(t, err)
	assert.True(t, h2wire.IsProtocolError(err))
}

func TestSettingsUnknownIDIgnored(t *testing.T) {
	// id 0x7fff is not recognized and must be dropped silently.
	wire := []byte{
		0x00, 0x0c, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x7f, 0xff, 0x00, 0x00, 0x00, 0x01,
		0x00, 0x04, 0x00, 0x01, 0x00, 0x00,
	}
	f, err := Parse(buffer.New(wire))
	require.NoError(t, err)
	assert.Equal(t, h2wire.Settings{h2wire.SettingInitialWindowSize: 65536}, f.Settings)
}

func TestPingLengthValidation(t *testing.T) {
	_, err := Generate(&Frame{Type: TypePing, Stream: 0, Payload: []byte("short")})
	require.Error(t, err)
	assert.True(t, h2wire.IsProtocolError(err))

	wire := []byte{0x00, 0x04, 0x06, 0x00, 0x00, 0x00, 0x00, 0x00, 1, 2, 3, 4}
	_, err = Parse(buffer.New(wire))
	require.Error(t, err)
	assert.True(t, h2wire.IsProtocolError(err))
}

func TestGenerateScopeValidation(t *testing.T) {
	_, err := Generate(&Frame{Type: TypeData, Stream: 0})
	require.Error(t, err)
	assert.True(t, h2wire.IsProtocolError(err))

	_, err = Generate(&Frame{Type: TypePing, Stream: 1, Payload: make([]byte, 8)})
	require.Error(t, err)
	assert.True(t, h2wire.IsProtocolError(err))

	_, err = Generate(&Frame{Type: TypeData, Stream: 1<<31 + 5, Payload: nil})
	require.Error(t, err)
	assert.True(t, h2wire.IsCompressionError(err))
}

func TestGenerateRejectsForeignFlags(t *testing.T) {
	_, err := Generate(&Frame{Type: TypeRSTStream, Stream: 1, Flags: FlagEndHeaders})
	require.Error(t, err)
	assert.True(t, h2wire.IsCompressionError(err))
}

func TestWindowUpdateIncrementMask(t *testing.T) {
	wire, err := Generate(&Frame{Type: TypeWindowUpdate, Stream: 1, Increment: 100})
	require.NoError(t, err)
	wire[8] |= 0x80 // set the reserved bit

	f, err := Parse(buffer.New(wire))
	require.NoError(t, err)
	assert.Equal(t, uint32(100), f.Increment)
}

func TestPriorityWeightEncoding(t *testing.T) {
	f := roundTrip(t, &Frame{Type: TypePriority, Stream: 1, Priority: &PrioritySpec{Dependency: 7, Weight: 1}})
	assert.Equal(t, uint16(1), f.Priority.Weight)

	f = roundTrip(t, &Frame{Type: TypePriority, Stream: 1, Priority: &PrioritySpec{Dependency: 7, Weight: 256}})
	assert.Equal(t, uint16(256), f.Priority.Weight)
}

func TestEndStreamHelper(t *testing.T) {
	assert.True(t, (&Frame{Type: TypeData, Flags: FlagEndStream}).EndStream())
	assert.True(t, (&Frame{Type: TypeHeaders, Flags: FlagEndStream}).EndStream())
	assert.True(t, (&Frame{Type: TypeContinuation, Flags: FlagEndStream}).EndStream())
	// The bit means ACK on SETTINGS, not end-stream.
	assert.False(t, (&Frame{Type: TypeSettings, Flags: FlagAck}).EndStream())
}
