//go:build go1.18
// +build go1.18

package frame

import (
	"bytes"
	"testing"

	fuzzheaders "github.com/AdaLogics/go-fuzz-headers"

	"github.com/xkilldash9x/h2wire/buffer"
)

// FuzzParse throws arbitrary bytes at the parser. Parsing may fail but must
// never panic, and anything that parses must survive generate-then-parse.
func FuzzParse(f *testing.F) {
	f.Add([]byte{0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 'a', 'b', 'c'})
	f.Add([]byte{0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00})
	f.Fuzz(func(t *testing.T, data []byte) {
		parsed, err := Parse(buffer.New(data))
		if err != nil || parsed == nil {
			return
		}

		wire, err := Generate(parsed)
		if err != nil {
			t.Fatalf("parsed frame failed to generate: %v (%s)", err, parsed)
		}
		again, err := Parse(buffer.New(wire))
		if err != nil || again == nil {
			t.Fatalf("generated frame failed to reparse: %v", err)
		}
		if again.Type != parsed.Type || again.Stream != parsed.Stream || again.Flags != parsed.Flags {
			t.Fatalf("frame identity changed across the round trip")
		}
		if !bytes.Equal(again.Payload, parsed.Payload) {
			t.Fatalf("payload changed across the round trip")
		}
	})
}

// FuzzGenerateData builds DATA frames from derived inputs and checks the
// padding and length rules hold on the way back in.
func FuzzGenerateData(f *testing.F) {
	f.Add([]byte("seed"))
	f.Fuzz(func(t *testing.T, data []byte) {
		fz := fuzzheaders.NewConsumer(data)
		payload, err := fz.GetBytes()
		if err != nil || len(payload) > 16000 {
			return
		}
		padding, err := fz.GetInt()
		if err != nil {
			return
		}
		fr := &Frame{Type: TypeData, Stream: 1, Payload: payload, Padding: padding % 257}

		wire, err := Generate(fr)
		if err != nil {
			return
		}
		got, err := Parse(buffer.New(wire))
		if err != nil || got == nil {
			t.Fatalf("generated DATA frame failed to parse: %v", err)
		}
		if !bytes.Equal(got.Payload, payload) {
			t.Fatalf("payload mangled by padding round trip")
		}
	})
}
