package hpack

import (
	"encoding/hex"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Story is one hpack-test-case file: a sequence of wire payloads that must
// be fed to a single decoding context in order.
type Story struct {
	Description string      `json:"description"`
	Cases       []StoryCase `json:"cases"`
}

// StoryCase is one header block within a story.
type StoryCase struct {
	Seqno           int                 `json:"seqno"`
	Wire            string              `json:"wire"`
	Headers         []map[string]string `json:"headers"`
	HeaderTableSize *int                `json:"header_table_size"`
}

// ParseStory unmarshals a story file.
func ParseStory(data []byte) (*Story, error) {
	var s Story
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing story: %w", err)
	}
	return &s, nil
}

// ExpectedHeaders flattens the case's header objects into a Header list.
func (c *StoryCase) ExpectedHeaders() []Header {
	var out []Header
	for _, obj := range c.Headers {
		for name, value := range obj {
			out = append(out, Header{Name: name, Value: value})
		}
	}
	return out
}

// RunStory decodes every wire payload in the story on one context and checks
// that each block produces the stated headers as a set.
func RunStory(s *Story) error {
	opts := DefaultOptions()
	if len(s.Cases) > 0 && s.Cases[0].HeaderTableSize != nil {
		opts.TableSize = *s.Cases[0].HeaderTableSize
	}
	d := NewDecompressor(opts)

	for i, cs := range s.Cases {
		if cs.HeaderTableSize != nil && *cs.HeaderTableSize != d.ctx.Limit() {
			d.SetLimit(*cs.HeaderTableSize)
		}
		wire, err := hex.DecodeString(cs.Wire)
		if err != nil {
			return fmt.Errorf("case %d: bad wire hex: %w", i, err)
		}
		got, err := d.DecodeBytes(wire)
		if err != nil {
			return fmt.Errorf("case %d: decode: %w", i, err)
		}
		if !sameHeaderSet(got, cs.ExpectedHeaders()) {
			return fmt.Errorf("case %d: decoded headers %v do not match expected %v", i, got, cs.ExpectedHeaders())
		}
	}
	return nil
}

// sameHeaderSet compares two header lists as multisets.
func sameHeaderSet(a, b []Header) bool {
	if len(a) != len(b) {
		return false
	}
	key := func(hs []Header) []string {
		out := make([]string, len(hs))
		for i, h := range hs {
			out[i] = h.Name + "\x00" + h.Value
		}
		sort.Strings(out)
		return out
	}
	ka, kb := key(a), key(b)
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}
