package cmd

import (
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/xkilldash9x/h2wire"
	"github.com/xkilldash9x/h2wire/frame"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// zap's global redirection keeps a sink goroutine alive by design.
		goleak.IgnoreTopFunction("go.uber.org/zap/zapcore.(*BufferedWriteSyncer).flushLoop"),
	)
}

// execute runs the root command with args and captures stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func sampleFrameStream(t *testing.T) []byte {
	t.Helper()
	var stream []byte
	frames := []*frame.Frame{
		{Type: frame.TypeSettings, Settings: h2wire.Settings{h2wire.SettingInitialWindowSize: 65535}},
		{Type: frame.TypeHeaders, Stream: 1, Flags: frame.FlagEndHeaders, Payload: []byte{0x82}},
		{Type: frame.TypeData, Stream: 1, Flags: frame.FlagEndStream, Payload: []byte("hi")},
	}
	for _, f := range frames {
		wire, err := frame.Generate(f)
		require.NoError(t, err)
		stream = append(stream, wire...)
	}
	return stream
}

func TestFramesCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, sampleFrameStream(t), 0o644))

	out, err := execute(t, "frames", path, "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "SETTINGS")
	assert.Contains(t, out, "HEADERS stream=1")
	assert.Contains(t, out, "DATA stream=1 flags=END_STREAM")
}

func TestFramesCommandHexInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.hex")
	require.NoError(t, os.WriteFile(path, []byte(hex.EncodeToString(sampleFrameStream(t))+"\n"), 0o644))

	out, err := execute(t, "frames", path, "--json=false")
	require.NoError(t, err)
	assert.Contains(t, out, "SETTINGS")
}

func TestFramesCommandJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, sampleFrameStream(t), 0o644))

	out, err := execute(t, "frames", path, "--json=true")
	require.NoError(t, err)
	assert.Contains(t, out, `"type":"DATA"`)
	assert.Contains(t, out, `"stream":1`)
}

func TestHpackCommand(t *testing.T) {
	out, err := execute(t, "hpack", "828786440f7777772e6578616d706c652e636f6d")
	require.NoError(t, err)
	assert.Contains(t, out, ":method: GET")
	assert.Contains(t, out, ":scheme: http")
	assert.Contains(t, out, ":path: /")
	assert.Contains(t, out, ":authority: www.example.com")
}

func TestHpackCommandBadInput(t *testing.T) {
	_, err := execute(t, "hpack", "80")
	require.Error(t, err)
}

func TestStoryCommand(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "hpack", "testdata", "story_*.json"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	args := append([]string{"story", "--parallel", "2"}, paths...)
	out, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "stories passed")
}

func TestStoryCommandFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cases":[{"wire":"zz","headers":[]}]}`), 0o644))
	_, err := execute(t, "story", path)
	require.Error(t, err)
}

func TestReadInputRawBytes(t *testing.T) {
	// Bytes that are not valid hex text must pass through untouched.
	path := filepath.Join(t.TempDir(), "raw.bin")
	raw := []byte{0x00, 0x01, 0xff, 0xfe}
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	got, err := readInput(path)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}
