package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/h2wire"
	"github.com/xkilldash9x/h2wire/hpack"
)

func newDefaultConfig(t *testing.T) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := newDefaultConfig(t)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "h2wire", cfg.Logger.ServiceName)
	assert.Equal(t, uint32(h2wire.DefaultInitialWindowSize), cfg.Endpoint.InitialWindowSize)
	assert.Equal(t, h2wire.DefaultMaxFrameSize, cfg.Endpoint.MaxFrameSize)
	assert.False(t, cfg.Endpoint.CompressData)

	opts, err := cfg.HPACK.Options()
	require.NoError(t, err)
	assert.Equal(t, hpack.DefaultOptions(), opts)
}

func TestEndpointSettings(t *testing.T) {
	cfg := newDefaultConfig(t)
	cfg.Endpoint.CompressData = true

	s := cfg.Endpoint.Settings()
	assert.Equal(t, uint32(h2wire.DefaultInitialWindowSize), s[h2wire.SettingInitialWindowSize])
	assert.Equal(t, uint32(1), s[h2wire.SettingCompressData])
}

func TestHPACKPreset(t *testing.T) {
	h := HPACKConfig{Preset: "diffh"}
	opts, err := h.Options()
	require.NoError(t, err)
	assert.Equal(t, hpack.DIFFH, opts)

	_, err = HPACKConfig{Preset: "bogus"}.Options()
	assert.Error(t, err)
}

func TestHPACKKnobs(t *testing.T) {
	h := HPACKConfig{Huffman: "never", Index: "static", RefSet: "always", TableSize: 256}
	opts, err := h.Options()
	require.NoError(t, err)
	assert.Equal(t, hpack.HuffmanNever, opts.Huffman)
	assert.Equal(t, hpack.IndexStatic, opts.Index)
	assert.Equal(t, hpack.RefSetAlways, opts.RefSet)
	assert.Equal(t, 256, opts.TableSize)

	_, err = HPACKConfig{Huffman: "sometimes"}.Options()
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := newDefaultConfig(t)
	cfg.Endpoint.MaxFrameSize = 1 << 20
	assert.Error(t, cfg.Validate())

	cfg = newDefaultConfig(t)
	cfg.HPACK.Preset = "nope"
	assert.Error(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
logger:
  level: debug
  format: json
endpoint:
  initial_window_size: 1048576
  compress_data: true
hpack:
  preset: LINEAR
`)
	require.NoError(t, os.WriteFile(path, body, 0o644))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, uint32(1<<20), cfg.Endpoint.InitialWindowSize)
	assert.True(t, cfg.Endpoint.CompressData)

	opts, err := cfg.HPACK.Options()
	require.NoError(t, err)
	assert.Equal(t, hpack.LINEAR, opts)
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteTemplate(path))

	v := viper.New()
	SetDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())
	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestDefaultSearchPaths(t *testing.T) {
	paths := DefaultSearchPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
}
