// Package config loads the h2wire tool and endpoint configuration: logger
// settings, endpoint defaults (windows, frame size, compressed DATA) and the
// HPACK option bundle, from a YAML file, environment variables, or defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/h2wire"
	"github.com/xkilldash9x/h2wire/hpack"
)

// LoggerConfig mirrors the observability package's needs.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// EndpointConfig carries the connection-local settings an endpoint
// advertises and the knobs the stream layer reads.
type EndpointConfig struct {
	InitialWindowSize    uint32 `mapstructure:"initial_window_size" yaml:"initial_window_size"`
	MaxFrameSize         int    `mapstructure:"max_frame_size" yaml:"max_frame_size"`
	MaxConcurrentStreams uint32 `mapstructure:"max_concurrent_streams" yaml:"max_concurrent_streams"`
	CompressData         bool   `mapstructure:"compress_data" yaml:"compress_data"`
}

// Settings renders the endpoint configuration as a SETTINGS payload.
func (e EndpointConfig) Settings() h2wire.Settings {
	s := h2wire.Settings{
		h2wire.SettingInitialWindowSize:    e.InitialWindowSize,
		h2wire.SettingMaxConcurrentStreams: e.MaxConcurrentStreams,
	}
	if e.CompressData {
		s[h2wire.SettingCompressData] = 1
	}
	return s
}

// HPACKConfig selects the header-compression options, either through a named
// preset or through the individual knobs.
type HPACKConfig struct {
	Preset    string `mapstructure:"preset" yaml:"preset"`
	Huffman   string `mapstructure:"huffman" yaml:"huffman"`
	Index     string `mapstructure:"index" yaml:"index"`
	RefSet    string `mapstructure:"refset" yaml:"refset"`
	TableSize int    `mapstructure:"table_size" yaml:"table_size"`
}

// Options resolves the configuration into hpack options. A preset wins over
// the individual knobs.
func (h HPACKConfig) Options() (hpack.Options, error) {
	if h.Preset != "" {
		opts, ok := hpack.Presets[strings.ToUpper(h.Preset)]
		if !ok {
			return hpack.Options{}, fmt.Errorf("unknown hpack preset %q", h.Preset)
		}
		return opts, nil
	}

	opts := hpack.DefaultOptions()
	switch h.Huffman {
	case "", "shorter":
	case "always":
		opts.Huffman = hpack.HuffmanAlways
	case "never":
		opts.Huffman = hpack.HuffmanNever
	default:
		return hpack.Options{}, fmt.Errorf("unknown hpack huffman mode %q", h.Huffman)
	}
	switch h.Index {
	case "", "all":
	case "header":
		opts.Index = hpack.IndexHeader
	case "static":
		opts.Index = hpack.IndexStatic
	case "never":
		opts.Index = hpack.IndexNever
	default:
		return hpack.Options{}, fmt.Errorf("unknown hpack index mode %q", h.Index)
	}
	switch h.RefSet {
	case "", "shorter":
	case "always":
		opts.RefSet = hpack.RefSetAlways
	case "never":
		opts.RefSet = hpack.RefSetNever
	default:
		return hpack.Options{}, fmt.Errorf("unknown hpack refset mode %q", h.RefSet)
	}
	if h.TableSize > 0 {
		opts.TableSize = h.TableSize
	}
	return opts, nil
}

// Config is the whole configuration tree.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Endpoint EndpointConfig `mapstructure:"endpoint" yaml:"endpoint"`
	HPACK    HPACKConfig    `mapstructure:"hpack" yaml:"hpack"`
}

// SetDefaults seeds v with the defaults every field falls back to.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "h2wire")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Endpoint --
	v.SetDefault("endpoint.initial_window_size", h2wire.DefaultInitialWindowSize)
	v.SetDefault("endpoint.max_frame_size", h2wire.DefaultMaxFrameSize)
	v.SetDefault("endpoint.max_concurrent_streams", 100)
	v.SetDefault("endpoint.compress_data", false)

	// -- HPACK --
	v.SetDefault("hpack.preset", "")
	v.SetDefault("hpack.huffman", "shorter")
	v.SetDefault("hpack.index", "all")
	v.SetDefault("hpack.refset", "shorter")
	v.SetDefault("hpack.table_size", h2wire.DefaultHeaderTableSize)
}

// NewFromViper unmarshals and validates a configuration from v.
func NewFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Endpoint.InitialWindowSize > h2wire.MaxWindowSize {
		return fmt.Errorf("endpoint.initial_window_size must not exceed %d", int64(h2wire.MaxWindowSize))
	}
	if c.Endpoint.MaxFrameSize <= 0 || c.Endpoint.MaxFrameSize > h2wire.DefaultMaxFrameSize {
		return fmt.Errorf("endpoint.max_frame_size must be between 1 and %d", h2wire.DefaultMaxFrameSize)
	}
	if _, err := c.HPACK.Options(); err != nil {
		return err
	}
	return nil
}

// DefaultSearchPaths returns the directories a bare `config.yaml` is looked
// up in: the working directory, then ~/.h2wire.
func DefaultSearchPaths() []string {
	paths := []string{"."}
	if home, err := homedir.Dir(); err == nil {
		paths = append(paths, filepath.Join(home, ".h2wire"))
	}
	return paths
}

// WriteTemplate writes the default configuration as YAML, for `--config`
// bootstrapping.
func WriteTemplate(path string) error {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config template: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
