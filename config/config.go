package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/wippyai/callbridge/bridge"
	"github.com/wippyai/callbridge/errors"
	"github.com/wippyai/callbridge/marshal"
	"github.com/wippyai/callbridge/native/wasmlib"
)

// Prefix is prepended to every variable name.
const Prefix = "CALLBRIDGE_"

// Log formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config holds environment-driven settings.
type Config struct {
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"console"`
	TextEncoding     string `env:"TEXT_ENCODING" envDefault:"utf-8"`
	MaxStringLen     uint32 `env:"MAX_STRING_LEN"`
	MemoryLimitPages uint32 `env:"MEMORY_LIMIT_PAGES"`
	Metrics          bool   `env:"METRICS"`
}

// Load parses the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env cannot check by type.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("log level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case FormatJSON, FormatConsole:
	default:
		return errors.InvalidInput(errors.PhaseLoad, fmt.Sprintf("log format %q", c.LogFormat))
	}
	if _, err := c.Encoding(); err != nil {
		return err
	}
	if c.MemoryLimitPages != 0 && c.MemoryLimitPages < wasmlib.MinMemoryPages {
		return errors.InvalidInput(errors.PhaseLoad,
			fmt.Sprintf("memory limit %d pages is below %d", c.MemoryLimitPages, wasmlib.MinMemoryPages))
	}
	return nil
}

// Encoding resolves TextEncoding. Strict UTF-8 is reported as nil, which is
// the adapter default.
func (c *Config) Encoding() (encoding.Encoding, error) {
	name := strings.ToLower(strings.TrimSpace(c.TextEncoding))
	if name == "" || name == "utf-8" || name == "utf8" {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindInvalidInput).
			Detail("unsupported text encoding %q", c.TextEncoding).
			Cause(err).
			Build()
	}
	return enc, nil
}

// Logger builds a zap logger for LogLevel and LogFormat.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if strings.ToLower(c.LogFormat) == FormatConsole {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// MarshalOptions returns payload adapter options for the text settings.
func (c *Config) MarshalOptions() ([]marshal.Option, error) {
	enc, err := c.Encoding()
	if err != nil {
		return nil, err
	}
	var opts []marshal.Option
	if enc != nil {
		opts = append(opts, marshal.WithEncoding(enc))
	}
	if c.MaxStringLen > 0 {
		opts = append(opts, marshal.WithMaxStringLen(c.MaxStringLen))
	}
	return opts, nil
}

// BridgeOptions returns bridge options for the text settings. The logger is
// attached separately.
func (c *Config) BridgeOptions() ([]bridge.Option, error) {
	opts, err := c.MarshalOptions()
	if err != nil {
		return nil, err
	}
	if len(opts) == 0 {
		return nil, nil
	}
	return []bridge.Option{bridge.WithMarshalOptions(opts...)}, nil
}

// WasmConfig returns the guest configuration.
func (c *Config) WasmConfig() *wasmlib.Config {
	return &wasmlib.Config{MemoryLimitPages: c.MemoryLimitPages}
}
