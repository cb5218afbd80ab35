// Package config handles global configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/xsocket/internal/log"
)

// GlobalConfig is the static configuration under the `xsocket:` root key.
type GlobalConfig struct {
	Log     log.LoggerConfig `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Capture CaptureConfig    `mapstructure:"capture" yaml:"capture"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure `xsocket: ...`.
type configRoot struct {
	Xsocket GlobalConfig `mapstructure:"xsocket"`
}

// Load loads configuration from file. An empty path loads defaults and
// environment only. Env vars use the XSOCKET_ prefix (e.g. XSOCKET_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `xsocket.` key prefix maps to `XSOCKET_` via the key replacer
	// (e.g. key "xsocket.capture.interface" -> env "XSOCKET_CAPTURE_INTERFACE").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToListHookFunc(","),
	))
	if err := v.Unmarshal(&root, hooks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Xsocket

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// stringToListHookFunc splits a separated string into a slice of any
// element type, which is how env vars carry lists ("53,5353"). The
// decoder then converts each element to the target type.
func stringToListHookFunc(sep string) mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Slice {
			return data, nil
		}
		raw := strings.TrimSpace(reflect.ValueOf(data).String())
		if raw == "" {
			return []string{}, nil
		}
		parts := strings.Split(raw, sep)
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, nil
	}
}

// setDefaults sets default values for configuration.
// All keys use the "xsocket." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("xsocket.log.level", "info")
	v.SetDefault("xsocket.log.pattern", log.DefaultPattern)
	v.SetDefault("xsocket.log.time", log.DefaultTime)
	v.SetDefault("xsocket.log.appenders", []map[string]interface{}{{"type": log.AppenderConsole}})

	// Metrics defaults
	v.SetDefault("xsocket.metrics.enabled", false)
	v.SetDefault("xsocket.metrics.listen", ":9091")
	v.SetDefault("xsocket.metrics.path", "/metrics")

	// Capture defaults
	v.SetDefault("xsocket.capture.interface", "")
	v.SetDefault("xsocket.capture.interface_index", 0)
	v.SetDefault("xsocket.capture.src_ips", []string{})
	v.SetDefault("xsocket.capture.dst_ips", []string{})
	v.SetDefault("xsocket.capture.src_ports", []int{})
	v.SetDefault("xsocket.capture.dst_ports", []int{})
	v.SetDefault("xsocket.capture.ether_types", []string{})
	v.SetDefault("xsocket.capture.ip_protocols", []string{})
	v.SetDefault("xsocket.capture.duration", "0s")
	v.SetDefault("xsocket.capture.read_timeout", "100ms")
	v.SetDefault("xsocket.capture.promiscuous", false)
	v.SetDefault("xsocket.capture.store", false)
	v.SetDefault("xsocket.capture.store_limit", 0)
	v.SetDefault("xsocket.capture.stop_on_store_limit", false)
	v.SetDefault("xsocket.capture.receive_undefined", false)
	v.SetDefault("xsocket.capture.engine", "socket")
	v.SetDefault("xsocket.capture.kernel_filter", false)
	v.SetDefault("xsocket.capture.bpf_expression", "")
	v.SetDefault("xsocket.capture.channel_capacity", 4096)
	v.SetDefault("xsocket.capture.snap_len", 65535)
	v.SetDefault("xsocket.capture.ring_size_mb", 16)
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if err := cfg.Log.Validate(); err != nil {
		return err
	}
	if cfg.Log.Pattern == "" {
		cfg.Log.Pattern = log.DefaultPattern
	}
	if cfg.Log.Time == "" {
		cfg.Log.Time = log.DefaultTime
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return errors.New("metrics.listen is required when metrics.enabled=true")
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("invalid metrics.path: %q (must start with /)", cfg.Metrics.Path)
		}
	}

	// ── Capture validation ──
	if _, err := cfg.Capture.Options(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}

// Dump writes the effective configuration as YAML under the root key.
func Dump(w io.Writer, cfg *GlobalConfig) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]*GlobalConfig{"xsocket": cfg}); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
