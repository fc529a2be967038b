package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/arclane/conduit/pkg/config/provider"
)

// Loader loads and watches configuration from a Provider, per the
// teacher's pkg/config.Loader shape.
type Loader struct {
	provider provider.Provider
	onChange func(*Config)
}

// Option configures a Loader.
type Option func(*Loader)

// WithOnChange sets a callback invoked whenever Watch detects a change.
func WithOnChange(fn func(*Config)) Option {
	return func(l *Loader) { l.onChange = fn }
}

// NewLoader builds a Loader over p.
func NewLoader(p provider.Provider, opts ...Option) *Loader {
	l := &Loader{provider: p}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the provider, expands environment variables, decodes into
// a Config, applies defaults, and validates.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	data, err := l.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}

	rawMap, err := parseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	expanded := expandEnvVars(rawMap)

	cfg := &Config{}
	if err := decodeConfig(expanded, cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Watch blocks, reloading and invoking onChange whenever the underlying
// provider signals a change, until ctx is cancelled.
func (l *Loader) Watch(ctx context.Context) error {
	changes, err := l.provider.Watch(ctx)
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	if changes == nil {
		slog.Info("config watching not supported by provider", "type", l.provider.Type())
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Error("config reload failed", "error", err)
				continue
			}
			slog.Info("config reloaded")
			if l.onChange != nil {
				l.onChange(cfg)
			}
		}
	}
}

// Close releases the underlying provider's resources.
func (l *Loader) Close() error { return l.provider.Close() }

// LoadConfig builds a provider from cfg, loads the config through it,
// and returns both so the caller can later Watch the same Loader.
func LoadConfig(ctx context.Context, cfg provider.Config) (*Config, *Loader, error) {
	p, err := provider.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("config: create provider: %w", err)
	}
	loader := NewLoader(p)
	parsed, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return parsed, loader, nil
}

// LoadConfigFile is a convenience wrapper for the common case of a local
// file, applying any .env file alongside it first (per the teacher's
// convention of environment-first config, extended here via godotenv
// rather than a hand-rolled .env reader).
func LoadConfigFile(ctx context.Context, path string) (*Config, *Loader, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("config: failed to load .env file", "path", envPath, "error", err)
		}
	}
	return LoadConfig(ctx, provider.Config{Type: provider.TypeFile, Path: path})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// parseBytes parses raw bytes as YAML, TOML, or JSON, trying each in
// turn — YAML first since it is the teacher's primary format and a
// superset of JSON, then TOML for the spec's alternate format, per spec
// §6.
func parseBytes(data []byte) (map[string]any, error) {
	var result map[string]any
	if err := yaml.Unmarshal(data, &result); err == nil && result != nil {
		return result, nil
	}
	if _, err := toml.Decode(string(data), &result); err == nil && result != nil {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse as YAML, TOML, or JSON: %w", err)
	}
	return result, nil
}

func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func expandEnvVars(input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = expandValue(v)
	}
	return result
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnvString(val)
	case map[string]any:
		return expandEnvVars(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item)
		}
		return out
	default:
		return v
	}
}

// envVarPattern matches ${VAR}, ${VAR:-default}, and $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]
			if idx := strings.Index(inner, ":-"); idx != -1 {
				name, def := inner[:idx], inner[idx+2:]
				if val := os.Getenv(name); val != "" {
					return val
				}
				return def
			}
			return os.Getenv(inner)
		}
		return os.Getenv(match[1:])
	})
}
