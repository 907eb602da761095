// Package config loads and saves the persistent settings of a streamremote
// server.
//
// Settings come from, in increasing priority: defaults, a YAML, JSON or TOML
// file, and environment variables prefixed with STREAMREMOTE_ (for example
// STREAMREMOTE_TCP_PORT=9101). A missing file is not an error.
package config

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/backkem/streamremote/pkg/software"
	"github.com/pion/logging"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "STREAMREMOTE"

// DefaultFileName is the base name searched for when no path is given.
const DefaultFileName = "streamremote"

// GeneratedPasswordLength is the length of a password created on first run.
const GeneratedPasswordLength = 16

// Config errors.
var (
	ErrInvalidPort     = errors.New("config: invalid port")
	ErrInvalidLogLevel = errors.New("config: invalid log_level")
	ErrInvalidOutput   = errors.New("config: invalid output")
)

// Config is the persistent server configuration.
type Config struct {
	Password         string         `mapstructure:"password"`
	TCPPort          int            `mapstructure:"tcp_port"`
	WebSocketPort    int            `mapstructure:"websocket_port"`
	LogLevel         string         `mapstructure:"log_level"`
	Advertise        bool           `mapstructure:"advertise"`
	InstanceName     string         `mapstructure:"instance_name"`
	HandshakeTimeout time.Duration  `mapstructure:"handshake_timeout"`
	Outputs          []OutputConfig `mapstructure:"outputs"`

	// PasswordGenerated is set by Load when the password was empty and a new
	// one was created.
	PasswordGenerated bool `mapstructure:"-"`

	// path is where Load found the file, or where it was asked to look.
	path string
}

// OutputConfig describes one output of the dummy software.
type OutputConfig struct {
	ID           string `mapstructure:"id"`
	Name         string `mapstructure:"name"`
	Type         string `mapstructure:"type"`
	DelaySeconds int64  `mapstructure:"delay_seconds"`
}

// Default returns a Config populated with defaults. The password is left
// empty.
func Default() *Config {
	return &Config{
		TCPPort:          software.DefaultTCPPort,
		WebSocketPort:    software.DefaultWebSocketPort,
		LogLevel:         "info",
		Advertise:        true,
		HandshakeTimeout: 10 * time.Second,
		Outputs: []OutputConfig{
			{ID: "recording", Name: "Recording", Type: "local_recording"},
			{ID: "stream", Name: "Stream", Type: "remote_stream"},
		},
	}
}

// Load reads configuration from path if non-empty, otherwise it searches
// the working directory and ~/.streamremote for a file named streamremote.
// An empty password is replaced with a generated one, which is written back
// to the file, or to ~/.streamremote/streamremote.yaml when there is none, so
// clients keep working across restarts.
func Load(path string) (*Config, error) {
	def := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("password", def.Password)
	v.SetDefault("tcp_port", def.TCPPort)
	v.SetDefault("websocket_port", def.WebSocketPort)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("advertise", def.Advertise)
	v.SetDefault("instance_name", def.InstanceName)
	v.SetDefault("handshake_timeout", def.HandshakeTimeout)
	v.SetDefault("outputs", outputMaps(def.Outputs))

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
	} else {
		v.SetConfigName(DefaultFileName)
		v.AddConfigPath(".")
		if dir, err := DefaultDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
		}
	}

	// mapstructure reuses existing slice elements, so decode into a zero Config.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.path = v.ConfigFileUsed()
	if cfg.path == "" {
		cfg.path = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Password == "" {
		password, err := GeneratePassword()
		if err != nil {
			return nil, err
		}
		cfg.Password = password
		cfg.PasswordGenerated = true

		target := cfg.path
		if target == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, fmt.Errorf("config: no place to store the password: %w", err)
			}
			target = filepath.Join(dir, DefaultFileName+".yaml")
		}
		if err := cfg.Save(target); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// DefaultDir returns ~/.streamremote.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "."+DefaultFileName), nil
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// Validate checks ports, the log level and the outputs.
func (c *Config) Validate() error {
	if err := validatePort(c.TCPPort); err != nil {
		return fmt.Errorf("%w: tcp_port %d", err, c.TCPPort)
	}
	if err := validatePort(c.WebSocketPort); err != nil {
		return fmt.Errorf("%w: websocket_port %d", err, c.WebSocketPort)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Outputs))
	for _, o := range c.Outputs {
		if o.ID == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidOutput)
		}
		if seen[o.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidOutput, o.ID)
		}
		seen[o.ID] = true
		if _, err := software.ParseOutputType(o.Type); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidOutput, o.ID, err)
		}
		if o.DelaySeconds < 0 {
			return fmt.Errorf("%w: %s: negative delay", ErrInvalidOutput, o.ID)
		}
	}
	return nil
}

func validatePort(port int) error {
	// 0 asks the system for a free port.
	if port < 0 || port > 65535 {
		return ErrInvalidPort
	}
	return nil
}

// Save writes the configuration to path. The format follows the extension;
// a path without one is written as YAML.
func (c *Config) Save(path string) error {
	v := viper.New()
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	v.Set("password", c.Password)
	v.Set("tcp_port", c.TCPPort)
	v.Set("websocket_port", c.WebSocketPort)
	v.Set("log_level", c.LogLevel)
	v.Set("advertise", c.Advertise)
	v.Set("instance_name", c.InstanceName)
	v.Set("handshake_timeout", c.HandshakeTimeout.String())
	v.Set("outputs", outputMaps(c.Outputs))

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	// The file holds the password.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("config: chmod %s: %w", path, err)
	}
	c.path = path
	return nil
}

func outputMaps(outputs []OutputConfig) []map[string]any {
	out := make([]map[string]any, 0, len(outputs))
	for _, o := range outputs {
		out = append(out, map[string]any{
			"id":            o.ID,
			"name":          o.Name,
			"type":          o.Type,
			"delay_seconds": o.DelaySeconds,
		})
	}
	return out
}

// SoftwareConfig returns the part of the configuration the streaming
// software reports to the server.
func (c *Config) SoftwareConfig() software.Config {
	return software.Config{
		Password:      c.Password,
		TCPPort:       c.TCPPort,
		WebSocketPort: c.WebSocketPort,
	}
}

// SoftwareOutputs converts the configured outputs. All start stopped.
func (c *Config) SoftwareOutputs() ([]software.Output, error) {
	outputs := make([]software.Output, 0, len(c.Outputs))
	for _, o := range c.Outputs {
		typ, err := software.ParseOutputType(o.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidOutput, o.ID, err)
		}
		name := o.Name
		if name == "" {
			name = o.ID
		}
		outputs = append(outputs, software.Output{
			ID:           o.ID,
			Name:         name,
			Type:         typ,
			State:        software.OutputStateStopped,
			DelaySeconds: o.DelaySeconds,
		})
	}
	return outputs, nil
}

// ParseLogLevel maps a level name to a pion/logging level. "warning" is
// accepted for warn and "off" for disabled.
func ParseLogLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "disabled":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "warning":
		return logging.LogLevelWarn, nil
	case "info", "":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return logging.LogLevelDisabled, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
}

// GeneratePassword returns a random password of GeneratedPasswordLength
// characters from the base32 alphabet.
func GeneratePassword() (string, error) {
	buf := make([]byte, GeneratedPasswordLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("config: generate password: %w", err)
	}
	s := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
	return s[:GeneratedPasswordLength], nil
}
