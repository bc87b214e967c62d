package gateway

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrInvalidBind is returned by Validate for an unparsable bind address.
var ErrInvalidBind = errors.New("gateway: invalid bind address")

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string        `yaml:"bind"`
	Auth            AuthConfig    `yaml:"auth"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// Defaults fills zero values. Write timeouts cover a whole synchronous
// session, so they are generous.
func (c *Config) Defaults() {
	if c.Bind == "" {
		c.Bind = "127.0.0.1:8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
}

// Validate checks the bind address.
func (c Config) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidBind, c.Bind)
	}
	return nil
}

// AuthConfig configures authentication for the /api and /ws routes.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured returns true if any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
