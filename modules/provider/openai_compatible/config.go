package openaicompat

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config describes a chat completions endpoint: OpenAI itself, or any
// server speaking its protocol (vLLM, Ollama, LM Studio, a gateway).
type Config struct {
	BaseURL     string            `yaml:"base_url"`
	APIKey      string            `yaml:"api_key"`
	APIKeyEnv   string            `yaml:"api_key_env"`
	Model       string            `yaml:"model"`
	MaxTokens   int               `yaml:"max_tokens"`
	Temperature *float64          `yaml:"temperature"`
	TopP        *float64          `yaml:"top_p"`
	Headers     map[string]string `yaml:"headers"` // sent with every request
	Timeout     time.Duration     `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// validate reports every problem with c at once.
func (c *Config) validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("provider.openai_compatible: "+format, args...))
	}

	switch u, err := url.Parse(c.BaseURL); {
	case c.BaseURL == "":
		bad("base_url is required")
	case err != nil:
		bad("base_url is not a valid URL: %w", err)
	case u.Scheme != "http" && u.Scheme != "https":
		bad("base_url scheme must be http or https, got %q", u.Scheme)
	}

	if c.APIKey == "" && c.APIKeyEnv == "" {
		bad("one of api_key or api_key_env is required")
	}
	if c.Model == "" {
		bad("model is required")
	}
	if c.MaxTokens < 0 {
		bad("max_tokens must not be negative")
	}
	if c.TopP != nil && (*c.TopP <= 0 || *c.TopP > 1) {
		bad("top_p must be in (0, 1], got %g", *c.TopP)
	}
	return errors.Join(errs...)
}
