package gemini

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Defaults applied to unset Config fields.
const (
	DefaultBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel           = "gemini-2.0-flash-exp"
	DefaultAPIKeyEnv       = "GEMINI_API_KEY"
	DefaultTemperature     = 0.3
	DefaultTopP            = 0.8
	DefaultTopK            = 40
	DefaultMaxOutputTokens = 2048
	DefaultTimeout         = 60 * time.Second
)

// Config holds the Gemini backend settings.
type Config struct {
	BaseURL         string        `yaml:"base_url"`
	APIKey          string        `yaml:"api_key"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	Model           string        `yaml:"model"`
	Temperature     *float64      `yaml:"temperature"`
	TopP            *float64      `yaml:"top_p"`
	TopK            int           `yaml:"top_k"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Timeout         time.Duration `yaml:"timeout"`
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.APIKey == "" && c.APIKeyEnv == "" {
		c.APIKeyEnv = DefaultAPIKeyEnv
	}
	if c.Temperature == nil {
		t := DefaultTemperature
		c.Temperature = &t
	}
	if c.TopP == nil {
		p := DefaultTopP
		c.TopP = &p
	}
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("provider.gemini: base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("provider.gemini: base_url scheme must be http or https, got %q", u.Scheme)
	}
	if *c.Temperature < 0 || *c.Temperature > 2 {
		return fmt.Errorf("provider.gemini: temperature must be within [0, 2], got %v", *c.Temperature)
	}
	if *c.TopP < 0 || *c.TopP > 1 {
		return fmt.Errorf("provider.gemini: top_p must be within [0, 1], got %v", *c.TopP)
	}
	if c.TopK < 0 {
		return fmt.Errorf("provider.gemini: top_k must not be negative")
	}
	if c.MaxOutputTokens < 0 {
		return fmt.Errorf("provider.gemini: max_output_tokens must not be negative")
	}
	return nil
}
