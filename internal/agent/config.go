package agent

import "time"

// Default values for Config.
const (
	DefaultMaxIterations = 5
	DefaultTemperature   = 0.3
	DefaultTimeout       = 5 * time.Minute
)

// Config controls the reasoning loop.
type Config struct {
	// MaxIterations is the number of reasoning rounds before the engine
	// forces a synthesized final answer.
	MaxIterations int `yaml:"max_iterations"`

	// Temperature is sent with every generation request. Nil means
	// DefaultTemperature.
	Temperature *float64 `yaml:"temperature"`

	// Timeout is the maximum wall-clock duration of one run. A shorter
	// deadline already on the caller's context still wins.
	Timeout time.Duration `yaml:"timeout"`
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Temperature == nil {
		c.Temperature = ptr(DefaultTemperature)
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}
