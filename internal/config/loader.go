package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// FileName is the config file name looked up by Find.
const FileName = "quill.yaml"

// ErrNotFound is returned by Find when no candidate file exists.
var ErrNotFound = errors.New("config: no configuration file found")

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// Load reads a YAML configuration file, expands environment variables,
// parses it, and applies Defaults. It does not validate.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands and decodes raw YAML. Unknown keys are rejected.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("expanding variables: %w", err)
	}

	var cfg Config
	if err := decodeStrict(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	cfg.Defaults()
	return &cfg, nil
}

func decodeStrict(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// CandidatePaths lists the locations Find checks, in order:
// $XDG_CONFIG_HOME/quill, ~/.config/quill, then the working directory.
func CandidatePaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "quill", FileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "quill", FileName))
	}
	return append(paths, FileName)
}

// Find returns the first existing candidate path.
func Find() (string, error) {
	for _, p := range CandidatePaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("config: checking %s: %w", p, err)
		}
	}
	return "", ErrNotFound
}

// expandEnv replaces ${VAR} and ${VAR:-default} patterns in raw YAML bytes.
// Returns an error listing all unresolved variables (no default, no env value).
func expandEnv(raw []byte) ([]byte, error) {
	var errs []error

	result := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		name := string(subs[1])

		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if subs[2] != nil {
			return subs[2]
		}

		errs = append(errs, fmt.Errorf("unresolved variable: %s", name))
		return match
	})

	return result, errors.Join(errs...)
}
