// Package docs provides the builtin document-analysis tools. Each tool is a
// thin client for an external document service that owns retrieval,
// timeline, entity, cross-reference and citation logic; this package only
// validates arguments, forwards them, and summarizes what comes back.
package docs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flemzord/quill/internal/tool"
)

// DefaultTimeout bounds a single document-service request.
const DefaultTimeout = 30 * time.Second

// Errors returned by Client.
var (
	ErrMissingBaseURL = errors.New("docs: base_url is required")
	ErrService        = errors.New("docs: document service error")
)

// Config configures the document-service client.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Client calls the document service. Every tool maps to
// POST {base_url}/tools/{name} with the tool arguments as a JSON object;
// the response body is the tool Result.
type Client struct {
	http *resty.Client
}

// NewClient builds a Client for cfg.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, ErrMissingBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: c}, nil
}

// Invoke runs the named tool on the service.
func (c *Client) Invoke(ctx context.Context, name string, args map[string]any) (tool.Result, error) {
	var out tool.Result
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(args).
		SetResult(&out).
		Post("/tools/" + name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrService, name, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d: %s", ErrService, name, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if out == nil {
		out = tool.Result{}
	}
	return out, nil
}
