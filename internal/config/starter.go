package config

import (
	"bytes"
	"text/template"

	"github.com/flemzord/quill/modules/provider/gemini"
)

// StarterOptions are the answers collected by `quill init`.
type StarterOptions struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKeyEnv   string
	DocsURL     string
	Backend     string
	Bind        string
	BearerToken bool
}

var starterTmpl = template.Must(template.New("quill.yaml").Parse(`version: "1"

log:
  level: info
  format: text

provider:
  kind: {{ .Provider }}
{{- if eq .Provider "openai_compatible" }}
  openai_compatible:
    base_url: {{ .BaseURL }}
    model: {{ .Model }}
    api_key_env: {{ .APIKeyEnv }}
{{- else }}
  gemini:
    model: {{ .Model }}
    api_key_env: {{ .APIKeyEnv }}
{{- end }}

agent:
  max_iterations: 5
  temperature: 0.3
  timeout: 5m

retry:
  attempts: 3
  backoff: 1s
{{ if .DocsURL }}
tools:
  document_service:
    base_url: {{ .DocsURL }}
    api_key: ${DOCUMENT_SERVICE_API_KEY:-}
{{ end }}
sessions:
  backend: {{ .Backend }}
  timeout: 30m
{{- if eq .Backend "sqlite" }}
  path: sessions.db
{{- end }}

gateway:
  bind: {{ .Bind }}
{{- if .BearerToken }}
  auth:
    bearer_token: ${QUILL_API_TOKEN}
{{- end }}

cron:
  health_report: "*/5 * * * *"
`))

// Starter renders a starter configuration file. Empty fields fall back to
// the same values as Default.
func Starter(opts StarterOptions) ([]byte, error) {
	if opts.Provider == "" {
		opts.Provider = ProviderGemini
	}
	if opts.Model == "" && opts.Provider == ProviderGemini {
		opts.Model = gemini.DefaultModel
	}
	if opts.APIKeyEnv == "" {
		opts.APIKeyEnv = gemini.DefaultAPIKeyEnv
		if opts.Provider == ProviderOpenAICompatible {
			opts.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if opts.Backend == "" {
		opts.Backend = BackendMemory
	}
	if opts.Bind == "" {
		opts.Bind = "127.0.0.1:8080"
	}

	var buf bytes.Buffer
	if err := starterTmpl.Execute(&buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
