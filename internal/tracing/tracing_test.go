package tracing

import (
	"context"
	"errors"
	"slices"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flemzord/quill/internal/agent"
	"github.com/flemzord/quill/internal/provider/providertest"
	"github.com/flemzord/quill/internal/tool"
	"github.com/flemzord/quill/internal/tool/tooltest"
)

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := (Config{Enabled: true}).Validate(); !errors.Is(err, ErrMissingEndpoint) {
		t.Errorf("err = %v, want ErrMissingEndpoint", err)
	}
	if err := (Config{Enabled: true, Endpoint: "localhost:4318"}).Validate(); err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestNewProvider_RecordsEngineSpans(t *testing.T) {
	t.Parallel()

	exp := tracetest.NewInMemoryExporter()
	tp := NewProvider(Config{ServiceName: "quill-test"}, sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := tp.Tracer("test")

	reg := tool.NewRegistry()
	if err := reg.Register(tooltest.SimpleTool("search_documents", tool.Result{"total_results": 0})); err != nil {
		t.Fatalf("Register: %v", err)
	}
	reg.Freeze()

	p := providertest.Scripted(0,
		"Thought: Search first.\nAction: search_documents(query=\"Rome\")",
		"Thought: Done.\nAction: Final Answer\nObservation: Unknown.",
	)
	engine := agent.NewEngine(p,
		agent.NewDispatcher(reg, agent.WithDispatcherTracer(tracer)),
		agent.Config{MaxIterations: 3},
		agent.WithTracer(tracer),
	)
	s := engine.Run(context.Background(), "When did Rome fall?", "")
	if !s.Success {
		t.Fatalf("session failed: %v", s.Error)
	}

	spans := exp.GetSpans()
	var names []string
	for _, sp := range spans {
		names = append(names, sp.Name)
	}
	for _, want := range []string{"react.session", "react.generate", "tool.invoke"} {
		if !slices.Contains(names, want) {
			t.Errorf("spans = %v, missing %q", names, want)
		}
	}

	for _, sp := range spans {
		if sp.Name != "react.session" {
			continue
		}
		var found bool
		for _, kv := range sp.Resource.Attributes() {
			if kv.Key == "service.name" && kv.Value.AsString() == "quill-test" {
				found = true
			}
		}
		if !found {
			t.Errorf("service.name missing from resource %v", sp.Resource.Attributes())
		}
	}
}
