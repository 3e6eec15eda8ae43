// Package rag drives the retrieval-augmented answer flow: a registry of
// model-invocable tools and the orchestration loop that allows the model at
// most one retrieval round-trip per user turn.
package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/tools"
)

// Tool is a capability the model may request by name. It extends the
// langchaingo tool contract with the JSON schema sent to the provider.
type Tool interface {
	tools.Tool
	Definition() map[string]any
}

// SourcedTool is implemented by tools that produce attribution records
// alongside their text output. Sources are a per-invocation return value,
// never registry state, so concurrent turns cannot observe each other's
// attributions.
type SourcedTool interface {
	CallWithSources(ctx context.Context, input string) (string, []Source, error)
}

// Source attributes a piece of retrieved content for UI display.
type Source struct {
	Course string `json:"course"`
	Lesson *int   `json:"lesson,omitempty"`
}

// Label renders the source as shown to users, e.g.
// "Building Agentic RAG with Claude - Lesson 2".
func (s Source) Label() string {
	if s.Lesson != nil {
		return fmt.Sprintf("%s - Lesson %d", s.Course, *s.Lesson)
	}
	return s.Course
}

// Registry maps tool names to instances. Register everything at startup;
// the registry is read-only afterwards.
type Registry struct {
	names   []string
	entries map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name replaces the instance.
func (r *Registry) Register(t Tool) {
	if _, ok := r.entries[t.Name()]; !ok {
		r.names = append(r.names, t.Name())
	}
	r.entries[t.Name()] = t
}

// Definitions returns every tool schema in registration order, for the
// provider call.
func (r *Registry) Definitions() []map[string]any {
	defs := make([]map[string]any, 0, len(r.names))
	for _, name := range r.names {
		defs = append(defs, r.entries[name].Definition())
	}
	return defs
}

// Dispatch executes the named tool. Failures come back as explanatory text
// for the model, never as an error: an unanswerable tool call still has to
// produce a tool message.
func (r *Registry) Dispatch(ctx context.Context, name, input string) (string, []Source) {
	t, ok := r.entries[name]
	if !ok {
		return fmt.Sprintf("Unknown tool: %s", name), nil
	}

	if st, ok := t.(SourcedTool); ok {
		text, sources, err := st.CallWithSources(ctx, input)
		if err != nil {
			slog.Warn("tool call failed", "tool", name, "err", err)
			return "Error: " + err.Error(), nil
		}
		return text, sources
	}

	text, err := t.Call(ctx, input)
	if err != nil {
		slog.Warn("tool call failed", "tool", name, "err", err)
		return "Error: " + err.Error(), nil
	}
	return text, nil
}

// buildToolDef constructs an OpenAI-compatible tool definition map.
func buildToolDef(name, description string, properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        name,
			"description": description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}
