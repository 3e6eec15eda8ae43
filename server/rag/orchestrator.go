package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lectern-io/lectern/plugin/llm"
	"github.com/lectern-io/lectern/store"
)

const systemInstructions = `You are an assistant for questions about course materials.

You have one tool, "search_course_content", which searches indexed course transcripts.
- Use it only for questions about specific course content or lesson details.
- At most ONE search per query. Never search again after receiving results.
- Answer general-knowledge questions directly, without searching.
- If the search reports an error or finds nothing relevant, tell the user exactly that. Never invent course content.
Keep answers concise and grounded in the retrieved material.`

// Provider is the language-model boundary: messages and optional tool
// schemas in, either a text answer or structured tool requests out.
type Provider interface {
	Complete(ctx context.Context, messages []llm.Message, toolDefs []map[string]any) (*llm.Message, error)
}

// Outcome is the result of one user turn, as an explicit variant rather
// than a response shape to be re-inspected at each call site.
type Outcome interface {
	answer() string
	sources() []Source
}

// DirectAnswer is a turn the model answered without retrieving.
type DirectAnswer struct {
	Text string
}

func (d DirectAnswer) answer() string    { return d.Text }
func (d DirectAnswer) sources() []Source { return nil }

// ToolExchange is a turn with one retrieval round-trip: the model's tool
// requests, their results, and the follow-up answer.
type ToolExchange struct {
	Calls   []llm.ToolCall
	Results []string
	Text    string
	Sources []Source
}

func (e *ToolExchange) answer() string    { return e.Text }
func (e *ToolExchange) sources() []Source { return e.Sources }

// Reply is what a turn hands back to the transport layer.
type Reply struct {
	Text    string
	Sources []Source
}

// Orchestrator runs user turns: it calls the provider with the tool schema
// set, executes requested tools, and forces a terminal answer by omitting
// the schemas from the one permitted follow-up call.
type Orchestrator struct {
	provider Provider
	registry *Registry
	sessions *store.Store
}

// NewOrchestrator wires the provider, tool registry and session store.
func NewOrchestrator(provider Provider, registry *Registry, sessions *store.Store) *Orchestrator {
	return &Orchestrator{provider: provider, registry: registry, sessions: sessions}
}

// Turn processes one user query against a session: it runs the provider
// loop with that session's history and persists the new exchange.
// Provider failures propagate; there is no fallback answer.
func (o *Orchestrator) Turn(ctx context.Context, sessionID, query string) (*Reply, error) {
	history := o.sessions.History(sessionID)

	outcome, err := o.runTurn(ctx, history, query)
	if err != nil {
		return nil, err
	}

	reply := &Reply{Text: outcome.answer(), Sources: outcome.sources()}
	o.sessions.AddExchange(sessionID, query, reply.Text)
	return reply, nil
}

// runTurn drives at most two provider calls and returns the explicit
// outcome variant.
func (o *Orchestrator) runTurn(ctx context.Context, history, query string) (Outcome, error) {
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt(history)},
		{Role: "user", Content: query},
	}

	first, err := o.provider.Complete(ctx, messages, o.registry.Definitions())
	if err != nil {
		return nil, fmt.Errorf("provider call failed: %w", err)
	}

	if len(first.ToolCalls) == 0 {
		slog.Info("turn answered directly", "chars", len(first.Content))
		return DirectAnswer{Text: first.Content}, nil
	}

	exchange := &ToolExchange{Calls: first.ToolCalls}
	messages = append(messages, *first)

	// Some models repeat a tool_call_id within one response; execute each
	// requested call once.
	seen := make(map[string]bool)
	for _, tc := range first.ToolCalls {
		if seen[tc.ID] {
			continue
		}
		seen[tc.ID] = true

		slog.Info("tool requested", "tool", tc.Function.Name, "input", tc.Function.Arguments)
		text, srcs := o.registry.Dispatch(ctx, tc.Function.Name, tc.Function.Arguments)

		exchange.Results = append(exchange.Results, text)
		exchange.Sources = append(exchange.Sources, srcs...)
		messages = append(messages, llm.Message{
			Role:       "tool",
			ToolCallID: tc.ID,
			Content:    text,
		})
	}

	// The follow-up call carries no tool schemas: the single permitted
	// retrieval round-trip is over and this answer is final.
	second, err := o.provider.Complete(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("follow-up provider call failed: %w", err)
	}
	exchange.Text = second.Content
	return exchange, nil
}

func systemPrompt(history string) string {
	if history == "" {
		return systemInstructions
	}
	return systemInstructions + "\n\nPrevious conversation:\n" + history
}
