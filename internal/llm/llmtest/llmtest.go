// Package llmtest provides a scripted llm.Generator for tests.
package llmtest

import (
	"context"
	"net/http"
	"sync"

	"swotlens/internal/llm"
)

// Reply is one scripted outcome.
type Reply struct {
	Text string
	Err  error
}

// Text returns a reply that answers with s.
func Text(s string) Reply { return Reply{Text: s} }

// Fail returns a reply that fails with err.
func Fail(err error) Reply { return Reply{Err: err} }

// Status returns a reply that fails with an HTTP status from the backend.
func Status(code int, message string) Reply {
	return Reply{Err: StatusError(code, message)}
}

// StatusError builds the error a backend returns for an HTTP status.
func StatusError(code int, message string) error {
	return &llm.StatusError{Code: code, Status: http.StatusText(code), Message: message}
}

// Generator replays scripted replies in order and repeats the last one once
// the script runs out. Handler, when set, takes precedence over the script.
type Generator struct {
	Handler func(ctx context.Context, call int, req llm.Request) (string, error)

	mu       sync.Mutex
	script   []Reply
	requests []llm.Request
}

// New creates a generator that plays replies in order.
func New(replies ...Reply) *Generator {
	return &Generator{script: replies}
}

// Generate records req and returns the next scripted reply.
func (g *Generator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	call := len(g.requests)
	handler := g.Handler
	var reply Reply
	if handler == nil && len(g.script) > 0 {
		i := call - 1
		if i >= len(g.script) {
			i = len(g.script) - 1
		}
		reply = g.script[i]
	}
	g.mu.Unlock()

	if handler != nil {
		return handler(ctx, call, req)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return reply.Text, reply.Err
}

// Calls returns the number of Generate calls so far.
func (g *Generator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// Requests returns a copy of every request received.
func (g *Generator) Requests() []llm.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.Request(nil), g.requests...)
}

// Models returns the model named in each request, in call order.
func (g *Generator) Models() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	models := make([]string, len(g.requests))
	for i, r := range g.requests {
		models[i] = r.Model
	}
	return models
}
