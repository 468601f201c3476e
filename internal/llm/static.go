package llm

import (
	"context"
	"sync"
)

// StaticCompleter is a test double that returns a canned response and
// records every request.
type StaticCompleter struct {
	Response string
	Err      error

	mu       sync.Mutex
	requests []Request
}

// Complete records req and returns the canned response.
func (s *StaticCompleter) Complete(ctx context.Context, req Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Err != nil {
		return "", s.Err
	}
	return s.Response, nil
}

// Requests returns the requests seen so far.
func (s *StaticCompleter) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

var (
	_ Completer = (*StaticCompleter)(nil)
	_ Completer = CompleterFunc(nil)
)
