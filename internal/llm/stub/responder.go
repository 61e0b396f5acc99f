// Package stub provides an in-process llm.Responder.
package stub

import (
	"context"
	"sync"
	"time"

	"paidchat/internal/llm"
)

// Responder returns a fixed reply, optionally after Delay.
type Responder struct {
	Reply string
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	calls []llm.Request
}

// NewResponder creates a stub that answers with reply.
func NewResponder(reply string) *Responder {
	return &Responder{Reply: reply}
}

// Respond records req and returns Reply or Err. Delay honours ctx.
func (r *Responder) Respond(ctx context.Context, req llm.Request) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	r.mu.Unlock()

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Reply, nil
}

// Calls returns the requests received so far.
func (r *Responder) Calls() []llm.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]llm.Request, len(r.calls))
	copy(out, r.calls)
	return out
}

var _ llm.Responder = (*Responder)(nil)
