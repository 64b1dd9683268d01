package token

import (
	"context"
	"fmt"
	"time"
)

// Metadata is everything a handler may put into a credential.
type Metadata struct {
	TokenID   string
	Class     Class
	SessionID string
	Subject   string
	ClientID  string
	Scope     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	AuthTime  time.Time
	ACR       string
	Nonce     string
	Claims    map[string]any // Extra claims supplied by the caller
}

// Handler turns token metadata into an opaque credential and back. Key
// material and algorithms are the handler's concern. Encode may be slow or
// fail; callers bound it with ctx.
type Handler interface {
	Encode(ctx context.Context, meta Metadata) (string, error)
	Decode(ctx context.Context, value string) (map[string]any, error)
	// Lifetime is the default token lifetime when no rule sets one.
	Lifetime() time.Duration
}

// HandlerRegistry maps token classes to handlers. Build it once at startup;
// it is not safe to Register while other goroutines look handlers up.
type HandlerRegistry struct {
	handlers map[Class]Handler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[Class]Handler)}
}

// Register sets the handler for class c.
func (r *HandlerRegistry) Register(c Class, h Handler) *HandlerRegistry {
	r.handlers[c] = h
	return r
}

// Handler returns the handler for class c.
func (r *HandlerRegistry) Handler(c Class) (Handler, error) {
	h, ok := r.handlers[c]
	if !ok || h == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, c)
	}
	return h, nil
}
