package llm

import (
	"context"
	"strings"
)

// ChatMessage is one chat turn.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the chat behaviour furniture suggestions rely on.
type Client interface {
	ChatCompletion(ctx context.Context, messages []ChatMessage, temperature float64) (string, error)
}

type optionsKey struct{}

// callOptions are per-call overrides carried on the context.
type callOptions struct {
	model string
	json  bool
}

// WithModel overrides the client's model for calls made with ctx.
func WithModel(ctx context.Context, model string) context.Context {
	if strings.TrimSpace(model) == "" {
		return ctx
	}
	opts := optionsFrom(ctx)
	opts.model = strings.TrimPrefix(strings.TrimSpace(model), "models/")
	return context.WithValue(ctx, optionsKey{}, opts)
}

// WithJSONResponse asks the provider to answer with a single JSON document.
func WithJSONResponse(ctx context.Context) context.Context {
	opts := optionsFrom(ctx)
	opts.json = true
	return context.WithValue(ctx, optionsKey{}, opts)
}

func optionsFrom(ctx context.Context) callOptions {
	opts, _ := ctx.Value(optionsKey{}).(callOptions)
	return opts
}

func (o callOptions) modelOr(fallback string) string {
	if o.model != "" {
		return o.model
	}
	return fallback
}
