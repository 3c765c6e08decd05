// Package anthropic adapts the Anthropic Messages API to the
// provider.Gateway interface.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/weaveflow/weaveflow/provider"
)

// Options configure the Anthropic gateway. Temperature and MaxTokens are
// defaults; per-request values from the bundle override them.
type Options struct {
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
}

// Gateway wraps the Anthropic Messages API behind provider.Gateway.
type Gateway struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{Temperature: 0.7, MaxTokens: 4096}
}

// New creates a gateway with its own client. An empty APIKey falls back to
// the SDK's environment lookup.
func New(optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates a gateway from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Gateway {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{client: client, opts: opts}
}

// Complete implements provider.Gateway.
func (g *Gateway) Complete(ctx context.Context, req provider.Request) (*provider.Completion, error) {
	instructions := req.Instructions
	if req.Schema != nil {
		instructions = provider.WithSchemaDirective(instructions, req.Schema)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.ModelID),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Input))},
		MaxTokens:   g.opts.MaxTokens,
		Temperature: anthropic.Float(g.opts.Temperature),
	}
	if instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: instructions}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = int64(*req.MaxTokens)
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	content := sb.String()

	out := &provider.Completion{
		Content: content,
		ModelID: req.ModelID,
		Usage: provider.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	if req.Schema != nil {
		structured, err := provider.ParseStructured(content, req.Schema)
		if err != nil {
			return nil, err
		}
		out.Structured = structured
	}
	return out, nil
}
