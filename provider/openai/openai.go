// Package openai adapts the OpenAI Chat Completions API to the
// provider.Gateway interface.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/weaveflow/weaveflow/provider"
)

// Options configure the OpenAI gateway. Temperature and MaxTokens are
// defaults; per-request values from the bundle override them.
type Options struct {
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
}

// Gateway wraps the OpenAI Chat Completions API behind provider.Gateway.
type Gateway struct {
	client *openai.Client
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
	client := openai.NewClient(clientOpts...)
	return &Gateway{client: &client, opts: opts}
}

// NewFromClient creates a gateway from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Gateway {
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

	var messages []openai.ChatCompletionMessageParamUnion
	if instructions != "" {
		messages = append(messages, openai.SystemMessage(instructions))
	}
	messages = append(messages, openai.UserMessage(req.Input))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               req.ModelID,
		Temperature:         openai.Float(g.opts.Temperature),
		MaxCompletionTokens: openai.Int(g.opts.MaxTokens),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}
	content := resp.Choices[0].Message.Content

	out := &provider.Completion{
		Content: content,
		ModelID: req.ModelID,
		Usage: provider.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
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
