package llmclient

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bamlgo/baml/internal/bamlerr"
	"github.com/bamlgo/baml/internal/ir"
	"github.com/bamlgo/baml/internal/template"
)

// Client is one declared {provider, options, retry policy, default role}
// binding, resolved against a concrete environment snapshot and backed by
// one Provider adapter.
type Client struct {
	Name        string
	Provider    Provider
	DefaultRole string
	Model       string
	retry       *RetryDriver
	resolver    *MediaResolver
	mediaMode   MediaEncoding
}

// NewClient builds a Client from its IR declaration, resolving its options
// bag against env and selecting the matching Provider adapter.
func NewClient(decl *ir.Client, policy *ir.RetryPolicy, env Env) (*Client, error) {
	opts, err := ResolveOptions(decl.Options, decl.OptionOrder, env)
	if err != nil {
		return nil, err
	}
	var provider Provider
	mode := MediaAsBase64
	switch decl.Provider {
	case "openai":
		provider = NewOpenAIProvider(opts)
		mode = MediaAsURL
	case "anthropic":
		provider = NewAnthropicProvider(opts)
	case "google-ai":
		provider = NewGoogleAIProvider(opts, false)
	case "vertex":
		provider = NewGoogleAIProvider(opts, true)
	default:
		return nil, bamlerr.New(bamlerr.ValidationError, "unknown provider %q for client %q", decl.Provider, decl.Name)
	}
	defaultRole := "user"
	return &Client{
		Name:        decl.Name,
		Provider:    provider,
		DefaultRole: defaultRole,
		Model:       opts.Model,
		retry:       &RetryDriver{Policy: policy},
		resolver:    NewMediaResolver(&http.Client{Timeout: 60 * time.Second}),
		mediaMode:   mode,
	}, nil
}

// Call resolves a rendered prompt into provider-ready messages and runs it
// through the retry driver. callOpts.Model, if unset, defaults to the
// client's declared model option.
func (c *Client) Call(ctx context.Context, rendered *template.RenderedPrompt, callOpts CallOptions) (Response, error) {
	messages, err := c.messagesFor(ctx, rendered)
	if err != nil {
		return Response{}, err
	}
	if callOpts.Model == "" {
		callOpts.Model = c.Model
	}
	requestID := uuid.New().String()
	slog.Debug("llmclient: call", "client", c.Name, "request_id", requestID)
	return c.retry.Run(ctx, func(ctx context.Context) (Response, error) {
		return c.Provider.Call(ctx, messages, callOpts)
	})
}

// Stream resolves a rendered prompt and opens a streaming call. The retry
// driver does not wrap streaming calls (a partially-streamed response
// can't be cleanly retried mid-flight); callers that need retry-on-first-
// byte should fall back to a non-streaming Call.
func (c *Client) Stream(ctx context.Context, rendered *template.RenderedPrompt, callOpts CallOptions) (<-chan StreamEvent, error) {
	messages, err := c.messagesFor(ctx, rendered)
	if err != nil {
		return nil, err
	}
	if callOpts.Model == "" {
		callOpts.Model = c.Model
	}
	requestID := uuid.New().String()
	slog.Debug("llmclient: stream", "client", c.Name, "request_id", requestID)
	return c.Provider.Stream(ctx, messages, callOpts)
}

func (c *Client) messagesFor(ctx context.Context, rendered *template.RenderedPrompt) ([]Message, error) {
	if !rendered.IsChat {
		return []Message{{Role: c.DefaultRole, Parts: []Part{{Text: rendered.Completion}}}}, nil
	}
	return FromTemplateParts(ctx, rendered.Messages, c.resolver, c.mediaMode)
}

// RenderCurl renders messages in the debug/curl mode described in spec
// §4.J: file-path media parts become shell substitutions instead of being
// resolved, so the command can be copy-pasted without reading bytes.
func RenderCurl(rendered *template.RenderedPrompt) string {
	var b strings.Builder
	if !rendered.IsChat {
		b.WriteString(rendered.Completion)
		return b.String()
	}
	for _, m := range rendered.Messages {
		b.WriteString(m.Role)
		b.WriteString(": ")
		for _, p := range m.Parts {
			if p.Kind == template.PartText {
				b.WriteString(p.Text)
				continue
			}
			b.WriteString(curlSubstitution(p.Media))
		}
		b.WriteString("\n")
	}
	return b.String()
}
