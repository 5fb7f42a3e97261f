// Package llmclient implements provider adapters and call orchestration:
// per-provider HTTP request construction (unary and SSE streaming),
// retry-policy execution, request-options resolution, and media
// attachment, all built around a declared-client model (provider tag +
// options bag + retry-policy reference + default role) rather than a
// fixed interface per provider.
package llmclient

import (
	"context"

	"github.com/bamlgo/baml/internal/template"
)

// ErrorCode classifies a provider response for the retry driver.
type ErrorCode int

const (
	ErrNone ErrorCode = iota
	ErrRateLimited
	ErrServerError
	ErrServiceUnavailable
	ErrAuthFailed
	ErrBadRequest
	ErrInternalFailure
)

// transient reports whether ec should be retried: only RateLimited,
// ServerError, ServiceUnavailable, and InternalFailure do.
func (ec ErrorCode) transient() bool {
	switch ec {
	case ErrRateLimited, ErrServerError, ErrServiceUnavailable, ErrInternalFailure:
		return true
	default:
		return false
	}
}

// Usage carries token accounting a provider reported, when available.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Response is one completed provider call: the raw completion text plus
// usage metadata, or a classified failure.
type Response struct {
	Text  string
	Usage Usage

	Code    ErrorCode
	Message string
}

func (r Response) Failed() bool { return r.Code != ErrNone }

// StreamEventKind tags a StreamEvent's variant.
type StreamEventKind int

const (
	StreamEventToken StreamEventKind = iota
	StreamEventDone
	StreamEventError
)

// StreamEvent is one unit delivered over a streaming call's channel.
type StreamEvent struct {
	Kind  StreamEventKind
	Token string
	Final Response // populated on StreamEventDone
	Err   error     // populated on StreamEventError
}

// Part is one piece of a rendered chat message: text or a media reference,
// mirroring template.Part but decoupled from the template package so
// providers don't need to import it for wire encoding.
type Part struct {
	Text  string
	Media *MediaPart
}

// MediaPart is a resolved, provider-ready media attachment: either base64
// bytes with a MIME type, or a bare URL.
type MediaPart struct {
	IsAudio  bool
	MimeType string
	Base64   string
	URL      string
}

// Message is one role-tagged chat message made of ordered parts.
type Message struct {
	Role  string
	Parts []Part
}

// MediaEncoding selects how a provider wants a media part delivered.
type MediaEncoding int

const (
	MediaAsURL    MediaEncoding = iota // pass URL through untouched when possible
	MediaAsBase64                      // always inline as base64 + MIME
)

// FromTemplateParts converts rendered template.Message values into
// provider-ready Messages, resolving every media part through resolver
// according to enc.
func FromTemplateParts(ctx context.Context, msgs []template.Message, resolver *MediaResolver, enc MediaEncoding) ([]Message, error) {
	out := make([]Message, 0, len(msgs))
	for _, tm := range msgs {
		msg := Message{Role: tm.Role}
		for _, tp := range tm.Parts {
			if tp.Kind == template.PartText {
				msg.Parts = append(msg.Parts, Part{Text: tp.Text})
				continue
			}
			var mp *MediaPart
			var err error
			if enc == MediaAsURL {
				mp, err = resolver.ResolveURL(ctx, tp.Media)
			} else {
				mp, err = resolver.ResolveBase64(ctx, tp.Media)
			}
			if err != nil {
				return nil, err
			}
			msg.Parts = append(msg.Parts, Part{Media: mp})
		}
		out = append(out, msg)
	}
	return out, nil
}

// CallOptions carries per-call generation parameters resolved from a
// client's options bag plus any function-level overrides.
type CallOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Stop        []string
}

// Provider is the per-backend adapter interface: serialize a rendered
// prompt into the provider's wire format, send it, and deserialize the
// response back to text plus usage metadata (or a classified error).
type Provider interface {
	Call(ctx context.Context, messages []Message, opts CallOptions) (Response, error)
	Stream(ctx context.Context, messages []Message, opts CallOptions) (<-chan StreamEvent, error)
}
