package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bamlgo/baml/internal/bamlerr"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com/v1/messages"
const anthropicVersion = "2023-06-01"

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *anthropicImage `json:"source,omitempty"`
}

type anthropicImage struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	TopP        *float64           `json:"top_p,omitempty"`
	StopSeqs    []string           `json:"stop_sequences,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicResponseContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []anthropicResponseContent `json:"content"`
	Usage   anthropicUsage             `json:"usage"`
	Error   *anthropicError            `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicStreamDelta struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Usage *anthropicUsage `json:"usage,omitempty"`
	Error *anthropicError `json:"error,omitempty"`
}

// AnthropicProvider implements Provider against the Anthropic messages
// endpoint via raw net/http: the x-api-key/anthropic-version header pair,
// the lone-system-message promotion rule, and a bufio.Scanner SSE loop
// over "event:"/"data:" lines.
type AnthropicProvider struct {
	httpClient *http.Client
	apiKey     *Secret
	baseURL    string
	resolver   *MediaResolver
}

func NewAnthropicProvider(opts ResolvedOptions) *AnthropicProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	client := &http.Client{Timeout: 120 * time.Second}
	return &AnthropicProvider{httpClient: client, apiKey: opts.APIKey, baseURL: baseURL, resolver: NewMediaResolver(client)}
}

// splitSystem promotes a leading system message to Anthropic's top-level
// `system` field. If it's the only message, it's demoted to user instead:
// a request needs at least one user/assistant message.
func splitSystem(messages []Message) (system string, rest []Message) {
	if len(messages) == 0 {
		return "", nil
	}
	if messages[0].Role == "system" {
		if len(messages) == 1 {
			promoted := messages[0]
			promoted.Role = "user"
			return "", []Message{promoted}
		}
		return textOf(messages[0]), messages[1:]
	}
	return "", messages
}

func textOf(m Message) string {
	var b strings.Builder
	for _, p := range m.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func (p *AnthropicProvider) buildMessages(messages []Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != "user" && role != "assistant" {
			role = "user"
		}
		am := anthropicMessage{Role: role}
		for _, part := range m.Parts {
			if part.Media == nil {
				am.Content = append(am.Content, anthropicContent{Type: "text", Text: part.Text})
				continue
			}
			kind := "image"
			if part.Media.IsAudio {
				kind = "audio"
			}
			am.Content = append(am.Content, anthropicContent{
				Type: kind,
				Source: &anthropicImage{
					Type:      "base64",
					MediaType: part.Media.MimeType,
					Data:      part.Media.Base64,
				},
			})
		}
		out = append(out, am)
	}
	return out
}

func (p *AnthropicProvider) buildRequest(messages []Message, opts CallOptions, stream bool) anthropicRequest {
	system, rest := splitSystem(messages)
	maxTokens := 4096
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}
	return anthropicRequest{
		Model:       opts.Model,
		System:      system,
		Messages:    p.buildMessages(rest),
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		StopSeqs:    opts.Stop,
		Stream:      stream,
	}
}

func (p *AnthropicProvider) do(ctx context.Context, body []byte, stream bool, client *http.Client) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.ClientError, err, "anthropic: building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey.String())
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if stream {
		httpReq.Header.Set("accept", "text/event-stream")
	}
	return client.Do(httpReq)
}

func (p *AnthropicProvider) Call(ctx context.Context, messages []Message, opts CallOptions) (Response, error) {
	reqPayload := p.buildRequest(messages, opts, false)
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "anthropic: marshaling request")
	}
	resp, err := p.do(ctx, body, false, p.httpClient)
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "anthropic: request failed")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "anthropic: reading response body")
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("anthropic: non-200 response", "status", resp.StatusCode, "body", SafeLogString(string(bodyBytes)))
		return Response{Code: classifyAnthropicStatus(resp.StatusCode), Message: SafeLogString(string(bodyBytes))}, nil
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "anthropic: parsing response JSON")
	}
	if apiResp.Error != nil {
		return Response{Code: ErrBadRequest, Message: SafeLogString(apiResp.Error.Message)}, nil
	}
	var text strings.Builder
	for _, c := range apiResp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	return Response{
		Text:  text.String(),
		Usage: Usage{PromptTokens: apiResp.Usage.InputTokens, CompletionTokens: apiResp.Usage.OutputTokens},
	}, nil
}

func classifyAnthropicStatus(status int) ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthFailed
	case status == http.StatusServiceUnavailable:
		return ErrServiceUnavailable
	case status >= 500:
		return ErrServerError
	default:
		return ErrBadRequest
	}
}

func (p *AnthropicProvider) Stream(ctx context.Context, messages []Message, opts CallOptions) (<-chan StreamEvent, error) {
	reqPayload := p.buildRequest(messages, opts, true)
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.ClientError, err, "anthropic: marshaling stream request")
	}
	streamClient := &http.Client{Timeout: 5 * time.Minute}
	resp, err := p.do(ctx, body, true, streamClient)
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.ClientError, err, "anthropic: stream request failed")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		ch := make(chan StreamEvent, 1)
		ch <- StreamEvent{Kind: StreamEventDone, Final: Response{Code: classifyAnthropicStatus(resp.StatusCode), Message: SafeLogString(string(bodyBytes))}}
		close(ch)
		return ch, nil
	}
	ch := make(chan StreamEvent, 1)
	go p.pumpSSE(ctx, resp.Body, ch)
	return ch, nil
}

// pumpSSE accumulates "event:"/"data:" lines into one event and
// dispatches it on the following blank line.
func (p *AnthropicProvider) pumpSSE(ctx context.Context, body io.ReadCloser, ch chan<- StreamEvent) {
	defer close(ch)
	defer body.Close()

	var full strings.Builder
	var eventType string
	var dataBuf strings.Builder
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			ch <- StreamEvent{Kind: StreamEventError, Err: ctx.Err()}
			return
		default:
		}
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataBuf.WriteString(strings.TrimPrefix(line, "data: "))
		case line == "":
			if dataBuf.Len() > 0 {
				if done := p.handleEvent(eventType, dataBuf.String(), &full, ch); done {
					return
				}
			}
			eventType = ""
			dataBuf.Reset()
		}
	}
	if err := scanner.Err(); err != nil {
		ch <- StreamEvent{Kind: StreamEventError, Err: err}
		return
	}
	ch <- StreamEvent{Kind: StreamEventDone, Final: Response{Text: full.String()}}
}

func (p *AnthropicProvider) handleEvent(eventType, data string, full *strings.Builder, ch chan<- StreamEvent) bool {
	var evt anthropicStreamDelta
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return false
	}
	switch eventType {
	case "content_block_delta":
		if evt.Delta.Text != "" {
			full.WriteString(evt.Delta.Text)
			ch <- StreamEvent{Kind: StreamEventToken, Token: evt.Delta.Text}
		}
	case "message_stop":
		ch <- StreamEvent{Kind: StreamEventDone, Final: Response{Text: full.String()}}
		return true
	case "error":
		if evt.Error != nil {
			ch <- StreamEvent{Kind: StreamEventError, Err: bamlerr.New(bamlerr.ClientError, "anthropic: %s", SafeLogString(evt.Error.Message))}
			return true
		}
	}
	return false
}
