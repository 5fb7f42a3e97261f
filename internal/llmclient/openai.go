package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bamlgo/baml/internal/bamlerr"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1/chat/completions"

type openaiMessage struct {
	Role    string         `json:"role"`
	Content []openaiContent `json:"content"`
}

type openaiContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openaiImageURL `json:"image_url,omitempty"`
}

type openaiImageURL struct {
	URL string `json:"url"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openaiChoice struct {
	Message      openaiResponseMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

type openaiResponseMessage struct {
	Content string `json:"content"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   openaiUsage    `json:"usage"`
	Error   *openaiError   `json:"error,omitempty"`
}

type openaiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type openaiStreamChunk struct {
	Choices []struct {
		Delta        struct{ Content string `json:"content"` } `json:"delta"`
		FinishReason string                                     `json:"finish_reason"`
	} `json:"choices"`
}

// OpenAIProvider implements Provider against the OpenAI chat completions
// endpoint via raw net/http: no SDK, a Bearer auth header, and a
// status-code-then-body error path.
type OpenAIProvider struct {
	httpClient *http.Client
	apiKey     *Secret
	baseURL    string
	resolver   *MediaResolver
}

func NewOpenAIProvider(opts ResolvedOptions) *OpenAIProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	client := &http.Client{Timeout: 120 * time.Second}
	return &OpenAIProvider{
		httpClient: client,
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		resolver:   NewMediaResolver(client),
	}
}

func (p *OpenAIProvider) buildMessages(ctx context.Context, messages []Message) ([]openaiMessage, error) {
	out := make([]openaiMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		switch role {
		case "system", "user", "assistant":
		default:
			role = "user"
		}
		oaiMsg := openaiMessage{Role: role}
		for _, part := range m.Parts {
			if part.Text != "" || part.Media == nil {
				oaiMsg.Content = append(oaiMsg.Content, openaiContent{Type: "text", Text: part.Text})
				continue
			}
			var url string
			if part.Media.URL != "" {
				url = part.Media.URL
			} else {
				url = fmt.Sprintf("data:%s;base64,%s", part.Media.MimeType, part.Media.Base64)
			}
			oaiMsg.Content = append(oaiMsg.Content, openaiContent{Type: "image_url", ImageURL: &openaiImageURL{URL: url}})
		}
		out = append(out, oaiMsg)
	}
	return out, nil
}

func (p *OpenAIProvider) buildRequest(ctx context.Context, messages []Message, opts CallOptions, stream bool) (openaiRequest, error) {
	oaiMessages, err := p.buildMessages(ctx, messages)
	if err != nil {
		return openaiRequest{}, err
	}
	return openaiRequest{
		Model:       opts.Model,
		Messages:    oaiMessages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		TopP:        opts.TopP,
		Stop:        opts.Stop,
		Stream:      stream,
	}, nil
}

func (p *OpenAIProvider) authHeader() string {
	return "Bearer " + p.apiKey.String()
}

func (p *OpenAIProvider) Call(ctx context.Context, messages []Message, opts CallOptions) (Response, error) {
	reqPayload, err := p.buildRequest(ctx, messages, opts, false)
	if err != nil {
		return Response{}, err
	}
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "openai: marshaling request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "openai: building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", p.authHeader())

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "openai: request failed")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "openai: reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		slog.Warn("openai: non-200 response", "status", resp.StatusCode, "body", SafeLogString(string(bodyBytes)))
		return Response{Code: classifyOpenAIStatus(resp.StatusCode), Message: SafeLogString(string(bodyBytes))}, nil
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "openai: parsing response JSON")
	}
	if apiResp.Error != nil {
		return Response{Code: ErrBadRequest, Message: SafeLogString(apiResp.Error.Message)}, nil
	}
	if len(apiResp.Choices) == 0 {
		return Response{Code: ErrServerError, Message: "openai: returned no choices"}, nil
	}

	return Response{
		Text: apiResp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
		},
	}, nil
}

func classifyOpenAIStatus(status int) ErrorCode {
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

func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, opts CallOptions) (<-chan StreamEvent, error) {
	reqPayload, err := p.buildRequest(ctx, messages, opts, true)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.ClientError, err, "openai: marshaling stream request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.ClientError, err, "openai: building stream request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", p.authHeader())
	httpReq.Header.Set("Accept", "text/event-stream")

	streamClient := &http.Client{Timeout: 5 * time.Minute}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.ClientError, err, "openai: stream request failed")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		ch := make(chan StreamEvent, 1)
		ch <- StreamEvent{Kind: StreamEventDone, Final: Response{Code: classifyOpenAIStatus(resp.StatusCode), Message: SafeLogString(string(bodyBytes))}}
		close(ch)
		return ch, nil
	}

	ch := make(chan StreamEvent, 1)
	go p.pumpSSE(ctx, resp.Body, ch)
	return ch, nil
}

// pumpSSE reads OpenAI's "data: {...}" / "data: [DONE]" event stream line
// by line with a bufio.Scanner, the same idiom used for Anthropic's SSE.
func (p *OpenAIProvider) pumpSSE(ctx context.Context, body io.ReadCloser, ch chan<- StreamEvent) {
	defer close(ch)
	defer body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			ch <- StreamEvent{Kind: StreamEventError, Err: ctx.Err()}
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			ch <- StreamEvent{Kind: StreamEventDone, Final: Response{Text: full.String()}}
			return
		}
		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		token := chunk.Choices[0].Delta.Content
		if token == "" {
			continue
		}
		full.WriteString(token)
		ch <- StreamEvent{Kind: StreamEventToken, Token: token}
	}
	if err := scanner.Err(); err != nil {
		ch <- StreamEvent{Kind: StreamEventError, Err: err}
	}
}
