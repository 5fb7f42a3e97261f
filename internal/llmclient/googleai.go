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

const defaultGoogleAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

type googlePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *googleInline   `json:"inlineData,omitempty"`
}

type googleInline struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type googleRequest struct {
	SystemInstruction *googleContent          `json:"systemInstruction,omitempty"`
	Contents          []googleContent         `json:"contents"`
	GenerationConfig  googleGenerationConfig  `json:"generationConfig,omitempty"`
}

type googleCandidate struct {
	Content      googleContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type googleUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

type googleResponse struct {
	Candidates    []googleCandidate    `json:"candidates"`
	UsageMetadata googleUsageMetadata  `json:"usageMetadata"`
	Error         *googleError         `json:"error,omitempty"`
}

type googleError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GoogleAIProvider implements Provider against the Google Generative
// Language API (used by both the "google-ai" and "vertex" provider tags,
// which share the same content/parts wire shape and differ only in base
// URL and auth scheme — Vertex uses a bearer OAuth token where plain
// Google AI uses an API-key query parameter).
type GoogleAIProvider struct {
	httpClient *http.Client
	apiKey     *Secret
	baseURL    string
	model      string
	vertex     bool
	resolver   *MediaResolver
}

func NewGoogleAIProvider(opts ResolvedOptions, vertex bool) *GoogleAIProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultGoogleAIBaseURL
	}
	client := &http.Client{Timeout: 120 * time.Second}
	return &GoogleAIProvider{
		httpClient: client,
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      opts.Model,
		vertex:     vertex,
		resolver:   NewMediaResolver(client),
	}
}

func (p *GoogleAIProvider) buildContents(messages []Message) (system *googleContent, contents []googleContent) {
	for _, m := range messages {
		role := m.Role
		if role == "system" {
			c := toGoogleContent("user", m)
			system = &c
			continue
		}
		if role != "user" && role != "model" {
			role = "user"
		}
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, toGoogleContent(role, m))
	}
	return system, contents
}

func toGoogleContent(role string, m Message) googleContent {
	gc := googleContent{Role: role}
	for _, part := range m.Parts {
		if part.Media == nil {
			gc.Parts = append(gc.Parts, googlePart{Text: part.Text})
			continue
		}
		gc.Parts = append(gc.Parts, googlePart{InlineData: &googleInline{MimeType: part.Media.MimeType, Data: part.Media.Base64}})
	}
	return gc
}

func (p *GoogleAIProvider) buildRequest(messages []Message, opts CallOptions) googleRequest {
	system, contents := p.buildContents(messages)
	return googleRequest{
		SystemInstruction: system,
		Contents:          contents,
		GenerationConfig: googleGenerationConfig{
			Temperature:     opts.Temperature,
			TopP:            opts.TopP,
			StopSequences:   opts.Stop,
			MaxOutputTokens: opts.MaxTokens,
		},
	}
}

func (p *GoogleAIProvider) endpoint(model string) string {
	url := fmt.Sprintf("%s/%s:generateContent", p.baseURL, model)
	if !p.vertex {
		url += "?key=" + p.apiKey.String()
	}
	return url
}

func (p *GoogleAIProvider) streamEndpoint(model string) string {
	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", p.baseURL, model)
	if !p.vertex {
		url += "&key=" + p.apiKey.String()
	}
	return url
}

func (p *GoogleAIProvider) Call(ctx context.Context, messages []Message, opts CallOptions) (Response, error) {
	model := opts.Model
	if model == "" {
		model = p.model
	}
	reqPayload := p.buildRequest(messages, opts)
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "google-ai: marshaling request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(model), bytes.NewReader(body))
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "google-ai: building request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.vertex {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey.String())
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "google-ai: request failed")
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "google-ai: reading response body")
	}
	if resp.StatusCode != http.StatusOK {
		slog.Warn("google-ai: non-200 response", "status", resp.StatusCode, "body", SafeLogString(string(bodyBytes)))
		return Response{Code: classifyGoogleStatus(resp.StatusCode), Message: SafeLogString(string(bodyBytes))}, nil
	}

	var apiResp googleResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return Response{}, bamlerr.Wrap(bamlerr.ClientError, err, "google-ai: parsing response JSON")
	}
	if apiResp.Error != nil {
		return Response{Code: classifyGoogleStatus(apiResp.Error.Code), Message: SafeLogString(apiResp.Error.Message)}, nil
	}
	if len(apiResp.Candidates) == 0 {
		return Response{Code: ErrServerError, Message: "google-ai: returned no candidates"}, nil
	}
	var text strings.Builder
	for _, part := range apiResp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	return Response{
		Text: text.String(),
		Usage: Usage{
			PromptTokens:     apiResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: apiResp.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

func classifyGoogleStatus(status int) ErrorCode {
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

// Stream hits streamGenerateContent?alt=sse, Google AI/Vertex's SSE
// variant of generateContent. Each "data: {...}" line carries a full
// GenerateContentResponse chunk; unlike OpenAI there is no "[DONE]"
// sentinel, so the stream simply ends when the response body closes.
func (p *GoogleAIProvider) Stream(ctx context.Context, messages []Message, opts CallOptions) (<-chan StreamEvent, error) {
	model := opts.Model
	if model == "" {
		model = p.model
	}
	reqPayload := p.buildRequest(messages, opts)
	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.ClientError, err, "google-ai: marshaling stream request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.streamEndpoint(model), bytes.NewReader(body))
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.ClientError, err, "google-ai: building stream request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.vertex {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey.String())
	}

	streamClient := &http.Client{Timeout: 5 * time.Minute}
	resp, err := streamClient.Do(httpReq)
	if err != nil {
		return nil, bamlerr.Wrap(bamlerr.ClientError, err, "google-ai: stream request failed")
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(resp.Body)
		ch := make(chan StreamEvent, 1)
		ch <- StreamEvent{Kind: StreamEventDone, Final: Response{Code: classifyGoogleStatus(resp.StatusCode), Message: SafeLogString(string(bodyBytes))}}
		close(ch)
		return ch, nil
	}

	ch := make(chan StreamEvent, 1)
	go p.pumpSSE(ctx, resp.Body, ch)
	return ch, nil
}

// pumpSSE reads Google AI's "data: {...}" event stream line by line with
// a bufio.Scanner, the same idiom used for OpenAI's and Anthropic's SSE.
func (p *GoogleAIProvider) pumpSSE(ctx context.Context, body io.ReadCloser, ch chan<- StreamEvent) {
	defer close(ch)
	defer body.Close()

	var full strings.Builder
	var usage googleUsageMetadata
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
		var chunk googleResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			ch <- StreamEvent{Kind: StreamEventError, Err: bamlerr.New(bamlerr.ClientError, "google-ai: %s", chunk.Error.Message)}
			return
		}
		if chunk.UsageMetadata.PromptTokenCount != 0 || chunk.UsageMetadata.CandidatesTokenCount != 0 {
			usage = chunk.UsageMetadata
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		var token strings.Builder
		for _, part := range chunk.Candidates[0].Content.Parts {
			token.WriteString(part.Text)
		}
		if token.Len() == 0 {
			continue
		}
		full.WriteString(token.String())
		ch <- StreamEvent{Kind: StreamEventToken, Token: token.String()}
	}
	if err := scanner.Err(); err != nil {
		ch <- StreamEvent{Kind: StreamEventError, Err: err}
		return
	}
	ch <- StreamEvent{Kind: StreamEventDone, Final: Response{
		Text: full.String(),
		Usage: Usage{
			PromptTokens:     usage.PromptTokenCount,
			CompletionTokens: usage.CandidatesTokenCount,
		},
	}}
}
