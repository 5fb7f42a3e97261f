package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bamlgo/baml/internal/template"
	"github.com/bamlgo/baml/internal/value"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func imageMessages() []Message {
	return []Message{
		{
			Role: "user",
			Parts: []Part{
				{Text: "what is in this image?"},
				{Media: &MediaPart{MimeType: "image/png", Base64: "cGljdHVyZQ=="}},
			},
		},
	}
}

// TestOpenAIProviderSendsImageURLPart is scenario E's OpenAI half: an
// image part is encoded as a chat-completions image_url content block
// carrying a data: URL, not Anthropic's base64 source block.
func TestOpenAIProviderSendsImageURLPart(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	p := &OpenAIProvider{
		httpClient: srv.Client(),
		apiKey:     NewSecretString("sk-test"),
		baseURL:    srv.URL,
		resolver:   NewMediaResolver(srv.Client()),
	}
	resp, err := p.Call(context.Background(), imageMessages(), CallOptions{Model: "gpt-4o"})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)

	messages := captured["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	imgBlock := content[1].(map[string]any)
	require.Equal(t, "image_url", imgBlock["type"])
	url := imgBlock["image_url"].(map[string]any)["url"].(string)
	require.Contains(t, url, "data:image/png;base64,")
}

// TestAnthropicProviderSendsBase64SourcePart is scenario E's Anthropic
// half: the same image part is encoded as a {type: image, source:
// {type: base64, ...}} content block.
func TestAnthropicProviderSendsBase64SourcePart(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	p := &AnthropicProvider{
		httpClient: srv.Client(),
		apiKey:     NewSecretString("sk-ant-test"),
		baseURL:    srv.URL,
		resolver:   NewMediaResolver(srv.Client()),
	}
	resp, err := p.Call(context.Background(), imageMessages(), CallOptions{Model: "claude-3-opus", MaxTokens: intPtr(256)})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Text)

	messages := captured["messages"].([]any)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	imgBlock := content[1].(map[string]any)
	require.Equal(t, "image", imgBlock["type"])
	source := imgBlock["source"].(map[string]any)
	require.Equal(t, "base64", source["type"])
	require.Equal(t, "image/png", source["media_type"])
	require.Equal(t, "cGljdHVyZQ==", source["data"])
}

func TestClassifyOpenAIStatusMapsRetryableCodes(t *testing.T) {
	require.Equal(t, ErrRateLimited, classifyOpenAIStatus(http.StatusTooManyRequests))
	require.Equal(t, ErrServiceUnavailable, classifyOpenAIStatus(http.StatusServiceUnavailable))
	require.Equal(t, ErrServerError, classifyOpenAIStatus(http.StatusInternalServerError))
	require.Equal(t, ErrAuthFailed, classifyOpenAIStatus(http.StatusUnauthorized))
	require.Equal(t, ErrBadRequest, classifyOpenAIStatus(http.StatusBadRequest))
}

func TestFromTemplatePartsResolvesInlineMediaToBase64(t *testing.T) {
	msgs := []template.Message{
		{Role: "user", Parts: []template.Part{
			{Kind: template.PartText, Text: "look:"},
			{Kind: template.PartMedia, Media: &value.Media{
				Kind: value.MediaImage, Source: value.MediaSourceInline,
				MimeType: "image/png", Bytes: []byte("picture"),
			}},
		}},
	}
	out, err := FromTemplateParts(context.Background(), msgs, NewMediaResolver(http.DefaultClient), MediaAsBase64)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Parts, 2)
	require.Equal(t, "image/png", out[0].Parts[1].Media.MimeType)
	require.NotEmpty(t, out[0].Parts[1].Media.Base64)
}
