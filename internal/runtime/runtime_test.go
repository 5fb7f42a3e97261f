package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bamlgo/baml/internal/value"
	"github.com/stretchr/testify/require"
)

func newTestRuntime(t *testing.T, baseURL, bamlSrc string) *Runtime {
	t.Helper()
	src := fmt.Sprintf(bamlSrc, baseURL)
	rt, diags := FromFileContent(map[string]string{"main.baml": src}, map[string]string{})
	require.False(t, diags.HasErrors(), "unexpected build errors: %v", diags.Errors)
	return rt
}

// openAIStub runs a fake chat-completions endpoint returning body for
// every request, recording how many times it was hit.
func openAIStub(t *testing.T, body string) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// openAIDualModeStub serves both the unary chat-completions shape and its
// SSE streaming counterpart off one endpoint, keyed on the request body's
// "stream" flag, so StreamFunction and CallFunction can hit the same
// declared client and be compared against each other.
func openAIDualModeStub(t *testing.T, completion string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			body, _ := json.Marshal(map[string]any{
				"choices": []map[string]any{{"message": map[string]any{"content": completion}}},
			})
			_, _ = w.Write(body)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		chunk := map[string]any{"choices": []map[string]any{{"delta": map[string]any{"content": completion}}}}
		payload, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", payload)
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

const resumeSrc = `
class Resume {
  name string
  skills string[]
}

client GPT4 {
  provider openai
  options {
    api_key "test-key"
    base_url "%s"
    model "gpt-4o"
  }
}

function ExtractResume(text: string) -> Resume {
  client GPT4
  prompt #"
    Extract a resume from:
    {{ text }}
    {{ ctx.output_format }}
  "#
}
`

// TestExtractClassFromProseScenarioA is end-to-end scenario A: a function
// declared over a provider stub that answers with prose wrapping a JSON
// object resolves into the declared Resume class.
func TestExtractClassFromProseScenarioA(t *testing.T) {
	completion := `Sure, here you go:` + "\n```json\n" +
		`{"name": "Vaibhav Gupta", "skills": ["Rust", "C++"]}` + "\n```\n"
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": completion}}},
		"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5},
	})
	require.NoError(t, err)
	srv, hits := openAIStub(t, string(body))

	rt := newTestRuntime(t, srv.URL, resumeSrc)
	val, outcome, err := rt.CallFunction(context.Background(), "ExtractResume", map[string]*value.Value{
		"text": value.String("Vaibhav Gupta is a Rust and C++ engineer."),
	})
	require.NoError(t, err)
	require.Equal(t, 1, *hits)
	require.Equal(t, value.KindClass, val.Kind)
	name, _ := val.Fields.Get("name")
	require.Equal(t, "Vaibhav Gupta", name.Str)
	require.True(t, outcome.IsSuccess())
}

const orderStatusSrc = `
enum OrderStatus {
  ORDERED
  SHIPPED @alias("shipped.")
  DELIVERED
  CANCELLED
}

client GPT4 {
  provider openai
  options {
    api_key "test-key"
    base_url "%s"
    model "gpt-4o"
  }
}

function ClassifyOrder(text: string) -> OrderStatus {
  client GPT4
  prompt #"
    {{ text }}
    {{ ctx.output_format }}
  "#
}
`

// TestEnumAliasCoercionScenarioB is end-to-end scenario B: the model
// answers with an enum alias rather than the canonical name, and the
// coercer still resolves it against the declared enum.
func TestEnumAliasCoercionScenarioB(t *testing.T) {
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]any{"content": `"shipped."`}}},
	})
	require.NoError(t, err)
	srv, _ := openAIStub(t, string(body))

	rt := newTestRuntime(t, srv.URL, orderStatusSrc)
	val, _, err := rt.CallFunction(context.Background(), "ClassifyOrder", map[string]*value.Value{
		"text": value.String("Package left the warehouse."),
	})
	require.NoError(t, err)
	require.Equal(t, value.KindEnum, val.Kind)
	require.Equal(t, "SHIPPED", val.EnumValue)
}

const numberListSrc = `
client GPT4 {
  provider openai
  options {
    api_key "test-key"
    base_url "%s"
    model "gpt-4o"
  }
}

function Count(text: string) -> int[] {
  client GPT4
  prompt #"
    {{ text }}
    {{ ctx.output_format }}
  "#
}
`

// TestStreamFunctionScenarioF is end-to-end scenario F: the final
// streamed event's coerced value equals what CallFunction would have
// produced from the same completed text.
func TestStreamFunctionScenarioF(t *testing.T) {
	srv := openAIDualModeStub(t, "[1, 2, 3]")
	rt := newTestRuntime(t, srv.URL, numberListSrc)

	nonStream, _, err := rt.CallFunction(context.Background(), "Count", map[string]*value.Value{
		"text": value.String("count to three"),
	})
	require.NoError(t, err)

	var tokens []string
	streamed, _, err := rt.StreamFunction(context.Background(), "Count", map[string]*value.Value{
		"text": value.String("count to three"),
	}, func(tok string) { tokens = append(tokens, tok) })
	require.NoError(t, err)

	require.Equal(t, len(nonStream.List), len(streamed.List))
	for i := range nonStream.List {
		require.Equal(t, nonStream.List[i].Int, streamed.List[i].Int)
	}
}

func TestRenderPromptClientOverride(t *testing.T) {
	rt := newTestRuntime(t, "http://unused.invalid", resumeSrc)
	_, client, err := rt.RenderPrompt("ExtractResume", map[string]*value.Value{
		"text": value.String("hi"),
	})
	require.NoError(t, err)
	require.Equal(t, "GPT4", client.Name)
}

func TestCallUnknownFunctionErrors(t *testing.T) {
	rt := newTestRuntime(t, "http://unused.invalid", resumeSrc)
	_, _, err := rt.CallFunction(context.Background(), "DoesNotExist", nil)
	require.Error(t, err)
}
