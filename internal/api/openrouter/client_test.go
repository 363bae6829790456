package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type failingBody struct{}

func (failingBody) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingBody) Close() error             { return nil }

func TestCreateChatCompletion_RequestShape(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/v1/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer sk-test")
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", got)
		}
		if got := r.Header.Get("X-Title"); got != "Overlay" {
			t.Errorf("X-Title = %q, want Overlay", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["model"] != "openai/gpt-4o-mini" {
			t.Errorf("model = %v", body["model"])
		}
		if body["max_tokens"] != float64(2000) {
			t.Errorf("max_tokens = %v, want 2000", body["max_tokens"])
		}
		if body["temperature"] != 0.7 {
			t.Errorf("temperature = %v, want 0.7", body["temperature"])
		}
		msgs, _ := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("messages len = %d, want 2", len(msgs))
		}
		first := msgs[0].(map[string]any)
		second := msgs[1].(map[string]any)
		if first["role"] != "system" || first["content"] != "be terse" {
			t.Errorf("system message = %v", first)
		}
		if second["role"] != "user" || second["content"] != "hello wrld" {
			t.Errorf("user message = %v", second)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"id":"gen-1","choices":[{"index":0,"message":{"role":"assistant","content":"  Hello  "}}]}`)
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL+"/api/v1/"), WithAttribution("https://example.com", "Overlay"))
	req := NewChatCompletionRequest("openai/gpt-4o-mini", "be terse", "hello wrld", 0)

	got, err := c.CreateChatCompletion(context.Background(), "sk-test", req)
	if err != nil {
		t.Fatalf("CreateChatCompletion() error = %v", err)
	}
	if got != "Hello" {
		t.Errorf("CreateChatCompletion() = %q, want %q", got, "Hello")
	}
}

func TestCreateChatCompletion_Classification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantKind   domain.ErrorKind
		wantResult string
	}{
		{name: "success trims", status: 200, body: `{"choices":[{"message":{"content":"\n Fixed text.\n\n"}}]}`, wantResult: "Fixed text."},
		{name: "success empty string", status: 200, body: `{"choices":[{"message":{"content":""}}]}`, wantResult: ""},
		{name: "201 is success", status: 201, body: `{"choices":[{"message":{"content":"ok"}}]}`, wantResult: "ok"},
		{name: "401", status: 401, body: `{"error":{"message":"No auth credentials found","code":401}}`, wantKind: domain.KindUnauthorized},
		{name: "403", status: 403, body: `{"error":{"message":"key disabled"}}`, wantKind: domain.KindForbidden},
		{name: "429", status: 429, body: `slow down`, wantKind: domain.KindRateLimited},
		{name: "500", status: 500, body: `upstream exploded`, wantKind: domain.KindUpstream},
		{name: "400", status: 400, body: `{"error":{"message":"bad model"}}`, wantKind: domain.KindUpstream},
		{name: "unparsable json", status: 200, body: `<html>oops</html>`, wantKind: domain.KindResponseParse},
		{name: "choices wrong shape", status: 200, body: `{"choices":"nope"}`, wantKind: domain.KindEmptyResponse},
		{name: "top-level array", status: 200, body: `[]`, wantKind: domain.KindEmptyResponse},
		{name: "message not object", status: 200, body: `{"choices":[{"message":"Hi"}]}`, wantKind: domain.KindEmptyResponse},
		{name: "string index ignored", status: 200, body: `{"choices":[{"index":"0","message":{"content":"Hi"}}]}`, wantResult: "Hi"},
		{name: "numeric id ignored", status: 200, body: `{"id":42,"model":7,"choices":[{"message":{"content":"Hi"}}]}`, wantResult: "Hi"},
		{name: "fractional usage ignored", status: 200, body: `{"usage":{"prompt_tokens":1.5},"choices":[{"finish_reason":3,"message":{"content":"Hi"}}]}`, wantResult: "Hi"},
		{name: "truncated json", status: 200, body: `{"choices":[{"message":{"content":"Hi"}}]`, wantKind: domain.KindResponseParse},
		{name: "missing choices", status: 200, body: `{"id":"gen-1"}`, wantKind: domain.KindEmptyResponse},
		{name: "empty choices", status: 200, body: `{"choices":[]}`, wantKind: domain.KindEmptyResponse},
		{name: "missing message", status: 200, body: `{"choices":[{"index":0}]}`, wantKind: domain.KindEmptyResponse},
		{name: "null content", status: 200, body: `{"choices":[{"message":{"content":null}}]}`, wantKind: domain.KindEmptyResponse},
		{name: "non-string content", status: 200, body: `{"choices":[{"message":{"content":[{"type":"text"}]}}]}`, wantKind: domain.KindEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			c := NewClient(WithBaseURL(ts.URL))
			got, err := c.CreateChatCompletion(context.Background(), "k", NewChatCompletionRequest("m", "s", "u", 10))

			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("CreateChatCompletion() error = %v", err)
				}
				if got != tt.wantResult {
					t.Errorf("CreateChatCompletion() = %q, want %q", got, tt.wantResult)
				}
				return
			}

			if err == nil {
				t.Fatalf("CreateChatCompletion() = %q, want error of kind %s", got, tt.wantKind)
			}
			de, ok := domain.AsError(err)
			if !ok {
				t.Fatalf("error %v is not classified", err)
			}
			if de.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", de.Kind, tt.wantKind)
			}
			if tt.status >= 300 {
				if de.Status != tt.status {
					t.Errorf("Status = %d, want %d", de.Status, tt.status)
				}
				if de.Body != tt.body {
					t.Errorf("Body = %q, want %q", de.Body, tt.body)
				}
				if !strings.Contains(de.Message, tt.body) {
					t.Errorf("Message %q does not preserve body %q", de.Message, tt.body)
				}
			}
		})
	}
}

func TestCreateChatCompletion_UnauthorizedMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer " {
			t.Errorf("empty key should be forwarded, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"missing key"}`)
	}))
	defer ts.Close()

	c := NewClient(WithBaseURL(ts.URL))
	_, err := c.CreateChatCompletion(context.Background(), "", NewChatCompletionRequest("m", "s", "u", 0))

	de, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected classified error, got %v", err)
	}
	want := `Authentication failed (401 Unauthorized): {"error":"missing key"}`
	if de.Message != want {
		t.Errorf("Message = %q, want %q", de.Message, want)
	}
}

func TestCreateChatCompletion_NetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewClient(WithBaseURL(url))
	_, err := c.CreateChatCompletion(context.Background(), "k", NewChatCompletionRequest("m", "s", "u", 0))

	if kind := domain.KindOf(err); kind != domain.KindNetwork {
		t.Fatalf("KindOf() = %q, want %q (err = %v)", kind, domain.KindNetwork, err)
	}
	if !strings.HasPrefix(err.(*domain.Error).Message, "Failed to connect to OpenRouter API: ") {
		t.Errorf("Message = %q", err.(*domain.Error).Message)
	}
}

func TestCreateChatCompletion_UnreadableErrorBody(t *testing.T) {
	httpClient := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusServiceUnavailable,
			Body:       failingBody{},
			Header:     make(http.Header),
			Request:    r,
		}, nil
	})}

	c := NewClient(WithHTTPClient(httpClient))
	_, err := c.CreateChatCompletion(context.Background(), "k", NewChatCompletionRequest("m", "s", "u", 0))

	de, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected classified error, got %v", err)
	}
	if de.Kind != domain.KindUpstream || de.Status != 503 {
		t.Errorf("got kind %q status %d, want upstream_error 503", de.Kind, de.Status)
	}
	if de.Message != "API request failed with status: 503 Service Unavailable" {
		t.Errorf("Message = %q", de.Message)
	}
}

func TestListModels(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []string
	}{
		{name: "two models", body: `{"data":[{"id":"openai/gpt-4o","name":"GPT-4o","pricing":{"prompt":"0.000005"}},{"id":"anthropic/claude-3.5-sonnet"}]}`, wantIDs: []string{"openai/gpt-4o", "anthropic/claude-3.5-sonnet"}},
		{name: "no data field", body: `{"object":"list"}`, wantIDs: nil},
		{name: "null data", body: `{"data":null}`, wantIDs: nil},
		{name: "data not array", body: `{"data":{"id":"x"}}`, wantIDs: nil},
		{name: "empty data", body: `{"data":[]}`, wantIDs: nil},
		{name: "top-level array", body: `[]`, wantIDs: nil},
		{name: "top-level string", body: `"models"`, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/models" {
					t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
				}
				if r.Header.Get("Authorization") != "Bearer sk-test" {
					t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
				}
				io.WriteString(w, tt.body)
			}))
			defer ts.Close()

			models, err := NewClient(WithBaseURL(ts.URL)).ListModels(context.Background(), "sk-test")
			if err != nil {
				t.Fatalf("ListModels() error = %v", err)
			}
			if models == nil {
				t.Fatal("ListModels() returned nil slice, want empty")
			}
			if len(models) != len(tt.wantIDs) {
				t.Fatalf("ListModels() len = %d, want %d", len(models), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if models[i].ID != id {
					t.Errorf("models[%d].ID = %q, want %q", i, models[i].ID, id)
				}
			}
		})
	}
}

func TestListModels_PreservesRawDescriptor(t *testing.T) {
	raw := `{"id":"openai/gpt-4o","context_length":128000,"architecture":{"modality":"text->text"}}`
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[`+raw+`,"bare-string"]}`)
	}))
	defer ts.Close()

	models, err := NewClient(WithBaseURL(ts.URL)).ListModels(context.Background(), "k")
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("len = %d, want 2", len(models))
	}

	out, err := json.Marshal(models[0])
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != raw {
		t.Errorf("Marshal() = %s, want %s", out, raw)
	}
	if string(models[1].Raw()) != `"bare-string"` {
		t.Errorf("Raw() = %s", models[1].Raw())
	}
}

func TestListModels_Forbidden(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, "nope")
	}))
	defer ts.Close()

	_, err := NewClient(WithBaseURL(ts.URL)).ListModels(context.Background(), "k")
	de, ok := domain.AsError(err)
	if !ok || de.Kind != domain.KindForbidden {
		t.Fatalf("ListModels() error = %v, want forbidden", err)
	}
	if de.Message != "Access forbidden (403 Forbidden): nope" {
		t.Errorf("Message = %q", de.Message)
	}
}

func TestListModels_InvalidJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[`)
	}))
	defer ts.Close()

	_, err := NewClient(WithBaseURL(ts.URL)).ListModels(context.Background(), "k")
	if kind := domain.KindOf(err); kind != domain.KindResponseParse {
		t.Fatalf("KindOf() = %q, want %q (err = %v)", kind, domain.KindResponseParse, err)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   domain.ErrorKind
		prefix string
	}{
		{401, domain.KindUnauthorized, "Authentication failed (401 Unauthorized)"},
		{403, domain.KindForbidden, "Access forbidden (403 Forbidden)"},
		{429, domain.KindRateLimited, "Rate limit exceeded (429 Too Many Requests)"},
		{502, domain.KindUpstream, "API request failed (502 Bad Gateway)"},
		{404, domain.KindUpstream, "API request failed (404 Not Found)"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			err := ClassifyStatus(tt.status, "body", true)
			if err.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", err.Kind, tt.kind)
			}
			if err.Message != tt.prefix+": body" {
				t.Errorf("Message = %q, want %q", err.Message, tt.prefix+": body")
			}
		})
	}
}
