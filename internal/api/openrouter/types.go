// Package openrouter provides the wire types and HTTP client for the
// OpenRouter chat-completions and model catalog endpoints.
package openrouter

import (
	"bytes"
	"encoding/json"
)

// DefaultMaxTokens is used when the caller does not bound the completion.
const DefaultMaxTokens = 2000

// DefaultTemperature is fixed for every transformation request.
const DefaultTemperature = 0.7

// ChatCompletionRequest is the body of POST /chat/completions.
type ChatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []ChatCompletionMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens"`
	Temperature float64                 `json:"temperature"`
}

// ChatCompletionMessage is a single request message.
type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewChatCompletionRequest builds a system+user request. A maxTokens of zero
// or less is replaced with DefaultMaxTokens.
func NewChatCompletionRequest(model, systemPrompt, userText string, maxTokens int) *ChatCompletionRequest {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &ChatCompletionRequest{
		Model: model,
		Messages: []ChatCompletionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		MaxTokens:   maxTokens,
		Temperature: DefaultTemperature,
	}
}

// ChatCompletionResponse is a syntactically valid response envelope. Only
// choices[0].message.content is consumed; every other field is left
// undecoded so an odd id, index or usage block cannot fail a completion.
type ChatCompletionResponse struct {
	raw json.RawMessage
}

// ParseChatCompletionResponse checks that b is valid JSON. Shape is not
// checked here; FirstContent reports a missing path as absent content.
func ParseChatCompletionResponse(b []byte) (*ChatCompletionResponse, bool) {
	if !json.Valid(b) {
		return nil, false
	}
	return &ChatCompletionResponse{raw: b}, true
}

// FirstContent returns choices[0].message.content when it is a JSON string.
func (r *ChatCompletionResponse) FirstContent() (string, bool) {
	choices, ok := field(r.raw, "choices")
	if !ok {
		return "", false
	}
	choice, ok := firstElement(choices)
	if !ok {
		return "", false
	}
	msg, ok := field(choice, "message")
	if !ok {
		return "", false
	}
	content, ok := field(msg, "content")
	if !ok {
		return "", false
	}
	// json.Unmarshal accepts null into a string, so reject it first
	if bytes.Equal(bytes.TrimSpace(content), []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(content, &s); err != nil {
		return "", false
	}
	return s, true
}

// ModelList is a syntactically valid GET /models envelope.
type ModelList struct {
	raw json.RawMessage
}

// ParseModelList checks that b is valid JSON.
func ParseModelList(b []byte) (*ModelList, bool) {
	if !json.Valid(b) {
		return nil, false
	}
	return &ModelList{raw: b}, true
}

// Models returns the descriptors in data, or nil if the envelope is not an
// object or data is absent or not an array.
func (l *ModelList) Models() []ModelDescriptor {
	data, ok := field(l.raw, "data")
	if !ok {
		return nil
	}
	var models []ModelDescriptor
	if err := json.Unmarshal(data, &models); err != nil {
		return nil
	}
	return models
}

// field returns obj[key] when raw is a JSON object holding key.
func field(raw json.RawMessage, key string) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	v, ok := obj[key]
	return v, ok
}

// firstElement returns arr[0] when raw is a non-empty JSON array.
func firstElement(raw json.RawMessage) (json.RawMessage, bool) {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
		return nil, false
	}
	return arr[0], true
}

// ModelDescriptor is an opaque catalog entry. The raw JSON is preserved and
// re-emitted verbatim; ID and Name are decoded when present.
type ModelDescriptor struct {
	ID   string
	Name string
	raw  json.RawMessage
}

// UnmarshalJSON keeps the raw element and decodes identifying fields
// best-effort.
func (m *ModelDescriptor) UnmarshalJSON(b []byte) error {
	m.raw = append(m.raw[:0], b...)
	var fields struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(b, &fields); err == nil {
		m.ID = fields.ID
		m.Name = fields.Name
	}
	return nil
}

// MarshalJSON re-emits the original element.
func (m ModelDescriptor) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	return json.Marshal(struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	}{m.ID, m.Name})
}

// Raw returns the element as returned by the gateway.
func (m ModelDescriptor) Raw() json.RawMessage {
	return m.raw
}
