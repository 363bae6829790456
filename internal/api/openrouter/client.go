package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

const (
	// DefaultBaseURL is the OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	defaultUserAgent = "polyglot-overlay/1.0"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithAttribution sets the optional OpenRouter app attribution headers.
func WithAttribution(referer, title string) ClientOption {
	return func(c *Client) {
		c.referer = referer
		c.title = title
	}
}

// Client talks to the gateway. It holds no per-request state and is safe for
// concurrent use; the API key is supplied on every call.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	referer    string
	title      string
}

// NewClient creates a new gateway client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: http.DefaultClient,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateChatCompletion sends a single chat completion request and returns the
// trimmed content of the first choice. There is no retry; the caller owns
// retry policy.
func (c *Client) CreateChatCompletion(ctx context.Context, apiKey string, req *ChatCompletionRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, "/chat/completions", apiKey, body)
	if err != nil {
		return "", err
	}

	result, ok := ParseChatCompletionResponse(respBody)
	if !ok {
		return "", domain.NewError(domain.KindResponseParse, "Failed to parse AI response: invalid JSON")
	}

	content, ok := result.FirstContent()
	if !ok {
		return "", domain.NewError(domain.KindEmptyResponse, "No content in AI response")
	}

	return strings.TrimSpace(content), nil
}

// ListModels retrieves the model catalog. Any valid JSON without a data
// array yields an empty list, not an error.
func (c *Client) ListModels(ctx context.Context, apiKey string) ([]ModelDescriptor, error) {
	respBody, err := c.do(ctx, http.MethodGet, "/models", apiKey, nil)
	if err != nil {
		return nil, err
	}

	result, ok := ParseModelList(respBody)
	if !ok {
		return nil, domain.NewError(domain.KindResponseParse, "Failed to parse models response: invalid JSON")
	}

	models := result.Models()
	if models == nil {
		models = []ModelDescriptor{}
	}
	return models, nil
}

// do issues the request and returns the body of a 2xx response. Transport
// failures and non-2xx statuses come back classified.
func (c *Client) do(ctx context.Context, method, path, apiKey string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq, apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork,
			fmt.Sprintf("Failed to connect to OpenRouter API: %v", err)).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, ClassifyStatus(resp.StatusCode, "", false)
		}
		return nil, ClassifyStatus(resp.StatusCode, string(respBody), true)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewError(domain.KindNetwork,
			fmt.Sprintf("Failed to read OpenRouter response: %v", err)).WithCause(err)
	}

	return respBody, nil
}

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}
}

// ClassifyStatus maps a non-2xx status to its error kind. When the body could
// not be read (haveBody false) the message falls back to the bare status.
func ClassifyStatus(status int, body string, haveBody bool) *domain.Error {
	statusText := fmt.Sprintf("%d %s", status, http.StatusText(status))

	var kind domain.ErrorKind
	var prefix string
	switch status {
	case http.StatusUnauthorized:
		kind, prefix = domain.KindUnauthorized, "Authentication failed"
	case http.StatusForbidden:
		kind, prefix = domain.KindForbidden, "Access forbidden"
	case http.StatusTooManyRequests:
		kind, prefix = domain.KindRateLimited, "Rate limit exceeded"
	default:
		kind, prefix = domain.KindUpstream, "API request failed"
	}

	if !haveBody {
		return domain.NewError(kind, "API request failed with status: "+statusText).WithStatus(status)
	}

	return domain.NewError(kind, fmt.Sprintf("%s (%s): %s", prefix, statusText, body)).
		WithStatus(status).
		WithBody(body)
}
