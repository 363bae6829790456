// Package assist runs text-transformation actions against the gateway.
package assist

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-overlay/internal/api/openrouter"
	"github.com/tjfontaine/polyglot-overlay/internal/domain"
	"github.com/tjfontaine/polyglot-overlay/internal/history"
	"github.com/tjfontaine/polyglot-overlay/internal/prompt"
)

const tracerName = "github.com/tjfontaine/polyglot-overlay/internal/assist"

// Gateway is the upstream chat-completions and catalog API.
type Gateway interface {
	CreateChatCompletion(ctx context.Context, apiKey string, req *openrouter.ChatCompletionRequest) (string, error)
	ListModels(ctx context.Context, apiKey string) ([]openrouter.ModelDescriptor, error)
}

// Recorder persists completion metadata.
type Recorder interface {
	Record(ctx context.Context, e *history.Entry) error
}

// TokenCounter estimates prompt sizes.
type TokenCounter interface {
	CountPrompt(model, system, user string) (int, error)
}

// CompleteRequest is the input of a transformation. Tone and MaxTokens are
// optional.
type CompleteRequest struct {
	Text      string  `json:"text"`
	Action    string  `json:"action"`
	Model     string  `json:"model"`
	APIKey    string  `json:"api_key"`
	Tone      *string `json:"tone,omitempty"`
	MaxTokens *int    `json:"max_tokens,omitempty"`
}

// Option configures the service.
type Option func(*Service)

// WithRecorder records every attempt.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithTokenCounter estimates input tokens for history entries.
func WithTokenCounter(c TokenCounter) Option {
	return func(s *Service) { s.counter = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service is stateless between calls; concurrent invocations are independent.
type Service struct {
	gateway  Gateway
	recorder Recorder
	counter  TokenCounter
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService creates a new assist service.
func NewService(gateway Gateway, opts ...Option) *Service {
	s := &Service{
		gateway: gateway,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Complete runs one transformation. Empty model or key values are forwarded
// upstream unchanged.
func (s *Service) Complete(ctx context.Context, req CompleteRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "assist.complete", trace.WithAttributes(
		attribute.String("assist.action", req.Action),
		attribute.String("assist.model", req.Model),
	))
	defer span.End()

	start := time.Now()
	entry := &history.Entry{
		Action: req.Action,
		Model:  req.Model,
	}
	if req.Tone != nil {
		entry.Tone = *req.Tone
	}

	result, err := s.complete(ctx, req, entry)
	entry.Duration = time.Since(start)

	if err != nil {
		entry.Status = history.StatusError
		entry.ErrorKind = string(domain.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, entry.ErrorKind)
		s.logger.Warn("completion failed",
			slog.String("action", req.Action),
			slog.String("model", req.Model),
			slog.String("kind", entry.ErrorKind),
			slog.String("error", err.Error()),
			slog.Duration("duration", entry.Duration))
	} else {
		entry.Status = history.StatusOK
		entry.OutputLength = len(result)
		s.logger.Info("completion finished",
			slog.String("action", req.Action),
			slog.String("model", req.Model),
			slog.Int("input_tokens", entry.InputTokens),
			slog.Int("output_length", entry.OutputLength),
			slog.Duration("duration", entry.Duration))
	}

	s.record(ctx, entry)
	return result, err
}

func (s *Service) complete(ctx context.Context, req CompleteRequest, entry *history.Entry) (string, error) {
	action, err := prompt.ParseAction(req.Action, req.Tone)
	if err != nil {
		return "", err
	}
	if action.Kind == prompt.KindToneRewrite {
		entry.Tone = action.Tone
	}

	system, err := prompt.Build(action)
	if err != nil {
		return "", err
	}

	maxTokens := 0
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	apiReq := openrouter.NewChatCompletionRequest(req.Model, system, req.Text, maxTokens)

	if s.counter != nil {
		if n, err := s.counter.CountPrompt(req.Model, system, req.Text); err == nil {
			entry.InputTokens = n
		}
	}

	return s.gateway.CreateChatCompletion(ctx, req.APIKey, apiReq)
}

func (s *Service) record(ctx context.Context, entry *history.Entry) {
	if s.recorder == nil {
		return
	}
	// The caller may have gone away; the attempt still gets logged.
	if err := s.recorder.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warn("failed to record interaction", slog.String("error", err.Error()))
	}
}

// ListModels fetches the gateway model catalog.
func (s *Service) ListModels(ctx context.Context, apiKey string) ([]openrouter.ModelDescriptor, error) {
	ctx, span := s.tracer.Start(ctx, "assist.list_models")
	defer span.End()

	models, err := s.gateway.ListModels(ctx, apiKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		s.logger.Warn("model catalog fetch failed",
			slog.String("kind", string(domain.KindOf(err))),
			slog.String("error", err.Error()))
		return nil, err
	}

	span.SetAttributes(attribute.Int("assist.model_count", len(models)))
	s.logger.Debug("model catalog fetched", slog.Int("count", len(models)))
	return models, nil
}
