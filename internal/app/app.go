// Package app wires the overlay, shortcut, clipboard, autostart and assist
// components behind one command surface and runs the desktop event loop.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/polyglot-overlay/internal/api/openrouter"
	"github.com/tjfontaine/polyglot-overlay/internal/assist"
	"github.com/tjfontaine/polyglot-overlay/internal/domain"
	"github.com/tjfontaine/polyglot-overlay/internal/history"
	"github.com/tjfontaine/polyglot-overlay/internal/overlay"
	"github.com/tjfontaine/polyglot-overlay/internal/shortcut"
)

// DefaultQueueSize bounds pending desktop events.
const DefaultQueueSize = 32

// Clipboard is the system text clipboard.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// Autostart is the login-item facility.
type Autostart interface {
	Enable() error
	Disable() error
	IsEnabled() (bool, error)
}

// Assistant runs text actions and lists models.
type Assistant interface {
	Complete(ctx context.Context, req assist.CompleteRequest) (string, error)
	ListModels(ctx context.Context, apiKey string) ([]openrouter.ModelDescriptor, error)
}

// HistoryLister returns recent completion attempts.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]history.Entry, error)
}

// TokenEstimator counts tokens for a model.
type TokenEstimator interface {
	CountText(model, text string) (int, error)
}

// Deps are the components an App drives. History and Tokens are optional.
type Deps struct {
	Overlay   *overlay.Controller
	Shortcuts *shortcut.Manager
	Clipboard Clipboard
	Autostart Autostart
	Assistant Assistant
	History   HistoryLister
	Tokens    TokenEstimator
	Logger    *slog.Logger

	// DefaultModel is used when a request names no model
	DefaultModel string

	// APIKey is used when a request carries no key at all
	APIKey string

	QueueSize int
}

// App is the command surface and event loop.
type App struct {
	overlay   *overlay.Controller
	shortcuts *shortcut.Manager
	clipboard Clipboard
	autostart Autostart
	assistant Assistant
	history   HistoryLister
	tokens    TokenEstimator
	logger    *slog.Logger

	defaultModel string
	apiKey       string

	events chan Event
}

// New creates an App.
func New(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := d.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &App{
		overlay:      d.Overlay,
		shortcuts:    d.Shortcuts,
		clipboard:    d.Clipboard,
		autostart:    d.Autostart,
		assistant:    d.Assistant,
		history:      d.History,
		tokens:       d.Tokens,
		logger:       logger,
		defaultModel: d.DefaultModel,
		apiKey:       d.APIKey,
		events:       make(chan Event, size),
	}
}

// Overlay commands

func (a *App) ToggleOverlay() (bool, error) {
	return a.overlay.Toggle()
}

func (a *App) ResizeOverlay(height float64) error {
	return a.overlay.Resize(height)
}

func (a *App) OverlayState() overlay.State {
	return a.overlay.State()
}

// Clipboard commands

func (a *App) ReadClipboard() (string, error) {
	text, err := a.clipboard.ReadText()
	if err != nil {
		return "", classify(err, domain.KindClipboard, "Failed to read clipboard")
	}
	return text, nil
}

func (a *App) WriteClipboard(text string) error {
	if err := a.clipboard.WriteText(text); err != nil {
		return classify(err, domain.KindClipboard, "Failed to write to clipboard")
	}
	return nil
}

// Assist commands

// CompleteTextRequest is a completion command. Nil Model or APIKey fall back
// to the configured values; an explicit empty string is sent as is.
type CompleteTextRequest struct {
	Text      string  `json:"text"`
	Action    string  `json:"action"`
	Model     *string `json:"model,omitempty"`
	APIKey    *string `json:"api_key,omitempty"`
	Tone      *string `json:"tone,omitempty"`
	MaxTokens *int    `json:"max_tokens,omitempty"`
}

func (a *App) CompleteText(ctx context.Context, req CompleteTextRequest) (string, error) {
	return a.assistant.Complete(ctx, assist.CompleteRequest{
		Text:      req.Text,
		Action:    req.Action,
		Model:     a.resolveModel(req.Model),
		APIKey:    a.resolveKey(req.APIKey),
		Tone:      req.Tone,
		MaxTokens: req.MaxTokens,
	})
}

func (a *App) ListModels(ctx context.Context, apiKey *string) ([]openrouter.ModelDescriptor, error) {
	return a.assistant.ListModels(ctx, a.resolveKey(apiKey))
}

func (a *App) resolveKey(k *string) string {
	if k != nil {
		return *k
	}
	return a.apiKey
}

func (a *App) resolveModel(m *string) string {
	if m != nil {
		return *m
	}
	return a.defaultModel
}

// Shortcut commands

func (a *App) GetShortcut() string {
	return a.shortcuts.Get()
}

func (a *App) ShortcutBinding() (shortcut.Binding, bool) {
	return a.shortcuts.Binding()
}

func (a *App) SetShortcut(ctx context.Context, raw string) error {
	return a.shortcuts.Set(ctx, raw)
}

func (a *App) ResetShortcut(ctx context.Context) error {
	return a.shortcuts.Reset(ctx)
}

// Autostart commands

func (a *App) EnableAutostart() error {
	if err := a.autostart.Enable(); err != nil {
		return classify(err, domain.KindAutostart, "Failed to enable autostart")
	}
	return nil
}

func (a *App) DisableAutostart() error {
	if err := a.autostart.Disable(); err != nil {
		return classify(err, domain.KindAutostart, "Failed to disable autostart")
	}
	return nil
}

func (a *App) IsAutostartEnabled() (bool, error) {
	enabled, err := a.autostart.IsEnabled()
	if err != nil {
		return false, classify(err, domain.KindAutostart, "Failed to query autostart")
	}
	return enabled, nil
}

// History returns recent completion attempts, newest first.
func (a *App) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if a.history == nil {
		return []history.Entry{}, nil
	}
	return a.history.List(ctx, limit)
}

// EstimateTokens counts text for model, or the default model when empty.
func (a *App) EstimateTokens(model, text string) (int, error) {
	if a.tokens == nil {
		return 0, domain.ErrInvalidRequest("token estimation is not configured")
	}
	if model == "" {
		model = a.defaultModel
	}
	return a.tokens.CountText(model, text)
}

// classify keeps an existing classification and wraps anything else.
func classify(err error, kind domain.ErrorKind, prefix string) error {
	if _, ok := domain.AsError(err); ok {
		return err
	}
	return domain.NewError(kind, fmt.Sprintf("%s: %v", prefix, err)).WithCause(err)
}
