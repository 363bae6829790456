package shortcut

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

// SettingsKey is the settings entry holding the user's accelerator.
const SettingsKey = "shortcut"

// ErrNothingRegistered may be returned by Registry.UnregisterAll when no
// binding was active. The manager ignores it.
var ErrNothingRegistered = errors.New("no shortcut registered")

// Registry is the OS-level global hotkey facility.
type Registry interface {
	Register(acc Accelerator) error
	UnregisterAll() error
}

// Store persists the chosen accelerator. Put must set and persist under one
// lock and leave the old value in place when persisting fails.
type Store interface {
	Get(key string) (string, bool)
	Put(key, value string) error
}

// Source records where the bound accelerator came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceUserSet Source = "user"
)

// Binding is the accelerator currently registered with the OS.
type Binding struct {
	Raw         string      `json:"shortcut"`
	Source      Source      `json:"source"`
	Accelerator Accelerator `json:"-"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithDefault overrides DefaultAccelerator.
func WithDefault(raw string) Option {
	return func(m *Manager) {
		if raw != "" {
			m.def = raw
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager owns the single active binding. At most one accelerator is
// registered at a time, and the persisted value only changes after the new
// accelerator registered successfully.
type Manager struct {
	registry Registry
	store    Store
	def      string
	logger   *slog.Logger

	mu    sync.Mutex
	bound *Binding
}

// NewManager creates a manager. Nothing is registered until Start.
func NewManager(registry Registry, store Store, opts ...Option) *Manager {
	m := &Manager{
		registry: registry,
		store:    store,
		def:      DefaultAccelerator,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Default returns the accelerator used when nothing is persisted.
func (m *Manager) Default() string {
	return m.def
}

// Start binds the persisted accelerator, or the default when none is stored
// or the stored value does not parse. A registration failure is logged and
// leaves the manager unbound; startup continues.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, source := m.def, SourceDefault
	if stored, ok := m.store.Get(SettingsKey); ok {
		if _, err := Parse(stored); err != nil {
			m.logger.Warn("stored shortcut is invalid, using default",
				slog.String("stored", stored),
				slog.String("default", m.def),
				slog.String("error", err.Error()))
		} else {
			raw, source = stored, SourceUserSet
		}
	}

	acc, err := Parse(raw)
	if err != nil {
		m.logger.Error("default shortcut is invalid", slog.String("error", err.Error()))
		return nil
	}
	if err := m.bind(acc, source); err != nil {
		m.logger.Error("failed to register shortcut at startup",
			slog.String("shortcut", raw),
			slog.String("error", err.Error()))
		return nil
	}

	m.logger.Info("shortcut registered",
		slog.String("shortcut", raw),
		slog.String("source", string(source)))
	return nil
}

// Set validates raw, replaces the active registration and persists it.
func (m *Manager) Set(ctx context.Context, raw string) error {
	return m.set(raw, SourceUserSet)
}

// Reset rebinds the default accelerator.
func (m *Manager) Reset(ctx context.Context) error {
	return m.set(m.def, SourceDefault)
}

func (m *Manager) set(raw string, source Source) error {
	acc, err := Parse(raw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.bound

	if err := m.bind(acc, source); err != nil {
		return err
	}

	if err := m.store.Put(SettingsKey, raw); err != nil {
		m.logger.Error("failed to persist shortcut, restoring previous binding",
			slog.String("shortcut", raw),
			slog.String("error", err.Error()))
		m.restore(prev)
		return domain.ErrPersistence(err)
	}

	m.logger.Info("shortcut updated",
		slog.String("shortcut", raw),
		slog.String("source", string(source)))
	return nil
}

// bind unregisters everything and registers acc. On a registration failure
// the manager is left unbound. Callers hold m.mu.
func (m *Manager) bind(acc Accelerator, source Source) error {
	if err := m.registry.UnregisterAll(); err != nil && !errors.Is(err, ErrNothingRegistered) {
		return domain.NewError(domain.KindShortcutRegistration,
			fmt.Sprintf("Failed to unregister shortcuts: %v", err)).WithCause(err)
	}

	if err := m.registry.Register(acc); err != nil {
		m.bound = nil
		return domain.NewError(domain.KindShortcutRegistration,
			fmt.Sprintf("Failed to register shortcut %q: %v", acc.Raw, err)).WithCause(err)
	}

	m.bound = &Binding{Raw: acc.Raw, Source: source, Accelerator: acc}
	return nil
}

func (m *Manager) restore(prev *Binding) {
	if prev == nil {
		if err := m.registry.UnregisterAll(); err != nil && !errors.Is(err, ErrNothingRegistered) {
			m.logger.Warn("failed to unregister shortcut", slog.String("error", err.Error()))
		}
		m.bound = nil
		return
	}
	if err := m.bind(prev.Accelerator, prev.Source); err != nil {
		m.logger.Error("failed to restore previous shortcut",
			slog.String("shortcut", prev.Raw),
			slog.String("error", err.Error()))
	}
}

// Get returns the bound accelerator. When nothing is bound it reports the
// persisted value, falling back to the default.
func (m *Manager) Get() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bound != nil {
		return m.bound.Raw
	}
	if stored, ok := m.store.Get(SettingsKey); ok {
		return stored
	}
	return m.def
}

// Binding returns the active binding, if any.
func (m *Manager) Binding() (Binding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bound == nil {
		return Binding{}, false
	}
	return *m.bound, true
}

// Sync applies a value written to the store by another process. The store
// must already be reloaded. Nothing is persisted.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.store.Get(SettingsKey)
	if !ok {
		return nil
	}
	if m.bound != nil && m.bound.Raw == stored {
		return nil
	}

	acc, err := Parse(stored)
	if err != nil {
		m.logger.Warn("ignoring invalid shortcut from settings file",
			slog.String("stored", stored),
			slog.String("error", err.Error()))
		return err
	}

	source := SourceUserSet
	if stored == m.def {
		source = SourceDefault
	}
	if err := m.bind(acc, source); err != nil {
		return err
	}

	m.logger.Info("shortcut reloaded from settings", slog.String("shortcut", stored))
	return nil
}
