// Package memory provides in-process desktop capabilities. The headless
// daemon uses them and an attached UI shell mirrors their state through the
// local command API.
package memory

import (
	"errors"
	"sync"

	"github.com/tjfontaine/polyglot-overlay/internal/shortcut"
)

// Surface records overlay window state.
type Surface struct {
	mu      sync.RWMutex
	visible bool
	focused bool
	centers int
	width   float64
	height  float64
}

// NewSurface returns a hidden surface.
func NewSurface() *Surface {
	return &Surface{}
}

func (s *Surface) IsVisible() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible, nil
}

func (s *Surface) Show() error {
	s.mu.Lock()
	s.visible = true
	s.mu.Unlock()
	return nil
}

func (s *Surface) Hide() error {
	s.mu.Lock()
	s.visible = false
	s.focused = false
	s.mu.Unlock()
	return nil
}

func (s *Surface) Center() error {
	s.mu.Lock()
	s.centers++
	s.mu.Unlock()
	return nil
}

func (s *Surface) SetFocus() error {
	s.mu.Lock()
	s.focused = s.visible
	s.mu.Unlock()
	return nil
}

func (s *Surface) SetSize(width, height float64) error {
	s.mu.Lock()
	s.width, s.height = width, height
	s.mu.Unlock()
	return nil
}

// Focused reports whether the surface holds input focus.
func (s *Surface) Focused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focused
}

// Size returns the last size set.
func (s *Surface) Size() (width, height float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// ErrAcceleratorInUse is returned when another binding already owns the
// canonical accelerator.
var ErrAcceleratorInUse = errors.New("accelerator already registered")

// Registry tracks active global shortcuts. Press simulates the OS firing a
// registered accelerator.
type Registry struct {
	mu      sync.Mutex
	active  map[string]shortcut.Accelerator
	onPress func(shortcut.Accelerator)
}

// NewRegistry creates a registry that calls onPress for every Press of an
// active accelerator. onPress may be nil.
func NewRegistry(onPress func(shortcut.Accelerator)) *Registry {
	return &Registry{
		active:  make(map[string]shortcut.Accelerator),
		onPress: onPress,
	}
}

// OnPress replaces the press callback.
func (r *Registry) OnPress(fn func(shortcut.Accelerator)) {
	r.mu.Lock()
	r.onPress = fn
	r.mu.Unlock()
}

func (r *Registry) Register(acc shortcut.Accelerator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := acc.Canonical()
	if _, ok := r.active[key]; ok {
		return ErrAcceleratorInUse
	}
	r.active[key] = acc
	return nil
}

func (r *Registry) UnregisterAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.active) == 0 {
		return shortcut.ErrNothingRegistered
	}
	r.active = make(map[string]shortcut.Accelerator)
	return nil
}

// Active returns the raw strings of the registered accelerators.
func (r *Registry) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.active))
	for _, acc := range r.active {
		out = append(out, acc.Raw)
	}
	return out
}

// Press fires raw if an equivalent accelerator is registered and reports
// whether it was.
func (r *Registry) Press(raw string) bool {
	acc, err := shortcut.Parse(raw)
	if err != nil {
		return false
	}

	r.mu.Lock()
	bound, ok := r.active[acc.Canonical()]
	fn := r.onPress
	r.mu.Unlock()

	if !ok {
		return false
	}
	if fn != nil {
		fn(bound)
	}
	return true
}

// Clipboard is a process-local text clipboard.
type Clipboard struct {
	mu   sync.RWMutex
	text string
}

// NewClipboard returns an empty clipboard.
func NewClipboard() *Clipboard {
	return &Clipboard{}
}

func (c *Clipboard) ReadText() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.text, nil
}

func (c *Clipboard) WriteText(text string) error {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
	return nil
}
