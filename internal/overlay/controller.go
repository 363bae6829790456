// Package overlay controls visibility and geometry of the overlay surface.
package overlay

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

// DefaultWidth is the fixed overlay width in logical pixels.
const DefaultWidth = 500

// Surface step names reported in surface_operation_failed errors.
const (
	StepHide   = "hide"
	StepShow   = "show"
	StepCenter = "center"
	StepFocus  = "focus"
	StepResize = "resize"
)

// Surface is the platform window hosting the overlay.
type Surface interface {
	IsVisible() (bool, error)
	Show() error
	Hide() error
	Center() error
	SetFocus() error
	SetSize(width, height float64) error
}

// State is the overlay visibility reported to callers.
type State struct {
	Visible bool `json:"visible"`
}

// Controller serializes visibility changes on a single surface.
type Controller struct {
	surface Surface
	width   float64
	logger  *slog.Logger

	mu sync.Mutex
}

// NewController creates a controller. A width <= 0 selects DefaultWidth.
func NewController(surface Surface, width float64, logger *slog.Logger) *Controller {
	if width <= 0 {
		width = DefaultWidth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		surface: surface,
		width:   width,
		logger:  logger,
	}
}

// Width returns the configured overlay width.
func (c *Controller) Width() float64 {
	return c.width
}

// Toggle hides a visible overlay, or shows, centers and focuses a hidden
// one. It returns the resulting visibility.
func (c *Controller) Toggle() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.visible() {
		if err := c.surface.Hide(); err != nil {
			return true, domain.ErrSurface(StepHide, err)
		}
		c.logger.Debug("overlay hidden")
		return false, nil
	}

	if err := c.surface.Show(); err != nil {
		return false, domain.ErrSurface(StepShow, err)
	}
	if err := c.surface.Center(); err != nil {
		return true, domain.ErrSurface(StepCenter, err)
	}
	if err := c.surface.SetFocus(); err != nil {
		return true, domain.ErrSurface(StepFocus, err)
	}

	c.logger.Debug("overlay shown")
	return true, nil
}

// OnShortcutPressed is the global shortcut handler.
func (c *Controller) OnShortcutPressed() (bool, error) {
	return c.Toggle()
}

// Reveal shows and focuses the overlay without toggling.
func (c *Controller) Reveal() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.surface.Show(); err != nil {
		return domain.ErrSurface(StepShow, err)
	}
	if err := c.surface.SetFocus(); err != nil {
		return domain.ErrSurface(StepFocus, err)
	}
	return nil
}

// HandleCloseRequested turns a native close into a hide. The surface stays
// alive so the next toggle can show it again.
func (c *Controller) HandleCloseRequested() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.surface.Hide(); err != nil {
		return domain.ErrSurface(StepHide, err)
	}
	c.logger.Debug("overlay close intercepted")
	return nil
}

// Resize sets the overlay height, keeping the configured width.
func (c *Controller) Resize(height float64) error {
	if height <= 0 {
		return domain.ErrSurface(StepResize, fmt.Errorf("invalid height %v", height))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.surface.SetSize(c.width, height); err != nil {
		return domain.ErrSurface(StepResize, err)
	}
	return nil
}

// State reports the current visibility.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{Visible: c.visible()}
}

// visible treats a failed query as hidden. Callers hold c.mu.
func (c *Controller) visible() bool {
	v, err := c.surface.IsVisible()
	if err != nil {
		c.logger.Warn("failed to query overlay visibility",
			slog.String("error", err.Error()))
		return false
	}
	return v
}
