package app

import (
	"context"
	"log/slog"
)

// Event is a desktop occurrence delivered to the event loop.
type Event string

const (
	EventShortcutPressed     Event = "shortcut_pressed"
	EventCloseRequested      Event = "close_requested"
	EventMenuShow            Event = "menu_show"
	EventMenuToggleAutostart Event = "menu_toggle_autostart"
	EventMenuExit            Event = "menu_exit"
)

var knownEvents = map[Event]struct{}{
	EventShortcutPressed:     {},
	EventCloseRequested:      {},
	EventMenuShow:            {},
	EventMenuToggleAutostart: {},
	EventMenuExit:            {},
}

// ParseEvent maps a wire name to an Event.
func ParseEvent(name string) (Event, bool) {
	ev := Event(name)
	_, ok := knownEvents[ev]
	return ev, ok
}

// Dispatch queues ev without blocking. It reports false when the queue is
// full or ctx is done.
func (a *App) Dispatch(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case a.events <- ev:
		return true
	default:
		a.logger.Warn("event queue full, dropping event", slog.String("event", string(ev)))
		return false
	}
}

// Run handles events until EventMenuExit (returns nil) or ctx is done
// (returns ctx.Err()). Handler failures are logged and the loop continues.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("event loop started")

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("event loop stopped", slog.String("reason", ctx.Err().Error()))
			return ctx.Err()

		case ev := <-a.events:
			if ev == EventMenuExit {
				a.logger.Info("exit requested from menu")
				return nil
			}
			if err := a.handle(ev); err != nil {
				a.logger.Error("event handler failed",
					slog.String("event", string(ev)),
					slog.String("error", err.Error()))
			}
		}
	}
}

func (a *App) handle(ev Event) error {
	switch ev {
	case EventShortcutPressed:
		_, err := a.overlay.OnShortcutPressed()
		return err

	case EventCloseRequested:
		return a.overlay.HandleCloseRequested()

	case EventMenuShow:
		return a.overlay.Reveal()

	case EventMenuToggleAutostart:
		enabled, err := a.IsAutostartEnabled()
		if err != nil {
			return err
		}
		if enabled {
			err = a.DisableAutostart()
		} else {
			err = a.EnableAutostart()
		}
		if err == nil {
			a.logger.Info("autostart toggled", slog.Bool("enabled", !enabled))
		}
		return err

	default:
		a.logger.Warn("ignoring unknown event", slog.String("event", string(ev)))
		return nil
	}
}
