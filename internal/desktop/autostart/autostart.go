// Package autostart registers the daemon to start at login. macOS uses a
// LaunchAgent, other Unix systems use an XDG autostart entry.
package autostart

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

// Config describes the login item.
type Config struct {
	// Name is the XDG entry file name and display name
	Name string

	// Label is the LaunchAgent label
	Label string

	// Exec is the program to launch; defaults to the running executable
	Exec string

	// Args are passed after Exec
	Args []string

	// GOOS overrides runtime.GOOS
	GOOS string

	// Home overrides the user's home directory
	Home string

	// ConfigHome overrides $XDG_CONFIG_HOME
	ConfigHome string
}

// Manager enables and disables the login item.
type Manager struct {
	cfg  Config
	path string
}

// New resolves cfg and the login item path.
func New(cfg Config) (*Manager, error) {
	if cfg.Name == "" {
		cfg.Name = "polyglot-overlay"
	}
	if cfg.Label == "" {
		cfg.Label = "com.polyglot.overlay"
	}
	if cfg.GOOS == "" {
		cfg.GOOS = runtime.GOOS
	}
	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Home = home
	}
	if cfg.Exec == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		cfg.Exec = exe
	}

	m := &Manager{cfg: cfg}
	switch cfg.GOOS {
	case "windows":
	case "darwin":
		m.path = filepath.Join(cfg.Home, "Library", "LaunchAgents", cfg.Label+".plist")
	default:
		base := cfg.ConfigHome
		if base == "" {
			base = os.Getenv("XDG_CONFIG_HOME")
		}
		if base == "" {
			base = filepath.Join(cfg.Home, ".config")
		}
		m.path = filepath.Join(base, "autostart", cfg.Name+".desktop")
	}
	return m, nil
}

// Path returns the login item file, or "" when unsupported.
func (m *Manager) Path() string {
	return m.path
}

// Enable writes the login item.
func (m *Manager) Enable() error {
	if m.path == "" {
		return m.unsupported()
	}

	var content []byte
	if m.cfg.GOOS == "darwin" {
		content = m.plist()
	} else {
		content = m.desktopEntry()
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return autostartError("enable", err)
	}
	if err := os.WriteFile(m.path, content, 0o644); err != nil {
		return autostartError("enable", err)
	}
	return nil
}

// Disable removes the login item. A missing item is not an error.
func (m *Manager) Disable() error {
	if m.path == "" {
		return m.unsupported()
	}
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return autostartError("disable", err)
	}
	return nil
}

// IsEnabled reports whether the login item exists.
func (m *Manager) IsEnabled() (bool, error) {
	if m.path == "" {
		return false, m.unsupported()
	}
	_, err := os.Stat(m.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, autostartError("query", err)
	}
}

func (m *Manager) unsupported() error {
	return domain.NewError(domain.KindAutostart,
		fmt.Sprintf("Autostart is not supported on %s", m.cfg.GOOS))
}

func autostartError(op string, err error) error {
	return domain.NewError(domain.KindAutostart,
		fmt.Sprintf("Failed to %s autostart: %v", op, err)).WithCause(err)
}

func (m *Manager) plist() []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>`)
	xml.EscapeText(&b, []byte(m.cfg.Label))
	b.WriteString(`</string>
    <key>ProgramArguments</key>
    <array>
`)
	for _, arg := range append([]string{m.cfg.Exec}, m.cfg.Args...) {
		b.WriteString("        <string>")
		xml.EscapeText(&b, []byte(arg))
		b.WriteString("</string>\n")
	}
	b.WriteString(`    </array>
    <key>RunAtLoad</key>
    <true/>
</dict>
</plist>
`)
	return b.Bytes()
}

func (m *Manager) desktopEntry() []byte {
	args := make([]string, 0, len(m.cfg.Args)+1)
	for _, a := range append([]string{m.cfg.Exec}, m.cfg.Args...) {
		args = append(args, quoteExecArg(a))
	}

	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", m.cfg.Name)
	fmt.Fprintf(&b, "Exec=%s\n", strings.Join(args, " "))
	b.WriteString("Terminal=false\n")
	b.WriteString("X-GNOME-Autostart-enabled=true\n")
	return []byte(b.String())
}

// quoteExecArg applies the desktop entry Exec quoting rules.
func quoteExecArg(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\><~|&;$*?#()`") {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", `$`, `\$`)
	return `"` + r.Replace(s) + `"`
}
