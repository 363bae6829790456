// Package clipboard reads and writes the system clipboard through the
// platform's command-line tools.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

const commandTimeout = 10 * time.Second

// ErrNoTool is returned by Detect when no supported clipboard tool exists.
var ErrNoTool = errors.New("no clipboard tool found")

// Clipboard runs one command to read and another to write.
type Clipboard struct {
	read  []string
	write []string
}

// New detects the clipboard tools for the running system.
func New() (*Clipboard, error) {
	return Detect(runtime.GOOS, os.Getenv, exec.LookPath)
}

// NewWithCommands uses explicit argv slices for reading and writing.
func NewWithCommands(read, write []string) *Clipboard {
	return &Clipboard{read: read, write: write}
}

// Detect picks clipboard commands for goos. Wayland is preferred over X11
// when WAYLAND_DISPLAY is set, and xclip over xsel.
func Detect(goos string, getenv func(string) string, lookPath func(string) (string, error)) (*Clipboard, error) {
	has := func(name string) bool {
		_, err := lookPath(name)
		return err == nil
	}

	switch goos {
	case "darwin":
		return NewWithCommands([]string{"pbpaste"}, []string{"pbcopy"}), nil
	case "windows":
		return NewWithCommands(
			[]string{"powershell", "-NoProfile", "-Command", "Get-Clipboard", "-Raw"},
			[]string{"clip"},
		), nil
	}

	if getenv("WAYLAND_DISPLAY") != "" && has("wl-paste") && has("wl-copy") {
		return NewWithCommands([]string{"wl-paste", "--no-newline"}, []string{"wl-copy"}), nil
	}
	if has("xclip") {
		return NewWithCommands(
			[]string{"xclip", "-selection", "clipboard", "-o"},
			[]string{"xclip", "-selection", "clipboard"},
		), nil
	}
	if has("xsel") {
		return NewWithCommands(
			[]string{"xsel", "--clipboard", "--output"},
			[]string{"xsel", "--clipboard", "--input"},
		), nil
	}

	return nil, domain.NewError(domain.KindClipboard,
		fmt.Sprintf("Clipboard not available on %s: install wl-clipboard, xclip or xsel", goos)).WithCause(ErrNoTool)
}

// Commands returns the read and write argv.
func (c *Clipboard) Commands() (read, write []string) {
	return c.read, c.write
}

// ReadText returns the clipboard contents unmodified.
func (c *Clipboard) ReadText() (string, error) {
	out, err := run(context.Background(), c.read, nil)
	if err != nil {
		return "", domain.NewError(domain.KindClipboard,
			fmt.Sprintf("Failed to read clipboard: %v", err)).WithCause(err)
	}
	return out, nil
}

// WriteText replaces the clipboard contents.
func (c *Clipboard) WriteText(text string) error {
	if _, err := run(context.Background(), c.write, strings.NewReader(text)); err != nil {
		return domain.NewError(domain.KindClipboard,
			fmt.Sprintf("Failed to write to clipboard: %v", err)).WithCause(err)
	}
	return nil
}

func run(ctx context.Context, argv []string, stdin *strings.Reader) (string, error) {
	if len(argv) == 0 {
		return "", errors.New("no command configured")
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out after %s: %s", commandTimeout, argv[0])
	}
	if err != nil {
		return "", fmt.Errorf("command %s failed: %w: %s", argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
