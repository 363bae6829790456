// Package shortcut parses global-shortcut accelerators and keeps the active
// binding in sync with the registry and persisted settings.
package shortcut

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

// DefaultAccelerator is bound when nothing valid is persisted.
const DefaultAccelerator = "CommandOrControl+Shift+A"

// Modifier is a bit set of accelerator modifiers.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModControl
	ModAlt
	ModSuper
	// ModCommandOrControl resolves to Super on macOS and Control elsewhere.
	ModCommandOrControl
)

var modifierNames = map[string]Modifier{
	"shift":            ModShift,
	"control":          ModControl,
	"ctrl":             ModControl,
	"alt":              ModAlt,
	"option":           ModAlt,
	"super":            ModSuper,
	"command":          ModSuper,
	"cmd":              ModSuper,
	"meta":             ModSuper,
	"commandorcontrol": ModCommandOrControl,
	"cmdorctrl":        ModCommandOrControl,
	"commandorctrl":    ModCommandOrControl,
	"cmdorcontrol":     ModCommandOrControl,
}

var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModCommandOrControl, "CommandOrControl"},
	{ModControl, "Control"},
	{ModSuper, "Super"},
	{ModAlt, "Alt"},
	{ModShift, "Shift"},
}

var namedKeys = map[string]string{
	"space":        "Space",
	"enter":        "Enter",
	"return":       "Enter",
	"tab":          "Tab",
	"escape":       "Escape",
	"esc":          "Escape",
	"backspace":    "Backspace",
	"delete":       "Delete",
	"insert":       "Insert",
	"home":         "Home",
	"end":          "End",
	"pageup":       "PageUp",
	"pagedown":     "PageDown",
	"up":           "ArrowUp",
	"down":         "ArrowDown",
	"left":         "ArrowLeft",
	"right":        "ArrowRight",
	"arrowup":      "ArrowUp",
	"arrowdown":    "ArrowDown",
	"arrowleft":    "ArrowLeft",
	"arrowright":   "ArrowRight",
	"minus":        "Minus",
	"equal":        "Equal",
	"comma":        "Comma",
	"period":       "Period",
	"slash":        "Slash",
	"semicolon":    "Semicolon",
	"quote":        "Quote",
	"backquote":    "Backquote",
	"bracketleft":  "BracketLeft",
	"bracketright": "BracketRight",
	"backslash":    "Backslash",
}

// Accelerator is a parsed shortcut. Raw is the string the user supplied.
type Accelerator struct {
	Raw       string
	Modifiers Modifier
	Key       string
}

// Has reports whether m is part of the accelerator.
func (a Accelerator) Has(m Modifier) bool {
	return a.Modifiers&m != 0
}

// Canonical renders the accelerator with normalized names and a fixed
// modifier order, so equivalent spellings compare equal.
func (a Accelerator) Canonical() string {
	parts := make([]string, 0, len(modifierOrder)+1)
	for _, m := range modifierOrder {
		if a.Has(m.mod) {
			parts = append(parts, m.name)
		}
	}
	parts = append(parts, a.Key)
	return strings.Join(parts, "+")
}

func (a Accelerator) String() string {
	return a.Raw
}

// Parse validates raw against the accelerator grammar.
func Parse(raw string) (Accelerator, error) {
	if strings.TrimSpace(raw) == "" {
		return Accelerator{}, syntaxError(raw, "shortcut is empty")
	}

	tokens := strings.Split(raw, "+")
	acc := Accelerator{Raw: raw}

	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return Accelerator{}, syntaxError(raw, "empty token")
		}
		lower := strings.ToLower(tok)
		last := i == len(tokens)-1

		if mod, ok := modifierNames[lower]; ok {
			if last {
				return Accelerator{}, syntaxError(raw, "missing key after modifiers")
			}
			if acc.Has(mod) {
				return Accelerator{}, syntaxError(raw, fmt.Sprintf("duplicate modifier %q", tok))
			}
			acc.Modifiers |= mod
			continue
		}

		if !last {
			return Accelerator{}, syntaxError(raw, fmt.Sprintf("unknown modifier %q", tok))
		}
		key, ok := parseKey(lower)
		if !ok {
			return Accelerator{}, syntaxError(raw, fmt.Sprintf("unknown key %q", tok))
		}
		acc.Key = key
	}

	return acc, nil
}

func parseKey(lower string) (string, bool) {
	if name, ok := namedKeys[lower]; ok {
		return name, true
	}

	switch {
	case len(lower) == 1 && lower[0] >= 'a' && lower[0] <= 'z':
		return "Key" + strings.ToUpper(lower), true
	case len(lower) == 4 && strings.HasPrefix(lower, "key") && lower[3] >= 'a' && lower[3] <= 'z':
		return "Key" + strings.ToUpper(lower[3:]), true
	case len(lower) == 1 && lower[0] >= '0' && lower[0] <= '9':
		return "Digit" + lower, true
	case len(lower) == 6 && strings.HasPrefix(lower, "digit") && lower[5] >= '0' && lower[5] <= '9':
		return "Digit" + lower[5:], true
	case strings.HasPrefix(lower, "f"):
		return parseFunctionKey(lower[1:])
	}
	return "", false
}

func parseFunctionKey(num string) (string, bool) {
	if num == "" || len(num) > 2 || num[0] == '0' {
		return "", false
	}
	n := 0
	for _, c := range num {
		if c < '0' || c > '9' {
			return "", false
		}
		n = n*10 + int(c-'0')
	}
	if n < 1 || n > 24 {
		return "", false
	}
	return fmt.Sprintf("F%d", n), true
}

func syntaxError(raw, reason string) *domain.Error {
	return domain.NewError(domain.KindInvalidShortcutSyntax,
		fmt.Sprintf("Invalid shortcut %q: %s", raw, reason))
}
