// Package prompt maps a text-transformation action to its system prompt.
package prompt

import (
	"fmt"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

// Kind identifies an action variant.
type Kind int

const (
	kindUnknown Kind = iota
	KindProofread
	KindToneRewrite
	KindDraftExpand
)

// Wire names accepted from the UI layer.
const (
	NameProofread = "proofread"
	NameTone      = "tone"
	NameDraft     = "draft"
)

// DefaultTone is substituted when a tone rewrite is requested without a tone.
const DefaultTone = "professional"

const (
	proofreadPrompt = "You are a professional editor. Please proofread and correct the following text for grammar, spelling, punctuation, and clarity. Return only the corrected text without additional commentary."
	tonePrompt      = "You are a writing assistant. Please rewrite the following text in a %s tone. Maintain the original meaning but adjust the style and language to match the requested tone. Return only the rewritten text without additional commentary."
	draftPrompt     = "You are a helpful writing assistant. Please help improve and expand the following text to make it more complete, clear, and professional. Return only the improved text without additional commentary."
)

// Action is a user-chosen transformation. Tone is only meaningful for
// KindToneRewrite.
type Action struct {
	Kind Kind
	Tone string
}

// Proofread returns the proofread action.
func Proofread() Action { return Action{Kind: KindProofread} }

// ToneRewrite returns a tone rewrite action. The tone is used verbatim, blank
// included.
func ToneRewrite(tone string) Action {
	return Action{Kind: KindToneRewrite, Tone: tone}
}

// DraftExpand returns the draft expansion action.
func DraftExpand() Action { return Action{Kind: KindDraftExpand} }

// Name returns the wire name of the action.
func (a Action) Name() string {
	switch a.Kind {
	case KindProofread:
		return NameProofread
	case KindToneRewrite:
		return NameTone
	case KindDraftExpand:
		return NameDraft
	default:
		return ""
	}
}

// ParseAction resolves a wire name. Unknown names fail fast; a missing tone
// never does.
func ParseAction(name string, tone *string) (Action, error) {
	switch name {
	case NameProofread:
		return Proofread(), nil
	case NameTone:
		if tone == nil {
			return ToneRewrite(DefaultTone), nil
		}
		return ToneRewrite(*tone), nil
	case NameDraft:
		return DraftExpand(), nil
	default:
		return Action{}, domain.ErrUnsupportedAction(name)
	}
}

// Build returns the system prompt for a.
func Build(a Action) (string, error) {
	switch a.Kind {
	case KindProofread:
		return proofreadPrompt, nil
	case KindToneRewrite:
		return fmt.Sprintf(tonePrompt, a.Tone), nil
	case KindDraftExpand:
		return draftPrompt, nil
	default:
		return "", domain.ErrUnsupportedAction(fmt.Sprintf("kind(%d)", int(a.Kind)))
	}
}
