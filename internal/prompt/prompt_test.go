package prompt

import (
	"strings"
	"testing"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestParseAndBuild(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		tone     *string
		contains string
	}{
		{name: "proofread", action: "proofread", contains: "proofread and correct"},
		{name: "tone with value", action: "tone", tone: strPtr("friendly"), contains: "in a friendly tone"},
		{name: "tone without value", action: "tone", contains: "in a professional tone"},
		{name: "tone with empty value", action: "tone", tone: strPtr(""), contains: "in a  tone"},
		{name: "tone with blank value", action: "tone", tone: strPtr("  "), contains: "in a    tone"},
		{name: "draft", action: "draft", contains: "improve and expand"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := ParseAction(tt.action, tt.tone)
			if err != nil {
				t.Fatalf("ParseAction() error = %v", err)
			}

			first, err := Build(a)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if first == "" {
				t.Fatal("Build() returned empty prompt")
			}
			if !strings.Contains(first, tt.contains) {
				t.Errorf("Build() = %q, want it to contain %q", first, tt.contains)
			}
			if !strings.HasSuffix(first, "without additional commentary.") {
				t.Errorf("Build() = %q, want output-only constraint", first)
			}

			second, _ := Build(a)
			if first != second {
				t.Error("Build() is not deterministic")
			}
			if a.Name() != tt.action {
				t.Errorf("Name() = %q, want %q", a.Name(), tt.action)
			}
		})
	}
}

func TestParseAction_Unsupported(t *testing.T) {
	for _, name := range []string{"", "summarize", "Proofread", "TONE", " draft"} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAction(name, strPtr("casual"))
			if err == nil {
				t.Fatal("ParseAction() expected error")
			}
			if kind := domain.KindOf(err); kind != domain.KindUnsupportedAction {
				t.Errorf("KindOf() = %q, want %q", kind, domain.KindUnsupportedAction)
			}
		})
	}
}

func TestBuild_ZeroAction(t *testing.T) {
	_, err := Build(Action{})
	if domain.KindOf(err) != domain.KindUnsupportedAction {
		t.Errorf("Build(zero) error = %v, want unsupported_action", err)
	}
}
