package openrouter

import (
	"context"
	"os"
	"testing"

	"github.com/tjfontaine/polyglot-overlay/internal/domain"
	"github.com/tjfontaine/polyglot-overlay/internal/testutil"
)

func skipWithoutKeyWhenRecording(t *testing.T) {
	t.Helper()
	if os.Getenv("OPENROUTER_API_KEY") == "" && os.Getenv("VCR_MODE") == "record" {
		t.Skip("Skipping test: OPENROUTER_API_KEY not set")
	}
}

func TestClient_ListModels_Recorded(t *testing.T) {
	skipWithoutKeyWhenRecording(t)

	recorder, cleanup := testutil.NewVCRRecorder(t, "openrouter_models")
	defer cleanup()

	c := NewClient(WithHTTPClient(testutil.VCRHTTPClient(recorder)))

	models, err := c.ListModels(context.Background(), testutil.APIKey())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) == 0 {
		t.Fatal("Expected at least one model")
	}
	if models[0].ID == "" {
		t.Error("Expected first model to carry an id")
	}
}

func TestClient_CreateChatCompletion_Recorded(t *testing.T) {
	skipWithoutKeyWhenRecording(t)

	recorder, cleanup := testutil.NewVCRRecorder(t, "openrouter_complete")
	defer cleanup()

	c := NewClient(WithHTTPClient(testutil.VCRHTTPClient(recorder)))
	req := NewChatCompletionRequest("openai/gpt-4o-mini", "You are a professional editor.", "their going too the store", 0)

	got, err := c.CreateChatCompletion(context.Background(), testutil.APIKey(), req)
	if err != nil {
		t.Fatalf("CreateChatCompletion() error = %v", err)
	}
	if got == "" {
		t.Fatal("Expected content in response")
	}
	if got[len(got)-1] == '\n' {
		t.Errorf("content %q was not trimmed", got)
	}
}

func TestClient_Unauthorized_Recorded(t *testing.T) {
	if os.Getenv("VCR_MODE") == "record" {
		t.Skip("cassette records a deliberately missing key")
	}

	recorder, cleanup := testutil.NewVCRRecorder(t, "openrouter_unauthorized")
	defer cleanup()

	c := NewClient(WithHTTPClient(testutil.VCRHTTPClient(recorder)))
	req := NewChatCompletionRequest("openai/gpt-4o-mini", "You are a professional editor.", "hi", 0)

	_, err := c.CreateChatCompletion(context.Background(), "", req)
	de, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected classified error, got %v", err)
	}
	if de.Kind != domain.KindUnauthorized {
		t.Errorf("Kind = %q, want %q", de.Kind, domain.KindUnauthorized)
	}
	if de.Body != `{"error":{"message":"No auth credentials found","code":401}}` {
		t.Errorf("Body = %q", de.Body)
	}
}
