package llm

import "testing"

func TestModelLookup(t *testing.T) {
	if !IsKnownModel(DefaultModel) {
		t.Fatalf("default model %s must be known", DefaultModel)
	}
	if got := GetModelName("gemini-2.5-flash"); got != "Gemini 2.5 Flash" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := GetModelName("gemini-exp"); got != "gemini-exp" {
		t.Fatalf("unknown model must fall back to its id, got %q", got)
	}
	if GetModelByID("gemini-pro") != nil {
		t.Fatalf("retired model must not be listed")
	}
}
