package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"meta-llama/Meta-Llama-3.1-8B-Instruct", "Meta Llama 3.1 8B Instruct"},
		{"microsoft/phi-4", "Phi 4"},
		{"google/gemma-2-27b-it", "Gemma 2 27b It"},
		{"no-provider", "No Provider"},
		{"org/sub/deep-model", "Deep Model"},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			if got := DisplayName(tc.id); got != tc.want {
				t.Errorf("DisplayName(%q) = %q, want %q", tc.id, got, tc.want)
			}
		})
	}
}

func TestLoad_BundledCatalogStartsWithAuto(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	models := c.Models()
	if len(models) < 2 {
		t.Fatalf("expected bundled models, got %d", len(models))
	}
	if models[0].ID != DefaultChatModel || models[0].LinkedModelID != AutoTarget {
		t.Fatalf("expected auto alias first, got %+v", models[0])
	}
	if c.Default().ID != DefaultChatModel {
		t.Fatalf("expected default to be auto, got %q", c.Default().ID)
	}
}

func TestParse_DerivesNameAndProvider(t *testing.T) {
	c, err := Parse([]byte(`{"data":[{"id":"deepseek-ai/DeepSeek-R1"},{"id":"deepseek-ai/DeepSeek-R1"},{"id":"  "}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got := len(c.Models()); got != 2 {
		t.Fatalf("expected auto + one deduplicated model, got %d", got)
	}

	m := c.ByID("deepseek-ai/DeepSeek-R1")
	if m.Name != "DeepSeek R1" {
		t.Errorf("unexpected name %q", m.Name)
	}
	if m.Description != "Provider: deepseek-ai" {
		t.Errorf("unexpected description %q", m.Description)
	}
	if m.Image != defaultImage {
		t.Errorf("unexpected image %q", m.Image)
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`{"data":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(`{"data":[{"id":"acme/tiny-1"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.Has("acme/tiny-1") {
		t.Fatalf("expected model from file")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestActualModelID(t *testing.T) {
	c, err := Parse([]byte(`{"data":[{"id":"acme/tiny-1"}]}`))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		id   string
		want string
	}{
		{"auto resolves to linked model", "auto", AutoTarget},
		{"known model passes through", "acme/tiny-1", "acme/tiny-1"},
		{"unknown falls back through auto", "nope/unknown", AutoTarget},
		{"empty falls back through auto", "", AutoTarget},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.ActualModelID(tc.id); got != tc.want {
				t.Errorf("ActualModelID(%q) = %q, want %q", tc.id, got, tc.want)
			}
		})
	}
}

func TestSearch(t *testing.T) {
	c, err := Parse([]byte(`{"data":[{"id":"acme/tiny-1"},{"id":"other/Large-Model"}]}`))
	if err != nil {
		t.Fatal(err)
	}

	if got := len(c.Search("   ")); got != 3 {
		t.Errorf("blank query should return all models, got %d", got)
	}

	got := c.Search("LARGE")
	if len(got) != 1 || got[0].ID != "other/Large-Model" {
		t.Errorf("expected case-insensitive name match, got %+v", got)
	}

	got = c.Search("provider: acme")
	if len(got) != 1 || got[0].ID != "acme/tiny-1" {
		t.Errorf("expected description match, got %+v", got)
	}

	if got := c.Search("zzz"); len(got) != 0 {
		t.Errorf("expected no matches, got %+v", got)
	}
}
