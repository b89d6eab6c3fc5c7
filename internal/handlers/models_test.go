package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatbridge/internal/catalog"
)

func newTestModelsHandler(t *testing.T) *ModelsHandler {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog.Load: %v", err)
	}
	return NewModelsHandler(cat)
}

type modelsPayload struct {
	Models    []catalog.ChatModel `json:"models"`
	Providers []catalog.Provider  `json:"providers"`
	Default   string              `json:"default"`
	Selected  string              `json:"selected"`
}

func TestModelsHandler_List(t *testing.T) {
	h := newTestModelsHandler(t)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/models", nil))

	var payload modelsPayload
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Default != "auto" || payload.Selected != "auto" {
		t.Fatalf("expected auto default and selection, got %+v", payload)
	}
	if len(payload.Models) == 0 || payload.Models[0].ID != "auto" {
		t.Fatalf("expected auto first, got %+v", payload.Models)
	}
	if len(payload.Providers) != 1 || payload.Providers[0].ID != catalog.ProviderID {
		t.Fatalf("expected a single provider group, got %+v", payload.Providers)
	}
	if len(payload.Providers[0].Models) != len(payload.Models) {
		t.Fatalf("expected provider to list %d models, got %d", len(payload.Models), len(payload.Providers[0].Models))
	}
}

func TestModelsHandler_ListSearchAndCookie(t *testing.T) {
	h := newTestModelsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/models?q=deepseek", nil)
	req.AddCookie(&http.Cookie{Name: ModelCookie, Value: "deepseek-ai/DeepSeek-R1"})
	rr := httptest.NewRecorder()
	h.List(rr, req)

	var payload modelsPayload
	json.NewDecoder(rr.Body).Decode(&payload)
	if payload.Selected != "deepseek-ai/DeepSeek-R1" {
		t.Fatalf("expected cookie selection, got %q", payload.Selected)
	}
	for _, m := range payload.Models {
		if !strings.Contains(strings.ToLower(m.ID), "deepseek") {
			t.Fatalf("unexpected search result %s", m.ID)
		}
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	req.AddCookie(&http.Cookie{Name: ModelCookie, Value: "retired/model"})
	rr = httptest.NewRecorder()
	h.List(rr, req)
	json.NewDecoder(rr.Body).Decode(&payload)
	if payload.Selected != "auto" {
		t.Fatalf("stale cookie must fall back to the default, got %q", payload.Selected)
	}
}

func TestModelsHandler_SetSelection(t *testing.T) {
	h := newTestModelsHandler(t)

	rr := httptest.NewRecorder()
	h.SetSelection(rr, httptest.NewRequest(http.MethodPut, "/api/v1/models/selection", strings.NewReader(`{"model":"Qwen/QwQ-32B"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != ModelCookie || cookies[0].Value != "Qwen/QwQ-32B" {
		t.Fatalf("expected chat-model cookie, got %+v", cookies)
	}

	rr = httptest.NewRecorder()
	h.SetSelection(rr, httptest.NewRequest(http.MethodPut, "/api/v1/models/selection", strings.NewReader(`{"model":"nope"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown model, got %d", rr.Code)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatal("no cookie must be set for an unknown model")
	}
}
