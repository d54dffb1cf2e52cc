package draft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lexline/internal/domain"
)

func sampleCase() domain.Case {
	return domain.Case{
		ID:      "case-1",
		Folio:   "EXP-2025-0001",
		Service: "Divorcio",
		Stages: []domain.Stage{
			{Title: "Entrevista", Status: domain.StageCompleted},
			{Title: "Demanda", Status: domain.StageInProgress},
		},
	}
}

func TestCaseUpdate(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/drafts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(response{Text: "Estimado cliente, su expediente avanza."})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Model: "redactor-1"})
	text, err := c.CaseUpdate(context.Background(), sampleCase(), domain.Client{Name: "Acme SA"})
	if err != nil {
		t.Fatalf("case update: %v", err)
	}
	if text != "Estimado cliente, su expediente avanza." {
		t.Fatalf("unexpected draft %q", text)
	}
	if got.Model != "redactor-1" {
		t.Fatalf("model not forwarded, got %q", got.Model)
	}
	for _, want := range []string{"Acme SA", "EXP-2025-0001", "Divorcio", "Entrevista"} {
		if !strings.Contains(got.Prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, got.Prompt)
		}
	}
}

func TestCaseUpdateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	if _, err := c.CaseUpdate(context.Background(), sampleCase(), domain.Client{}); err == nil {
		t.Fatalf("expected error on non-200")
	}
}

func TestCaseUpdateEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(response{})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	if _, err := c.CaseUpdate(context.Background(), sampleCase(), domain.Client{}); err == nil {
		t.Fatalf("expected error on empty text")
	}
}

func TestDisabledClient(t *testing.T) {
	var c *Client
	if c.Enabled() {
		t.Fatalf("nil client must not be enabled")
	}
	c = NewClient(Config{})
	if c.Enabled() {
		t.Fatalf("client without base url must not be enabled")
	}
	if _, err := c.CaseUpdate(context.Background(), sampleCase(), domain.Client{}); err == nil {
		t.Fatalf("expected error from disabled client")
	}
}
