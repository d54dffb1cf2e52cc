// Package draft calls the external generative-text service that turns a
// case summary into client-facing prose. The service is advisory only:
// a failed call returns an error and never touches core state.
package draft

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lexline/internal/domain"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether a drafting endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.baseURL != "" }

type request struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
}

type response struct {
	Text string `json:"text"`
}

// CaseUpdate asks the service for a status-update draft for the given case.
func (c *Client) CaseUpdate(ctx context.Context, cs domain.Case, client domain.Client) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("drafting service not configured")
	}
	return c.complete(ctx, updatePrompt(cs, client))
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(request{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal draft request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/drafts", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("drafting service: %w", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("drafting service returned %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}
	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode draft response: %w", err)
	}
	if out.Text == "" {
		return "", fmt.Errorf("drafting service returned empty text")
	}
	return out.Text, nil
}

// updatePrompt summarizes the case for the drafting service.
func updatePrompt(cs domain.Case, client domain.Client) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Redacta una actualización breve para el cliente %s sobre el expediente %s (%s).\n",
		client.Name, cs.Folio, cs.Service)
	fmt.Fprintf(&b, "Avance: %.0f%% de las etapas completadas.\n", cs.Progress()*100)
	for _, s := range cs.Stages {
		fmt.Fprintf(&b, "- %s: %s\n", s.Title, s.Status)
	}
	if len(cs.Timeline) > 0 {
		fmt.Fprintf(&b, "Última actividad: %s (%s)\n", cs.Timeline[0].Title, cs.Timeline[0].At.Format("2006-01-02"))
	}
	return b.String()
}
