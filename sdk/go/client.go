package lexlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Lexline HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Stage represents the API stage model (partial).
type Stage struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	DueDate       string `json:"due_date,omitempty"`
	CompletedDate string `json:"completed_date,omitempty"`
}

// TimelineEvent represents an activity log entry.
type TimelineEvent struct {
	ID          string `json:"id"`
	At          string `json:"at"`
	Type        string `json:"type"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Case represents the API case model (partial).
type Case struct {
	ID        string          `json:"id"`
	Folio     string          `json:"folio"`
	ClientID  string          `json:"client_id"`
	Service   string          `json:"service"`
	Status    string          `json:"status"`
	StartDate string          `json:"start_date"`
	Stages    []Stage         `json:"stages,omitempty"`
	Timeline  []TimelineEvent `json:"timeline,omitempty"`
}

// CaseSummary is the list item model with financials.
type CaseSummary struct {
	ID       string  `json:"id"`
	Folio    string  `json:"folio"`
	ClientID string  `json:"client_id"`
	Service  string  `json:"service"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Balance  float64 `json:"balance"`
}

// Alert represents a risk rule finding.
type Alert struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Priority  string `json:"priority"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	At        string `json:"at"`
	RelatedID string `json:"related_id,omitempty"`
}

// Health is the classification result for a case.
type Health struct {
	CaseID string `json:"case_id"`
	At     string `json:"at"`
	Health string `json:"health"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateCase opens a case for a client from a service template.
func (c *Client) CreateCase(ctx context.Context, clientID, templateID string) (Case, error) {
	body := map[string]any{
		"client_id":   clientID,
		"template_id": templateID,
	}
	var resp Case
	err := c.do(ctx, http.MethodPost, "v0/cases", body, &resp)
	return resp, err
}

// GetCase fetches a case with stages and timeline.
func (c *Client) GetCase(ctx context.Context, id string) (Case, error) {
	var resp Case
	err := c.do(ctx, http.MethodGet, "v0/cases/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListCases returns case summaries, optionally filtered by status.
func (c *Client) ListCases(ctx context.Context, status string) ([]CaseSummary, error) {
	endpoint := "v0/cases"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []CaseSummary
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// ToggleStage flips a stage between completed and in progress.
func (c *Client) ToggleStage(ctx context.Context, caseID, stageID string) (Case, error) {
	endpoint := fmt.Sprintf("v0/cases/%s/stages/%s/toggle", url.PathEscape(caseID), url.PathEscape(stageID))
	var resp Case
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// CloseCase closes an active case.
func (c *Client) CloseCase(ctx context.Context, caseID, note string, complianceRating int) (Case, error) {
	body := map[string]any{
		"note":              note,
		"compliance_rating": complianceRating,
	}
	var resp Case
	err := c.do(ctx, http.MethodPost, "v0/cases/"+url.PathEscape(caseID)+"/close", body, &resp)
	return resp, err
}

// AppendActivity adds an entry to the case timeline.
func (c *Client) AppendActivity(ctx context.Context, caseID, evtType, title, description string) (TimelineEvent, error) {
	body := map[string]any{
		"type":        evtType,
		"title":       title,
		"description": description,
	}
	var resp TimelineEvent
	err := c.do(ctx, http.MethodPost, "v0/cases/"+url.PathEscape(caseID)+"/timeline", body, &resp)
	return resp, err
}

// Alerts evaluates the risk rules across all cases.
func (c *Client) Alerts(ctx context.Context) ([]Alert, error) {
	var resp []Alert
	err := c.do(ctx, http.MethodGet, "v0/alerts", nil, &resp)
	return resp, err
}

// CaseHealth classifies a case.
func (c *Client) CaseHealth(ctx context.Context, caseID string) (Health, error) {
	var resp Health
	err := c.do(ctx, http.MethodGet, "v0/cases/"+url.PathEscape(caseID)+"/health", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
