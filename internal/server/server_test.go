package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"lexline/internal/app"
	"lexline/internal/config"
	"lexline/internal/db"
	"lexline/internal/domain"
	"lexline/internal/engine"
	"lexline/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("Firma de Prueba")
	e := engine.New(conn, cfg)
	if err := app.SeedCatalog(context.Background(), e.Repo, cfg); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func seedClient(t *testing.T, srv *testServer) domain.Client {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPut, srv.URL+"/v0/clients", map[string]any{
		"name":  "Acme SA",
		"email": "legal@acme.test",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create client status %d: %s", res.StatusCode, string(data))
	}
	var cl domain.Client
	if err := json.Unmarshal(data, &cl); err != nil {
		t.Fatalf("unmarshal client: %v", err)
	}
	return cl
}

func seedCase(t *testing.T, srv *testServer, clientID string) domain.Case {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases", map[string]any{
		"client_id":   clientID,
		"template_id": app.TemplateID("Constitución de Sociedad"),
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create case status %d: %s", res.StatusCode, string(data))
	}
	var c domain.Case
	if err := json.Unmarshal(data, &c); err != nil {
		t.Fatalf("unmarshal case: %v", err)
	}
	return c
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	cl := seedClient(t, srv)
	c := seedCase(t, srv, cl.ID)
	if c.Status != domain.CaseActive {
		t.Fatalf("expected active case, got %s", c.Status)
	}
	if len(c.Stages) != 5 {
		t.Fatalf("expected 5 stages, got %d", len(c.Stages))
	}

	// toggle the first stage to completed
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+c.ID+"/stages/"+c.Stages[0].ID+"/toggle", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle status %d: %s", res.StatusCode, string(data))
	}
	var toggled domain.Case
	if err := json.Unmarshal(data, &toggled); err != nil {
		t.Fatalf("unmarshal toggled: %v", err)
	}
	if toggled.Stages[0].Status != domain.StageCompleted {
		t.Fatalf("expected completed first stage, got %s", toggled.Stages[0].Status)
	}
	if toggled.Stages[1].Status != domain.StagePending {
		t.Fatalf("second stage must stay pending, got %s", toggled.Stages[1].Status)
	}

	// close the case, which completes the remaining stages
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+c.ID+"/close", map[string]any{
		"note":              "Entrega final",
		"compliance_rating": 5,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("close status %d: %s", res.StatusCode, string(data))
	}
	var closed domain.Case
	if err := json.Unmarshal(data, &closed); err != nil {
		t.Fatalf("unmarshal closed: %v", err)
	}
	if closed.Status != domain.CaseCompleted {
		t.Fatalf("expected completed case, got %s", closed.Status)
	}
	for _, s := range closed.Stages {
		if s.Status != domain.StageCompleted {
			t.Fatalf("stage %s not completed on close", s.Title)
		}
	}

	// closing again is a conflict with the invalid_transition code
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+c.ID+"/close", map[string]any{
		"note":              "otra vez",
		"compliance_rating": 3,
	})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %q", envelope.Error.Code)
	}
}

func TestTimelineOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	cl := seedClient(t, srv)
	c := seedCase(t, srv, cl.ID)

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+c.ID+"/timeline", map[string]any{
		"type":   "note",
		"author": "lawyer",
		"title":  "Llamada con el cliente",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("append status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/"+c.ID+"/timeline", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("timeline status %d: %s", res.StatusCode, string(data))
	}
	var events []domain.TimelineEvent
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("unmarshal timeline: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected creation + note, got %d events", len(events))
	}
	if events[0].Title != "Llamada con el cliente" {
		t.Fatalf("newest event must come first, got %q", events[0].Title)
	}

	// an event type outside the closed set is rejected before any write
	res, data = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+c.ID+"/timeline", map[string]any{
		"type":  "party",
		"title": "nope",
	})
	if res.StatusCode != http.StatusBadRequest && res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected rejection, got %d: %s", res.StatusCode, string(data))
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/missing", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "not_found" {
		t.Fatalf("expected not_found, got %q", envelope.Error.Code)
	}
}

func TestAlertsAndHealthOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	cl := seedClient(t, srv)
	c := seedCase(t, srv, cl.ID)

	// far enough out that every stage is overdue
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/alerts?at=2030-01-01", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("alerts status %d: %s", res.StatusCode, string(data))
	}
	var alerts []domain.Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		t.Fatalf("unmarshal alerts: %v", err)
	}
	if len(alerts) == 0 {
		t.Fatalf("expected alerts for overdue case")
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/"+c.ID+"/health?at=2030-01-01", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	var health HealthResponse
	if err := json.Unmarshal(data, &health); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if health.Health != domain.HealthCritical {
		t.Fatalf("expected critical, got %s", health.Health)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/"+c.ID+"/health?at=bogus", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad at, got %d: %s", res.StatusCode, string(data))
	}
}

func TestPlanPreviewOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	tplID := app.TemplateID("Divorcio")
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/templates/"+tplID+"/plan?start_date=2025-01-01", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("preview status %d: %s", res.StatusCode, string(data))
	}
	var stages []domain.Stage
	if err := json.Unmarshal(data, &stages); err != nil {
		t.Fatalf("unmarshal stages: %v", err)
	}
	if len(stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(stages))
	}
	if stages[0].Status != domain.StageInProgress {
		t.Fatalf("first stage must be in_progress, got %s", stages[0].Status)
	}
}

func TestClientAccessOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	cl := seedClient(t, srv)
	if !cl.AccessEnabled {
		t.Fatalf("new clients default to portal access")
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/clients/"+cl.ID+"/access", map[string]any{
		"enabled": false,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("access status %d: %s", res.StatusCode, string(data))
	}
	var updated domain.Client
	if err := json.Unmarshal(data, &updated); err != nil {
		t.Fatalf("unmarshal client: %v", err)
	}
	if updated.AccessEnabled {
		t.Fatalf("expected access disabled")
	}
}
