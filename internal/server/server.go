package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"lexline/internal/domain"
	"lexline/internal/draft"
	"lexline/internal/engine"
	"lexline/internal/plan"
	"lexline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Drafter  *draft.Client
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"case not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Lexline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	hcfg := huma.DefaultConfig("Lexline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealthCheck(group)
	registerClients(group, cfg.Engine)
	registerTemplates(group, cfg.Engine)
	registerPlanPreview(group, cfg.Engine)
	registerCases(group, cfg.Engine)
	registerStages(group, cfg.Engine)
	registerTimeline(group, cfg.Engine)
	registerPayments(group, cfg.Engine)
	registerCaseHealth(group, cfg.Engine)
	registerAlerts(group, cfg.Engine)
	registerDrafts(group, cfg.Engine, cfg.Drafter)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrInvalidTransition) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrMalformedInput) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// parseAt accepts RFC3339 timestamps or plain dates; empty means now.
func parseAt(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid at value %q", raw)
}

func engineNow(e engine.Engine) time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Lexline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}

func registerHealthCheck(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "upsert-client",
		Method:        http.MethodPut,
		Path:          "/clients",
		Summary:       "Create or update client",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body UpsertClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if input.Body.Email == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "email is required", nil)
		}
		cl := domain.Client{
			Name:          input.Body.Name,
			Email:         input.Body.Email,
			Phone:         stringOrEmpty(input.Body.Phone),
			ExtraEmails:   input.Body.ExtraEmails,
			ExtraPhones:   input.Body.ExtraPhones,
			ServiceLevel:  100,
			AccessEnabled: true,
			Tags:          input.Body.Tags,
			CreatedAt:     engineNow(e),
		}
		if input.Body.ID != nil && *input.Body.ID != "" {
			cl.ID = *input.Body.ID
			if existing, err := e.Repo.GetClient(ctx, cl.ID); err == nil {
				cl.ServiceLevel = existing.ServiceLevel
				cl.AccessEnabled = existing.AccessEnabled
				cl.CreatedAt = existing.CreatedAt
			}
		} else {
			cl.ID = uuid.New().String()
		}
		if input.Body.ServiceLevel != nil {
			cl.ServiceLevel = *input.Body.ServiceLevel
		}
		if input.Body.AccessEnabled != nil {
			cl.AccessEnabled = *input.Body.AccessEnabled
		}
		if err := e.Repo.UpsertClient(ctx, cl); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: cl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Client `json:"body"`
	}, error) {
		items, err := e.Repo.ListClients(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Client `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{client_id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ClientID string `path:"client_id"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		cl, err := e.Repo.GetClient(ctx, input.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: cl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-client-access",
		Method:      http.MethodPost,
		Path:        "/clients/{client_id}/access",
		Summary:     "Toggle client portal access",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ClientID string           `path:"client_id"`
		Body     SetAccessRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		cl, err := e.SetClientAccess(ctx, input.ClientID, input.Body.Enabled)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: cl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-client",
		Method:      http.MethodDelete,
		Path:        "/clients/{client_id}",
		Summary:     "Delete client",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ClientID string `path:"client_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteClient(ctx, input.ClientID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTemplates(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "upsert-template",
		Method:        http.MethodPut,
		Path:          "/templates",
		Summary:       "Create or update service template",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body UpsertTemplateRequest `json:"body"`
	}) (*struct {
		Body domain.ServiceTemplate `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		tpl := domain.ServiceTemplate{
			Name:      input.Body.Name,
			BasePrice: input.Body.BasePrice,
			Stages:    input.Body.Stages,
			CreatedAt: engineNow(e),
		}
		if input.Body.ID != nil && *input.Body.ID != "" {
			tpl.ID = *input.Body.ID
			if existing, err := e.Repo.GetServiceTemplate(ctx, tpl.ID); err == nil {
				tpl.CreatedAt = existing.CreatedAt
			}
		} else {
			tpl.ID = uuid.New().String()
		}
		if err := e.Repo.UpsertServiceTemplate(ctx, tpl); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ServiceTemplate `json:"body"`
		}{Body: tpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List service templates",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.ServiceTemplate `json:"body"`
	}, error) {
		items, err := e.Repo.ListServiceTemplates(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ServiceTemplate `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/templates/{template_id}",
		Summary:     "Get service template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*struct {
		Body domain.ServiceTemplate `json:"body"`
	}, error) {
		tpl, err := e.Repo.GetServiceTemplate(ctx, input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ServiceTemplate `json:"body"`
		}{Body: tpl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-template",
		Method:      http.MethodDelete,
		Path:        "/templates/{template_id}",
		Summary:     "Delete service template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteServiceTemplate(ctx, input.TemplateID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerPlanPreview(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "plan-preview",
		Method:      http.MethodGet,
		Path:        "/templates/{template_id}/plan",
		Summary:     "Preview the stage plan a template would produce",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TemplateID string `path:"template_id"`
		StartDate  string `query:"start_date"`
	}) (*struct {
		Body []domain.Stage `json:"body"`
	}, error) {
		tpl, err := e.Repo.GetServiceTemplate(ctx, input.TemplateID)
		if err != nil {
			return nil, handleError(err)
		}
		start, err := parseAt(input.StartDate, engineNow(e))
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		return &struct {
			Body []domain.Stage `json:"body"`
		}{Body: plan.Generate(tpl, start)}, nil
	})
}

func registerCases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-case",
		Method:        http.MethodPost,
		Path:          "/cases",
		Summary:       "Open a case from a service template",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateCaseRequest `json:"body"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		opts := engine.CaseCreateOptions{
			ClientID:   input.Body.ClientID,
			TemplateID: input.Body.TemplateID,
		}
		if input.Body.StartDate != nil {
			opts.StartDate = *input.Body.StartDate
		}
		if input.Body.Goal != nil {
			opts.Goal = *input.Body.Goal
		}
		if input.Body.Assignee != nil {
			opts.Assignee = *input.Body.Assignee
		}
		c, err := e.CreateCase(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/cases",
		Summary:     "List cases",
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		ClientID string `query:"client_id"`
	}) (*struct {
		Body []CaseSummaryResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListCases(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		filtered := items[:0]
		for _, c := range items {
			if input.Status != "" && string(c.Status) != input.Status {
				continue
			}
			if input.ClientID != "" && c.ClientID != input.ClientID {
				continue
			}
			filtered = append(filtered, c)
		}
		return &struct {
			Body []CaseSummaryResponse `json:"body"`
		}{Body: mapCaseSummaries(filtered)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}",
		Summary:     "Get case with stages, timeline and payments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		c, err := e.Repo.GetCase(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-case",
		Method:      http.MethodDelete,
		Path:        "/cases/{case_id}",
		Summary:     "Delete case",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct{}, error) {
		if err := e.Repo.DeleteCase(ctx, input.CaseID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-case",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/close",
		Summary:     "Close an active case",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CaseID string           `path:"case_id"`
		Body   CloseCaseRequest `json:"body"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		c, err := e.CloseCase(ctx, input.CaseID, input.Body.Note, input.Body.ComplianceRating)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})
}

func registerStages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "toggle-stage",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/stages/{stage_id}/toggle",
		Summary:     "Toggle a stage between completed and in progress",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		CaseID  string `path:"case_id"`
		StageID string `path:"stage_id"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		c, err := e.ToggleStage(ctx, input.CaseID, input.StageID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})
}

func registerTimeline(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-timeline",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/timeline",
		Summary:     "Case timeline, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body []domain.TimelineEvent `json:"body"`
	}, error) {
		c, err := e.Repo.GetCase(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.TimelineEvent `json:"body"`
		}{Body: c.Timeline}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "append-activity",
		Method:        http.MethodPost,
		Path:          "/cases/{case_id}/timeline",
		Summary:       "Append an activity to the case timeline",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CaseID string                `path:"case_id"`
		Body   AppendActivityRequest `json:"body"`
	}) (*struct {
		Body domain.TimelineEvent `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		ev := domain.TimelineEvent{
			Type:        input.Body.Type,
			Author:      input.Body.Author,
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			Attachments: input.Body.Attachments,
			Meta:        input.Body.Meta,
		}
		res, err := e.AppendActivity(ctx, input.CaseID, ev)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.TimelineEvent `json:"body"`
		}{Body: res}, nil
	})
}

func registerPayments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "record-payment",
		Method:        http.MethodPost,
		Path:          "/cases/{case_id}/payments",
		Summary:       "Record a payment against a case",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CaseID string               `path:"case_id"`
		Body   RecordPaymentRequest `json:"body"`
	}) (*struct {
		Body domain.Payment `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		p := domain.Payment{
			Amount: input.Body.Amount,
			Method: stringOrEmpty(input.Body.Method),
			Note:   stringOrEmpty(input.Body.Note),
		}
		res, err := e.RecordPayment(ctx, input.CaseID, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Payment `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "case-balance",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/balance",
		Summary:     "Financial summary for a case",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body CaseSummaryResponse `json:"body"`
	}, error) {
		c, err := e.Repo.GetCase(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CaseSummaryResponse `json:"body"`
		}{Body: caseSummary(c)}, nil
	})
}

func registerCaseHealth(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "case-health",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/health",
		Summary:     "Classify case health",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		At     string `query:"at"`
	}) (*struct {
		Body HealthResponse `json:"body"`
	}, error) {
		at, err := parseAt(input.At, engineNow(e))
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		tag, err := e.CaseHealth(ctx, input.CaseID, at)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HealthResponse `json:"body"`
		}{Body: HealthResponse{CaseID: input.CaseID, At: at, Health: tag}}, nil
	})
}

func registerAlerts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-alerts",
		Method:      http.MethodGet,
		Path:        "/alerts",
		Summary:     "Evaluate risk rules across all cases",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		At string `query:"at"`
	}) (*struct {
		Body []domain.Alert `json:"body"`
	}, error) {
		at, err := parseAt(input.At, engineNow(e))
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		alerts, err := e.Alerts(ctx, at)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Alert `json:"body"`
		}{Body: alerts}, nil
	})
}

func registerDrafts(api huma.API, e engine.Engine, drafter *draft.Client) {
	huma.Register(api, huma.Operation{
		OperationID: "draft-update",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/draft-update",
		Summary:     "Draft a client-facing status update",
		Errors: []int{
			http.StatusNotFound,
			http.StatusServiceUnavailable,
		},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Record bool   `query:"record" default:"true"`
	}) (*struct {
		Body DraftResponse `json:"body"`
	}, error) {
		if !drafter.Enabled() {
			return nil, newAPIError(http.StatusServiceUnavailable, "drafting_disabled", "drafting is not configured", nil)
		}
		c, err := e.Repo.GetCase(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		cl, err := e.Repo.GetClient(ctx, c.ClientID)
		if err != nil {
			return nil, handleError(err)
		}
		text, err := drafter.CaseUpdate(ctx, c, cl)
		if err != nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "drafting_failed", err.Error(), nil)
		}
		resp := DraftResponse{Text: text}
		if input.Record {
			ev, err := e.AppendActivity(ctx, c.ID, domain.TimelineEvent{
				Type:        domain.EventNote,
				Author:      domain.AuthorSystem,
				Title:       "Actualización para el cliente",
				Description: text,
			})
			if err != nil {
				return nil, handleError(err)
			}
			resp.Recorded = true
			resp.Event = &ev
		}
		return &struct {
			Body DraftResponse `json:"body"`
		}{Body: resp}, nil
	})
}
