package server

import (
	"time"

	"lexline/internal/domain"
)

// Request payloads

type UpsertClientRequest struct {
	ID            *string  `json:"id,omitempty"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Phone         *string  `json:"phone,omitempty"`
	ExtraEmails   []string `json:"extra_emails,omitempty"`
	ExtraPhones   []string `json:"extra_phones,omitempty"`
	ServiceLevel  *int     `json:"service_level,omitempty" minimum:"0" maximum:"100"`
	AccessEnabled *bool    `json:"access_enabled,omitempty"`
	Tags          []string `json:"tags,omitempty"`
}

type SetAccessRequest struct {
	Enabled bool `json:"enabled"`
}

type UpsertTemplateRequest struct {
	ID        *string                `json:"id,omitempty"`
	Name      string                 `json:"name"`
	BasePrice float64                `json:"base_price"`
	Stages    []domain.StageTemplate `json:"stages,omitempty"`
}

type CreateCaseRequest struct {
	ClientID   string     `json:"client_id"`
	TemplateID string     `json:"template_id"`
	StartDate  *time.Time `json:"start_date,omitempty" format:"date-time"`
	Goal       *string    `json:"goal,omitempty"`
	Assignee   *string    `json:"assignee,omitempty"`
}

type AppendActivityRequest struct {
	Type        domain.EventType  `json:"type" enum:"creation,note,status_change,sla_warning,delegation,closure,routine,document"`
	Author      domain.Author     `json:"author,omitempty" enum:"system,lawyer,client"`
	Title       string            `json:"title"`
	Description *string           `json:"description,omitempty"`
	Attachments []string          `json:"attachments,omitempty"`
	Meta        *domain.EventMeta `json:"meta,omitempty"`
}

type CloseCaseRequest struct {
	Note             string `json:"note,omitempty"`
	ComplianceRating int    `json:"compliance_rating" minimum:"1" maximum:"5"`
}

type RecordPaymentRequest struct {
	Amount float64 `json:"amount"`
	Method *string `json:"method,omitempty"`
	Note   *string `json:"note,omitempty"`
}

// Response payloads

type CaseSummaryResponse struct {
	ID        string            `json:"id"`
	Folio     string            `json:"folio"`
	ClientID  string            `json:"client_id"`
	Service   string            `json:"service"`
	Status    domain.CaseStatus `json:"status" enum:"active,pending,completed,archived"`
	StartDate time.Time         `json:"start_date" format:"date-time"`
	Progress  float64           `json:"progress"`
	TotalCost float64           `json:"total_cost"`
	Paid      float64           `json:"paid"`
	Balance   float64           `json:"balance"`
	Assignee  *string           `json:"assignee,omitempty"`
}

type HealthResponse struct {
	CaseID string           `json:"case_id"`
	At     time.Time        `json:"at" format:"date-time"`
	Health domain.HealthTag `json:"health" enum:"critical,at_risk,healthy"`
}

type DraftResponse struct {
	Text     string               `json:"text"`
	Recorded bool                 `json:"recorded"`
	Event    *domain.TimelineEvent `json:"event,omitempty"`
}

func caseSummary(c domain.Case) CaseSummaryResponse {
	paid := c.PaidTotal()
	return CaseSummaryResponse{
		ID:        c.ID,
		Folio:     c.Folio,
		ClientID:  c.ClientID,
		Service:   c.Service,
		Status:    c.Status,
		StartDate: c.StartDate,
		Progress:  c.Progress(),
		TotalCost: c.TotalCost,
		Paid:      paid,
		Balance:   c.TotalCost - paid,
		Assignee:  c.Assignee,
	}
}

func mapCaseSummaries(cases []domain.Case) []CaseSummaryResponse {
	res := make([]CaseSummaryResponse, 0, len(cases))
	for _, c := range cases {
		res = append(res, caseSummary(c))
	}
	return res
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
