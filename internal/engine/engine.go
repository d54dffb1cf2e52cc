package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lexline/internal/config"
	"lexline/internal/domain"
	"lexline/internal/plan"
	"lexline/internal/repo"
	"lexline/internal/rules"
	"lexline/internal/timeline"
)

// ErrInvalidTransition is returned when an operation is not legal from the
// entity's current status. No mutation is applied.
var ErrInvalidTransition = errors.New("invalid transition")

// ErrMalformedInput is returned when input is rejected before any store write.
var ErrMalformedInput = errors.New("malformed input")

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Timeline timeline.Writer
	Config   *config.Config
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Timeline: timeline.Writer{Now: time.Now},
		Config:   cfg,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// CaseCreateOptions are parameters for opening a case.
type CaseCreateOptions struct {
	ClientID   string
	TemplateID string
	StartDate  time.Time
	Goal       string
	Assignee   string
}

// CreateCase composes plan generation with store insertion and records the
// initial creation event, all in one transaction.
func (e Engine) CreateCase(ctx context.Context, opts CaseCreateOptions) (domain.Case, error) {
	if opts.ClientID == "" {
		return domain.Case{}, fmt.Errorf("%w: client is required", ErrMalformedInput)
	}
	if opts.TemplateID == "" {
		return domain.Case{}, fmt.Errorf("%w: template is required", ErrMalformedInput)
	}
	client, err := e.Repo.GetClient(ctx, opts.ClientID)
	if err != nil {
		return domain.Case{}, fmt.Errorf("client %s: %w", opts.ClientID, err)
	}
	tpl, err := e.Repo.GetServiceTemplate(ctx, opts.TemplateID)
	if err != nil {
		return domain.Case{}, fmt.Errorf("template %s: %w", opts.TemplateID, err)
	}
	now := e.now().UTC()
	start := opts.StartDate
	if start.IsZero() {
		start = now
	}
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(opts.ClientID+"|"+opts.TemplateID+"|"+now.Format(time.RFC3339Nano))).String()

	stages := plan.Generate(tpl, start)
	for i := range stages {
		// Stage ids from the generator are template-scoped; rescope them to
		// this case so two cases from one template cannot collide.
		stages[i].ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id+"|stage|"+fmt.Sprint(i))).String()
	}

	seq, err := e.Repo.CountCases(ctx)
	if err != nil {
		return domain.Case{}, err
	}
	c := domain.Case{
		ID:        id,
		Folio:     e.folio(seq+1, now),
		ClientID:  client.ID,
		Service:   tpl.Name,
		Goal:      opts.Goal,
		Status:    domain.CaseActive,
		StartDate: start.UTC(),
		TotalCost: tpl.BasePrice,
		Stages:    stages,
		CreatedAt: now,
	}
	if opts.Assignee != "" {
		c.Assignee = &opts.Assignee
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCaseTx(ctx, tx, c); err != nil {
		return domain.Case{}, fmt.Errorf("insert case: %w", err)
	}
	ev, err := e.Timeline.Append(ctx, tx, c.ID, domain.TimelineEvent{
		At:          now,
		Type:        domain.EventCreation,
		Author:      domain.AuthorSystem,
		Title:       "Expediente creado",
		Description: fmt.Sprintf("Servicio %s para %s", tpl.Name, client.Name),
	})
	if err != nil {
		return domain.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, err
	}
	c.Timeline = []domain.TimelineEvent{ev}
	return c, nil
}

func (e Engine) folio(seq int, now time.Time) string {
	prefix := "EXP"
	if e.Config != nil && e.Config.Firm.FolioPrefix != "" {
		prefix = e.Config.Firm.FolioPrefix
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, now.Year(), seq)
}

// ToggleStage flips a stage between completed and in_progress. Toggling off
// a completed stage returns it to in_progress, never to pending: completed
// work is assumed resumed, not un-started. The stage update and its
// status-change event are applied in one transaction.
func (e Engine) ToggleStage(ctx context.Context, caseID, stageID string) (domain.Case, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCaseTx(ctx, tx, caseID)
	if err != nil {
		return domain.Case{}, fmt.Errorf("case %s: %w", caseID, err)
	}
	idx := -1
	for i, s := range c.Stages {
		if s.ID == stageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.Case{}, fmt.Errorf("stage %s: %w", stageID, repo.ErrNotFound)
	}
	stage := c.Stages[idx]
	prev := stage.Status
	now := e.now().UTC()
	if stage.Status == domain.StageCompleted {
		stage.Status = domain.StageInProgress
		stage.CompletedDate = nil
	} else {
		stage.Status = domain.StageCompleted
		stage.CompletedDate = &now
	}
	if err := e.Repo.UpdateStageTx(ctx, tx, stage); err != nil {
		return domain.Case{}, fmt.Errorf("update stage: %w", err)
	}
	if _, err := e.Timeline.Append(ctx, tx, c.ID, domain.TimelineEvent{
		At:          now,
		Type:        domain.EventStatusChange,
		Author:      domain.AuthorSystem,
		Title:       "Cambio de estado de etapa",
		Description: fmt.Sprintf("%s: %s → %s", stage.Title, prev, stage.Status),
		Meta: &domain.EventMeta{StatusChange: &domain.StatusChangeMeta{
			StageID:        stage.ID,
			PreviousStatus: prev,
			NewStatus:      stage.Status,
		}},
	}); err != nil {
		return domain.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, err
	}
	return e.Repo.GetCase(ctx, caseID)
}

// AppendActivity validates the event against the closed tag set and inserts
// it at the head of the case timeline. It never changes stage or case status.
func (e Engine) AppendActivity(ctx context.Context, caseID string, ev domain.TimelineEvent) (domain.TimelineEvent, error) {
	if !domain.ValidEventType(ev.Type) {
		return ev, fmt.Errorf("%w: event type %q outside closed set", ErrMalformedInput, ev.Type)
	}
	if !ev.ValidateMeta() {
		return ev, fmt.Errorf("%w: metadata does not match event type %q", ErrMalformedInput, ev.Type)
	}
	if ev.Title == "" {
		return ev, fmt.Errorf("%w: title is required", ErrMalformedInput)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ev, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetCaseTx(ctx, tx, caseID); err != nil {
		return ev, fmt.Errorf("case %s: %w", caseID, err)
	}
	if ev.At.IsZero() {
		ev.At = e.now().UTC()
	}
	out, err := e.Timeline.Append(ctx, tx, caseID, ev)
	if err != nil {
		return ev, err
	}
	if err := tx.Commit(); err != nil {
		return ev, err
	}
	return out, nil
}

// CloseCase completes every stage, marks the case completed and records the
// closure with its compliance rating. Only legal from an active case, and
// irreversible: nothing reopens a completed case.
func (e Engine) CloseCase(ctx context.Context, caseID, closureNote string, complianceRating int) (domain.Case, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCaseTx(ctx, tx, caseID)
	if err != nil {
		return domain.Case{}, fmt.Errorf("case %s: %w", caseID, err)
	}
	if c.Status != domain.CaseActive {
		return domain.Case{}, fmt.Errorf("%w: cannot close case in status %s", ErrInvalidTransition, c.Status)
	}
	now := e.now().UTC()
	for _, s := range c.Stages {
		if s.Status == domain.StageCompleted {
			continue
		}
		s.Status = domain.StageCompleted
		if s.CompletedDate == nil {
			completed := now
			s.CompletedDate = &completed
		}
		if err := e.Repo.UpdateStageTx(ctx, tx, s); err != nil {
			return domain.Case{}, fmt.Errorf("complete stage %s: %w", s.ID, err)
		}
	}
	if err := e.Repo.UpdateCaseStatusTx(ctx, tx, c.ID, domain.CaseCompleted); err != nil {
		return domain.Case{}, err
	}
	if _, err := e.Timeline.Append(ctx, tx, c.ID, domain.TimelineEvent{
		At:          now,
		Type:        domain.EventClosure,
		Author:      domain.AuthorSystem,
		Title:       "Expediente cerrado",
		Description: closureNote,
		Meta:        &domain.EventMeta{Closure: &domain.ClosureMeta{ComplianceRating: complianceRating}},
	}); err != nil {
		return domain.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, err
	}
	return e.Repo.GetCase(ctx, caseID)
}

// RecordPayment appends a payment against a case.
func (e Engine) RecordPayment(ctx context.Context, caseID string, p domain.Payment) (domain.Payment, error) {
	if p.Amount <= 0 {
		return p, fmt.Errorf("%w: amount must be positive", ErrMalformedInput)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetCaseTx(ctx, tx, caseID); err != nil {
		return p, fmt.Errorf("case %s: %w", caseID, err)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.At.IsZero() {
		p.At = e.now().UTC()
	}
	if err := e.Repo.InsertPaymentTx(ctx, tx, caseID, p); err != nil {
		return p, fmt.Errorf("insert payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

// SetClientAccess toggles a client's portal access flag.
func (e Engine) SetClientAccess(ctx context.Context, clientID string, enabled bool) (domain.Client, error) {
	cl, err := e.Repo.GetClient(ctx, clientID)
	if err != nil {
		return cl, fmt.Errorf("client %s: %w", clientID, err)
	}
	cl.AccessEnabled = enabled
	if err := e.Repo.UpsertClient(ctx, cl); err != nil {
		return cl, err
	}
	return cl, nil
}

// Alerts evaluates the rule set over the current snapshot. now is explicit
// so evaluations are reproducible.
func (e Engine) Alerts(ctx context.Context, now time.Time) ([]domain.Alert, error) {
	cases, err := e.Repo.ListCases(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := e.Repo.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	return rules.Evaluate(cases, clients, now), nil
}

// CaseHealth classifies one case's schedule risk at the given instant.
func (e Engine) CaseHealth(ctx context.Context, caseID string, now time.Time) (domain.HealthTag, error) {
	c, err := e.Repo.GetCase(ctx, caseID)
	if err != nil {
		return "", fmt.Errorf("case %s: %w", caseID, err)
	}
	return rules.Classify(c, now), nil
}
