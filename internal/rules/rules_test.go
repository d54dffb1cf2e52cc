package rules_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lexline/internal/domain"
	"lexline/internal/rules"
)

var now = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

func tp(t time.Time) *time.Time { return &t }

func activeCase(id string) domain.Case {
	return domain.Case{
		ID:        id,
		Folio:     "EXP-2025-0001",
		Status:    domain.CaseActive,
		StartDate: now.Add(-48 * time.Hour),
	}
}

func withActivity(c domain.Case, at time.Time) domain.Case {
	c.Timeline = []domain.TimelineEvent{{ID: "ev-1", At: at, Type: domain.EventNote, Title: "nota"}}
	return c
}

func alertsOfType(alerts []domain.Alert, t domain.AlertType) []domain.Alert {
	var out []domain.Alert
	for _, a := range alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

func TestInactivityRule(t *testing.T) {
	quiet := withActivity(activeCase("c1"), now.Add(-6*24*time.Hour))
	quiet.StartDate = now.Add(-30 * 24 * time.Hour)

	alerts := rules.Evaluate([]domain.Case{quiet}, nil, now)
	got := alertsOfType(alerts, domain.AlertInactivity)
	require.Len(t, got, 1)
	require.Equal(t, domain.PriorityMedium, got[0].Priority)
	require.Equal(t, "c1", got[0].RelatedID)

	// exactly at the threshold is still fine
	borderline := withActivity(activeCase("c2"), now.Add(-5*24*time.Hour))
	require.Empty(t, alertsOfType(rules.Evaluate([]domain.Case{borderline}, nil, now), domain.AlertInactivity))

	// closed cases are never flagged for inactivity
	closed := withActivity(activeCase("c3"), now.Add(-20*24*time.Hour))
	closed.Status = domain.CaseCompleted
	require.Empty(t, alertsOfType(rules.Evaluate([]domain.Case{closed}, nil, now), domain.AlertInactivity))
}

func TestInactivityFallsBackToStartDate(t *testing.T) {
	c := activeCase("c1")
	c.StartDate = now.Add(-8 * 24 * time.Hour)
	c.Timeline = nil
	got := alertsOfType(rules.Evaluate([]domain.Case{c}, nil, now), domain.AlertInactivity)
	require.Len(t, got, 1)
}

func TestStagnantUrgentRule(t *testing.T) {
	c := withActivity(activeCase("c1"), now.Add(-40*time.Hour))
	c.Stages = []domain.Stage{
		{ID: "s1", Title: "urgente", Status: domain.StageInProgress, Priority: domain.PriorityHigh},
		{ID: "s2", Title: "normal", Status: domain.StageInProgress, Priority: domain.PriorityMedium},
		{ID: "s3", Title: "urgente pendiente", Status: domain.StagePending, Priority: domain.PriorityHigh},
	}
	got := alertsOfType(rules.Evaluate([]domain.Case{c}, nil, now), domain.AlertStagnantUrgent)
	require.Len(t, got, 1)
	require.Equal(t, domain.PriorityHigh, got[0].Priority)

	// fresh activity clears the rule
	fresh := c
	fresh = withActivity(fresh, now.Add(-2*time.Hour))
	require.Empty(t, alertsOfType(rules.Evaluate([]domain.Case{fresh}, nil, now), domain.AlertStagnantUrgent))
}

func TestDeadlineRule(t *testing.T) {
	c := withActivity(activeCase("c1"), now.Add(-time.Hour))
	c.Stages = []domain.Stage{
		{ID: "s1", Title: "vencida", Status: domain.StageInProgress, Priority: domain.PriorityMedium, DueDate: tp(now.Add(-72 * time.Hour))},
		{ID: "s2", Title: "hoy", Status: domain.StageInProgress, Priority: domain.PriorityMedium, DueDate: tp(now)},
		{ID: "s3", Title: "completada", Status: domain.StageCompleted, Priority: domain.PriorityMedium, DueDate: tp(now.Add(-72 * time.Hour))},
		{ID: "s4", Title: "sin fecha", Status: domain.StageInProgress, Priority: domain.PriorityMedium},
	}
	got := alertsOfType(rules.Evaluate([]domain.Case{c}, nil, now), domain.AlertDeadline)
	require.Len(t, got, 1)
	require.Equal(t, domain.PriorityHigh, got[0].Priority)
	require.Contains(t, got[0].Message, "vencida")
}

func TestDeadlineIsDateOnly(t *testing.T) {
	// due earlier today is not overdue, regardless of clock time
	s := domain.Stage{Status: domain.StageInProgress, DueDate: tp(time.Date(2025, 3, 20, 1, 0, 0, 0, time.UTC))}
	require.False(t, rules.Overdue(s, now))
	// due yesterday is overdue even one second after midnight
	early := time.Date(2025, 3, 20, 0, 0, 1, 0, time.UTC)
	s.DueDate = tp(time.Date(2025, 3, 19, 23, 59, 59, 0, time.UTC))
	require.True(t, rules.Overdue(s, early))
}

func TestServiceLevelRule(t *testing.T) {
	clients := []domain.Client{
		{ID: "cl1", Name: "Contento", ServiceLevel: 95},
		{ID: "cl2", Name: "Al límite", ServiceLevel: 90},
		{ID: "cl3", Name: "Molesto", ServiceLevel: 85},
	}
	got := alertsOfType(rules.Evaluate(nil, clients, now), domain.AlertServiceLevel)
	require.Len(t, got, 1)
	require.Equal(t, "cl3", got[0].RelatedID)
	require.Equal(t, domain.PriorityHigh, got[0].Priority)
}

func TestEvaluateCollectsAllRules(t *testing.T) {
	c := withActivity(activeCase("c1"), now.Add(-40*time.Hour))
	c.Stages = []domain.Stage{
		{ID: "s1", Title: "urgente y vencida", Status: domain.StageInProgress, Priority: domain.PriorityHigh, DueDate: tp(now.Add(-72 * time.Hour))},
	}
	alerts := rules.Evaluate([]domain.Case{c}, nil, now)
	// one stage trips both the stagnant and the deadline rule
	require.Len(t, alertsOfType(alerts, domain.AlertStagnantUrgent), 1)
	require.Len(t, alertsOfType(alerts, domain.AlertDeadline), 1)
	for _, a := range alerts {
		require.Equal(t, now, a.At)
		require.NotEmpty(t, a.ID)
	}
}

func TestEvaluateDeterministicOrder(t *testing.T) {
	c := withActivity(activeCase("c1"), now.Add(-40*time.Hour))
	c.Stages = []domain.Stage{
		{ID: "s1", Title: "etapa", Status: domain.StageInProgress, Priority: domain.PriorityHigh, DueDate: tp(now.Add(-72 * time.Hour))},
	}
	first := rules.Evaluate([]domain.Case{c}, nil, now)
	second := rules.Evaluate([]domain.Case{c}, nil, now)
	require.Equal(t, first, second)
	// equal timestamps keep rule declaration order
	require.Equal(t, domain.AlertStagnantUrgent, first[0].Type)
	require.Equal(t, domain.AlertDeadline, first[1].Type)
}

func TestClassifyCritical(t *testing.T) {
	c := activeCase("c1")
	c.Stages = []domain.Stage{
		{ID: "s1", Status: domain.StagePending, DueDate: tp(now.Add(-48 * time.Hour))},
	}
	require.Equal(t, domain.HealthCritical, rules.Classify(c, now))

	// a completed stage past its due date is not critical
	c.Stages[0].Status = domain.StageCompleted
	require.Equal(t, domain.HealthHealthy, rules.Classify(c, now))
}

func TestClassifyAtRisk(t *testing.T) {
	c := activeCase("c1")
	c.StartDate = now.Add(-12 * 24 * time.Hour)
	future := tp(now.Add(240 * time.Hour))
	c.Stages = []domain.Stage{
		{ID: "s1", Status: domain.StageCompleted, DueDate: future},
		{ID: "s2", Status: domain.StageInProgress, DueDate: future},
		{ID: "s3", Status: domain.StagePending, DueDate: future},
		{ID: "s4", Status: domain.StagePending, DueDate: future},
		{ID: "s5", Status: domain.StagePending, DueDate: future},
		{ID: "s6", Status: domain.StagePending, DueDate: future},
	}
	// 1 of 6 completed at 12 days old
	require.Equal(t, domain.HealthAtRisk, rules.Classify(c, now))

	// same ratio on a young case is fine
	c.StartDate = now.Add(-5 * 24 * time.Hour)
	require.Equal(t, domain.HealthHealthy, rules.Classify(c, now))
}

func TestClassifyHealthyWithoutStages(t *testing.T) {
	c := activeCase("c1")
	c.StartDate = now.Add(-60 * 24 * time.Hour)
	require.Equal(t, domain.HealthHealthy, rules.Classify(c, now))
}

func TestClassifyIdempotent(t *testing.T) {
	c := activeCase("c1")
	c.Stages = []domain.Stage{
		{ID: "s1", Status: domain.StagePending, DueDate: tp(now.Add(-48 * time.Hour))},
	}
	require.Equal(t, rules.Classify(c, now), rules.Classify(c, now))
}
