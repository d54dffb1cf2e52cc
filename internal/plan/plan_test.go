package plan_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lexline/internal/domain"
	"lexline/internal/plan"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func incorporationTemplate() domain.ServiceTemplate {
	return domain.ServiceTemplate{
		ID:   "tpl-inc",
		Name: "Constitución de Sociedad",
		Stages: []domain.StageTemplate{
			{Title: "Reunión inicial", Priority: domain.PriorityHigh, EstimatedDays: 2},
			{Title: "Autorización de denominación", EstimatedDays: 5},
			{Title: "Protocolización", EstimatedDays: 8},
			{Title: "Inscripción registral", EstimatedDays: 12},
			{Title: "Alta fiscal", EstimatedDays: 15},
		},
	}
}

func TestGenerateDueDatesFromEstimates(t *testing.T) {
	stages := plan.Generate(incorporationTemplate(), date(2025, 1, 1))
	require.Len(t, stages, 5)

	want := []time.Time{
		date(2025, 1, 3),
		date(2025, 1, 6),
		date(2025, 1, 9),
		date(2025, 1, 13),
		date(2025, 1, 16),
	}
	for i, s := range stages {
		require.NotNil(t, s.DueDate, "stage %d", i)
		require.Equal(t, want[i], *s.DueDate, "stage %d", i)
	}
}

func TestGenerateInitialStatuses(t *testing.T) {
	stages := plan.Generate(incorporationTemplate(), date(2025, 1, 1))
	require.Equal(t, domain.StageInProgress, stages[0].Status)
	for _, s := range stages[1:] {
		require.Equal(t, domain.StagePending, s.Status)
	}
}

func TestGeneratePriorityDefaultsToMedium(t *testing.T) {
	stages := plan.Generate(incorporationTemplate(), date(2025, 1, 1))
	require.Equal(t, domain.PriorityHigh, stages[0].Priority)
	for _, s := range stages[1:] {
		require.Equal(t, domain.PriorityMedium, s.Priority)
	}
}

func TestGenerateFallbackSpacing(t *testing.T) {
	tpl := domain.ServiceTemplate{
		ID: "tpl-plain",
		Stages: []domain.StageTemplate{
			{Title: "uno"},
			{Title: "dos", EstimatedDays: -4},
			{Title: "tres"},
		},
	}
	stages := plan.Generate(tpl, date(2025, 6, 1))
	// missing or non-positive estimates fall back to (i+1)*3 days
	require.Equal(t, date(2025, 6, 4), *stages[0].DueDate)
	require.Equal(t, date(2025, 6, 7), *stages[1].DueDate)
	require.Equal(t, date(2025, 6, 10), *stages[2].DueDate)
}

func TestGenerateIgnoresTimeOfDay(t *testing.T) {
	tpl := incorporationTemplate()
	morning := plan.Generate(tpl, time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC))
	evening := plan.Generate(tpl, time.Date(2025, 1, 1, 23, 59, 59, 0, time.UTC))
	require.Equal(t, morning, evening)
}

func TestGenerateDeterministic(t *testing.T) {
	tpl := incorporationTemplate()
	first := plan.Generate(tpl, date(2025, 1, 1))
	second := plan.Generate(tpl, date(2025, 1, 1))
	require.Equal(t, first, second)
	for i := range first {
		require.NotEmpty(t, first[i].ID)
	}
}

func TestGenerateEmptyTemplate(t *testing.T) {
	require.Empty(t, plan.Generate(domain.ServiceTemplate{ID: "tpl-empty"}, date(2025, 1, 1)))
}
