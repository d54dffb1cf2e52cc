// Package plan turns a service template into a dated stage plan.
package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"lexline/internal/domain"
)

// fallbackDaysPerStage spaces stages that carry no usable estimate so a
// later stage never falls due before an earlier one.
const fallbackDaysPerStage = 3

// Generate produces the stage plan for a template starting on startDate.
// It is a pure function of its inputs: stage IDs are derived from the
// template identity and position, so regenerating with the same template
// and date yields an identical plan. An empty template yields an empty plan.
func Generate(tpl domain.ServiceTemplate, startDate time.Time) []domain.Stage {
	if len(tpl.Stages) == 0 {
		return nil
	}
	start := dateOnly(startDate)
	stages := make([]domain.Stage, 0, len(tpl.Stages))
	for i, st := range tpl.Stages {
		days := st.EstimatedDays
		if days <= 0 {
			days = (i + 1) * fallbackDaysPerStage
		}
		due := start.AddDate(0, 0, days)
		status := domain.StagePending
		if i == 0 {
			status = domain.StageInProgress
		}
		priority := st.Priority
		if priority == "" {
			priority = domain.PriorityMedium
		}
		stages = append(stages, domain.Stage{
			ID:          stageID(tpl.ID, i),
			Title:       st.Title,
			Description: st.Description,
			Status:      status,
			Priority:    priority,
			DueDate:     &due,
		})
	}
	return stages
}

func stageID(templateID string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("stage|%s|%d", templateID, position))).String()
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
