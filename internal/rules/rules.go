// Package rules derives operational alerts and case health from the current
// entity snapshot. Everything here is pure: state and the time reference are
// explicit inputs, and nothing is ever mutated or persisted.
package rules

import (
	"fmt"
	"sort"
	"time"

	"lexline/internal/domain"
)

// Fixed thresholds of the rule set.
const (
	inactivityMaxDays  = 5
	stagnantMaxHours   = 24
	serviceLevelFloor  = 90
	atRiskMinProgress  = 0.2
	atRiskMinAgeDays   = 10
	hoursPerDay        = 24
)

// Evaluate runs every rule over the snapshot and returns the alerts sorted by
// timestamp descending. All alerts share the evaluation time, so the stable
// sort preserves rule-declaration order and results are reproducible.
func Evaluate(cases []domain.Case, clients []domain.Client, now time.Time) []domain.Alert {
	var alerts []domain.Alert
	alerts = append(alerts, inactivityAlerts(cases, now)...)
	alerts = append(alerts, stagnantUrgentAlerts(cases, now)...)
	alerts = append(alerts, deadlineAlerts(cases, now)...)
	alerts = append(alerts, serviceLevelAlerts(clients, now)...)
	sort.SliceStable(alerts, func(i, j int) bool { return alerts[i].At.After(alerts[j].At) })
	return alerts
}

// lastActivity is the most recent timeline entry's date, or the case start
// date when the timeline is empty.
func lastActivity(c domain.Case) time.Time {
	if len(c.Timeline) > 0 {
		return c.Timeline[0].At
	}
	return c.StartDate
}

func inactivityAlerts(cases []domain.Case, now time.Time) []domain.Alert {
	var alerts []domain.Alert
	for _, c := range cases {
		if c.Status != domain.CaseActive {
			continue
		}
		days := int(now.Sub(lastActivity(c)).Hours() / hoursPerDay)
		if days <= inactivityMaxDays {
			continue
		}
		alerts = append(alerts, domain.Alert{
			ID:        alertID(domain.AlertInactivity, c.ID),
			Type:      domain.AlertInactivity,
			Priority:  domain.PriorityMedium,
			Title:     "Expediente sin actividad",
			Message:   fmt.Sprintf("El expediente %s lleva %d días sin actividad", c.Folio, days),
			At:        now,
			RelatedID: c.ID,
		})
	}
	return alerts
}

func stagnantUrgentAlerts(cases []domain.Case, now time.Time) []domain.Alert {
	var alerts []domain.Alert
	for _, c := range cases {
		hours := now.Sub(lastActivity(c)).Hours()
		for _, s := range c.Stages {
			if s.Status != domain.StageInProgress || s.Priority != domain.PriorityHigh {
				continue
			}
			if hours <= stagnantMaxHours {
				continue
			}
			alerts = append(alerts, domain.Alert{
				ID:        alertID(domain.AlertStagnantUrgent, c.ID+":"+s.ID),
				Type:      domain.AlertStagnantUrgent,
				Priority:  domain.PriorityHigh,
				Title:     "Etapa urgente estancada",
				Message:   fmt.Sprintf("La etapa %q del expediente %s lleva %d horas sin avance", s.Title, c.Folio, int(hours)),
				At:        now,
				RelatedID: c.ID,
			})
		}
	}
	return alerts
}

func deadlineAlerts(cases []domain.Case, now time.Time) []domain.Alert {
	var alerts []domain.Alert
	for _, c := range cases {
		for _, s := range c.Stages {
			if s.Status != domain.StageInProgress {
				continue
			}
			if !Overdue(s, now) {
				continue
			}
			days := daysOverdue(*s.DueDate, now)
			alerts = append(alerts, domain.Alert{
				ID:        alertID(domain.AlertDeadline, c.ID+":"+s.ID),
				Type:      domain.AlertDeadline,
				Priority:  domain.PriorityHigh,
				Title:     "Fecha límite vencida",
				Message:   fmt.Sprintf("La etapa %q del expediente %s está vencida por %d días", s.Title, c.Folio, days),
				At:        now,
				RelatedID: c.ID,
			})
		}
	}
	return alerts
}

func serviceLevelAlerts(clients []domain.Client, now time.Time) []domain.Alert {
	var alerts []domain.Alert
	for _, cl := range clients {
		if cl.ServiceLevel >= serviceLevelFloor {
			continue
		}
		alerts = append(alerts, domain.Alert{
			ID:        alertID(domain.AlertServiceLevel, cl.ID),
			Type:      domain.AlertServiceLevel,
			Priority:  domain.PriorityHigh,
			Title:     "Nivel de servicio en riesgo",
			Message:   fmt.Sprintf("El cliente %s tiene un nivel de servicio de %d", cl.Name, cl.ServiceLevel),
			At:        now,
			RelatedID: cl.ID,
		})
	}
	return alerts
}

// Overdue reports whether the stage's due date falls strictly before today.
// The comparison is date-only: time of day is ignored.
func Overdue(s domain.Stage, now time.Time) bool {
	if s.DueDate == nil {
		return false
	}
	return dateOnly(*s.DueDate).Before(dateOnly(now))
}

// Classify reduces one case to a health tag. Any non-completed stage past
// its due date is critical; a case over ten days old with under a fifth of
// its stages completed is at risk; everything else, including a case with
// no stages at all, is healthy.
func Classify(c domain.Case, now time.Time) domain.HealthTag {
	for _, s := range c.Stages {
		if s.Status == domain.StageCompleted {
			continue
		}
		if Overdue(s, now) {
			return domain.HealthCritical
		}
	}
	if len(c.Stages) > 0 {
		ageDays := int(now.Sub(c.StartDate).Hours() / hoursPerDay)
		if c.Progress() < atRiskMinProgress && ageDays > atRiskMinAgeDays {
			return domain.HealthAtRisk
		}
	}
	return domain.HealthHealthy
}

func daysOverdue(due, now time.Time) int {
	return int(dateOnly(now).Sub(dateOnly(due)).Hours() / hoursPerDay)
}

func alertID(t domain.AlertType, related string) string {
	return fmt.Sprintf("%s:%s", t, related)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
