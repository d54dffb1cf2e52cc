package domain

import "time"

type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	// StageBlocked is accepted on stored stages but no operation sets it.
	StageBlocked StageStatus = "blocked"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

type CaseStatus string

const (
	CaseActive    CaseStatus = "active"
	CasePending   CaseStatus = "pending"
	CaseCompleted CaseStatus = "completed"
	CaseArchived  CaseStatus = "archived"
)

type EventType string

const (
	EventCreation     EventType = "creation"
	EventNote         EventType = "note"
	EventStatusChange EventType = "status_change"
	EventSLAWarning   EventType = "sla_warning"
	EventDelegation   EventType = "delegation"
	EventClosure      EventType = "closure"
	EventRoutine      EventType = "routine"
	EventDocument     EventType = "document"
)

// EventTypes is the closed set accepted on a case timeline.
var EventTypes = []EventType{
	EventCreation, EventNote, EventStatusChange, EventSLAWarning,
	EventDelegation, EventClosure, EventRoutine, EventDocument,
}

func ValidEventType(t EventType) bool {
	for _, v := range EventTypes {
		if v == t {
			return true
		}
	}
	return false
}

type Author string

const (
	AuthorSystem Author = "system"
	AuthorLawyer Author = "lawyer"
	AuthorClient Author = "client"
)

type HealthTag string

const (
	HealthCritical HealthTag = "critical"
	HealthAtRisk   HealthTag = "at_risk"
	HealthHealthy  HealthTag = "healthy"
)

type AlertType string

const (
	AlertInactivity     AlertType = "inactivity"
	AlertStagnantUrgent AlertType = "stagnant_urgent"
	AlertDeadline       AlertType = "deadline"
	AlertServiceLevel   AlertType = "service_level"
)

type Client struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	ExtraEmails   []string  `json:"extra_emails,omitempty"`
	ExtraPhones   []string  `json:"extra_phones,omitempty"`
	ServiceLevel  int       `json:"service_level"`
	AccessEnabled bool      `json:"access_enabled"`
	Tags          []string  `json:"tags,omitempty"`
	CreatedAt     time.Time `json:"created_at" format:"date-time"`
}

type StageTemplate struct {
	Title         string   `json:"title" yaml:"title"`
	Description   string   `json:"description,omitempty" yaml:"description"`
	Priority      Priority `json:"priority,omitempty" yaml:"priority" enum:"low,medium,high"`
	EstimatedDays int      `json:"estimated_days,omitempty" yaml:"estimated_days"`
}

type ServiceTemplate struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	BasePrice float64         `json:"base_price"`
	Stages    []StageTemplate `json:"stages,omitempty"`
	CreatedAt time.Time       `json:"created_at" format:"date-time"`
}

type Stage struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Status      StageStatus `json:"status" enum:"pending,in_progress,completed,blocked"`
	Priority    Priority    `json:"priority" enum:"low,medium,high"`
	DueDate     *time.Time  `json:"due_date,omitempty" format:"date-time"`
	// CompletedDate is set exactly when Status is StageCompleted.
	CompletedDate *time.Time `json:"completed_date,omitempty" format:"date-time"`
}

// EventMeta carries the structured metadata variant of a timeline event.
// Only the branch matching the event type may be populated.
type EventMeta struct {
	StatusChange *StatusChangeMeta `json:"status_change,omitempty"`
	Delegation   *DelegationMeta   `json:"delegation,omitempty"`
	SLA          *SLAMeta          `json:"sla,omitempty"`
	Closure      *ClosureMeta      `json:"closure,omitempty"`
	Routine      *RoutineMeta      `json:"routine,omitempty"`
}

type StatusChangeMeta struct {
	StageID        string      `json:"stage_id"`
	PreviousStatus StageStatus `json:"previous_status"`
	NewStatus      StageStatus `json:"new_status"`
}

type DelegationMeta struct {
	Delegate string `json:"delegate"`
}

type SLAMeta struct {
	ServiceLevel int `json:"service_level"`
}

type ClosureMeta struct {
	ComplianceRating int `json:"compliance_rating"`
}

type RoutineMeta struct {
	Activity string `json:"activity"`
}

type TimelineEvent struct {
	ID          string     `json:"id"`
	At          time.Time  `json:"at" format:"date-time"`
	Type        EventType  `json:"type" enum:"creation,note,status_change,sla_warning,delegation,closure,routine,document"`
	Author      Author     `json:"author" enum:"system,lawyer,client"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
	Meta        *EventMeta `json:"meta,omitempty"`
}

type Payment struct {
	ID     string    `json:"id"`
	At     time.Time `json:"at" format:"date-time"`
	Amount float64   `json:"amount"`
	Method string    `json:"method,omitempty"`
	Note   string    `json:"note,omitempty"`
}

type Case struct {
	ID        string     `json:"id"`
	Folio     string     `json:"folio"`
	ClientID  string     `json:"client_id"`
	Service   string     `json:"service"`
	Goal      string     `json:"goal,omitempty"`
	Status    CaseStatus `json:"status" enum:"active,pending,completed,archived"`
	StartDate time.Time  `json:"start_date" format:"date-time"`
	TotalCost float64    `json:"total_cost"`
	Assignee  *string    `json:"assignee,omitempty"`
	Stages    []Stage    `json:"stages,omitempty"`
	// Timeline is ordered newest first and is append-only.
	Timeline  []TimelineEvent `json:"timeline,omitempty"`
	Payments  []Payment       `json:"payments,omitempty"`
	CreatedAt time.Time       `json:"created_at" format:"date-time"`
}

// PaidTotal sums recorded payments.
func (c Case) PaidTotal() float64 {
	var total float64
	for _, p := range c.Payments {
		total += p.Amount
	}
	return total
}

// Progress returns the completed-stage ratio; a case with no stages counts as 0.
func (c Case) Progress() float64 {
	if len(c.Stages) == 0 {
		return 0
	}
	done := 0
	for _, s := range c.Stages {
		if s.Status == StageCompleted {
			done++
		}
	}
	return float64(done) / float64(len(c.Stages))
}

// Alert is derived on every rule evaluation and never persisted.
type Alert struct {
	ID        string    `json:"id"`
	Type      AlertType `json:"type" enum:"inactivity,stagnant_urgent,deadline,service_level"`
	Priority  Priority  `json:"priority" enum:"low,medium,high"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	At        time.Time `json:"at" format:"date-time"`
	RelatedID string    `json:"related_id,omitempty"`
}

// ValidateMeta checks that a populated metadata branch matches the event type.
func (e TimelineEvent) ValidateMeta() bool {
	if e.Meta == nil {
		return true
	}
	m := *e.Meta
	set := 0
	var matches bool
	if m.StatusChange != nil {
		set++
		matches = e.Type == EventStatusChange
	}
	if m.Delegation != nil {
		set++
		matches = e.Type == EventDelegation
	}
	if m.SLA != nil {
		set++
		matches = e.Type == EventSLAWarning
	}
	if m.Closure != nil {
		set++
		matches = e.Type == EventClosure
	}
	if m.Routine != nil {
		set++
		matches = e.Type == EventRoutine
	}
	if set == 0 {
		return true
	}
	return set == 1 && matches
}
