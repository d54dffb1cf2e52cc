package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lexline/internal/domain"
)

func TestProgress(t *testing.T) {
	c := domain.Case{Stages: []domain.Stage{
		{Status: domain.StageCompleted},
		{Status: domain.StageInProgress},
		{Status: domain.StagePending},
		{Status: domain.StageCompleted},
	}}
	require.InDelta(t, 0.5, c.Progress(), 1e-9)
	require.Zero(t, domain.Case{}.Progress())
}

func TestPaidTotal(t *testing.T) {
	c := domain.Case{
		TotalCost: 25000,
		Payments: []domain.Payment{
			{Amount: 10000},
			{Amount: 5000},
		},
	}
	require.Equal(t, float64(15000), c.PaidTotal())
	require.Zero(t, domain.Case{}.PaidTotal())
}

func TestValidEventType(t *testing.T) {
	for _, et := range domain.EventTypes {
		require.True(t, domain.ValidEventType(et), string(et))
	}
	require.False(t, domain.ValidEventType("party"))
	require.False(t, domain.ValidEventType(""))
}

func TestValidateMeta(t *testing.T) {
	// no metadata is always fine
	require.True(t, domain.TimelineEvent{Type: domain.EventNote}.ValidateMeta())
	require.True(t, domain.TimelineEvent{Type: domain.EventNote, Meta: &domain.EventMeta{}}.ValidateMeta())

	// a populated branch must match the event type
	closure := &domain.EventMeta{Closure: &domain.ClosureMeta{ComplianceRating: 5}}
	require.True(t, domain.TimelineEvent{Type: domain.EventClosure, Meta: closure}.ValidateMeta())
	require.False(t, domain.TimelineEvent{Type: domain.EventNote, Meta: closure}.ValidateMeta())

	// at most one branch may be set
	both := &domain.EventMeta{
		Closure:      &domain.ClosureMeta{ComplianceRating: 5},
		StatusChange: &domain.StatusChangeMeta{StageID: "s1"},
	}
	require.False(t, domain.TimelineEvent{Type: domain.EventClosure, Meta: both}.ValidateMeta())

	change := &domain.EventMeta{StatusChange: &domain.StatusChangeMeta{
		StageID:        "s1",
		PreviousStatus: domain.StageInProgress,
		NewStatus:      domain.StageCompleted,
	}}
	require.True(t, domain.TimelineEvent{Type: domain.EventStatusChange, Meta: change}.ValidateMeta())
	require.False(t, domain.TimelineEvent{Type: domain.EventDelegation, Meta: change}.ValidateMeta())
}
