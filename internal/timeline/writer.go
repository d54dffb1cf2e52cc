package timeline

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lexline/internal/domain"
	"lexline/internal/repo"
)

// Writer appends events to a case timeline inside the caller's transaction,
// so a stage update and its event land atomically.
type Writer struct {
	Now func() time.Time
}

// Append validates the event against the closed tag set and inserts it at
// the head of the case timeline. Events are immutable once written.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, caseID string, e domain.TimelineEvent) (domain.TimelineEvent, error) {
	if !domain.ValidEventType(e.Type) {
		return e, fmt.Errorf("event type %q outside closed set", e.Type)
	}
	if !e.ValidateMeta() {
		return e, fmt.Errorf("event metadata does not match type %q", e.Type)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		now := time.Now
		if w.Now != nil {
			now = w.Now
		}
		e.At = now().UTC()
	}
	if e.Author == "" {
		e.Author = domain.AuthorSystem
	}
	if err := repo.InsertTimelineEventTx(ctx, tx, caseID, e); err != nil {
		return e, fmt.Errorf("append timeline event: %w", err)
	}
	return e, nil
}
