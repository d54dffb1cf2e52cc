package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"lexline/internal/domain"
)

const caseCols = `id,folio,client_id,service,goal,status,start_date,total_cost,assignee,created_at`

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanCaseRow(scan func(dest ...any) error) (domain.Case, error) {
	var c domain.Case
	var goal, assignee sql.NullString
	var startDate, createdAt string
	var status string
	err := scan(&c.ID, &c.Folio, &c.ClientID, &c.Service, &goal, &status, &startDate, &c.TotalCost, &assignee, &createdAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if goal.Valid {
		c.Goal = goal.String
	}
	if assignee.Valid {
		c.Assignee = &assignee.String
	}
	c.Status = domain.CaseStatus(status)
	c.StartDate = parseTime(startDate)
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// GetCase returns the full case aggregate: stages in plan order, timeline
// newest first, payments oldest first.
func (r Repo) GetCase(ctx context.Context, id string) (domain.Case, error) {
	return getCase(ctx, r.DB, id)
}

func (r Repo) GetCaseTx(ctx context.Context, tx *sql.Tx, id string) (domain.Case, error) {
	return getCase(ctx, tx, id)
}

func getCase(ctx context.Context, q rowQuerier, id string) (domain.Case, error) {
	c, err := scanCaseRow(q.QueryRowContext(ctx, `SELECT `+caseCols+` FROM cases WHERE id=?`, id).Scan)
	if err != nil {
		return c, err
	}
	if c.Stages, err = listStages(ctx, q, id); err != nil {
		return c, err
	}
	if c.Timeline, err = listTimeline(ctx, q, id); err != nil {
		return c, err
	}
	if c.Payments, err = listPayments(ctx, q, id); err != nil {
		return c, err
	}
	return c, nil
}

func (r Repo) ListCases(ctx context.Context) ([]domain.Case, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+caseCols+` FROM cases ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	var res []domain.Case
	for rows.Next() {
		c, err := scanCaseRow(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	for i := range res {
		if res[i].Stages, err = listStages(ctx, r.DB, res[i].ID); err != nil {
			return nil, err
		}
		if res[i].Timeline, err = listTimeline(ctx, r.DB, res[i].ID); err != nil {
			return nil, err
		}
		if res[i].Payments, err = listPayments(ctx, r.DB, res[i].ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) CountCases(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM cases`).Scan(&n)
	return n, err
}

// UpsertCase replaces the whole aggregate by identity match, or appends.
func (r Repo) UpsertCase(ctx context.Context, c domain.Case) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := upsertCaseRowTx(ctx, tx, c); err != nil {
		return err
	}
	for _, table := range []string{"stages", "timeline_events", "payments"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE case_id=?`, c.ID); err != nil {
			return err
		}
	}
	if err := insertCaseChildrenTx(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

// InsertCaseTx inserts the case row with its stages and payments. Timeline
// entries are appended separately inside the same transaction.
func (r Repo) InsertCaseTx(ctx context.Context, tx *sql.Tx, c domain.Case) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO cases(`+caseCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.Folio, c.ClientID, c.Service, nullable(c.Goal), string(c.Status),
		fmtTime(c.StartDate), c.TotalCost, nullableStringPtr(c.Assignee), fmtTime(c.CreatedAt))
	if err != nil {
		return err
	}
	return insertCaseChildrenTx(ctx, tx, c)
}

func upsertCaseRowTx(ctx context.Context, tx *sql.Tx, c domain.Case) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO cases(`+caseCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET folio=excluded.folio, client_id=excluded.client_id, service=excluded.service,
goal=excluded.goal, status=excluded.status, start_date=excluded.start_date, total_cost=excluded.total_cost,
assignee=excluded.assignee`,
		c.ID, c.Folio, c.ClientID, c.Service, nullable(c.Goal), string(c.Status),
		fmtTime(c.StartDate), c.TotalCost, nullableStringPtr(c.Assignee), fmtTime(c.CreatedAt))
	return err
}

func insertCaseChildrenTx(ctx context.Context, tx *sql.Tx, c domain.Case) error {
	for i, s := range c.Stages {
		if err := insertStageTx(ctx, tx, c.ID, i, s); err != nil {
			return err
		}
	}
	// Timeline is stored newest first; insert oldest first so sequence order
	// matches append order.
	for i := len(c.Timeline) - 1; i >= 0; i-- {
		if err := InsertTimelineEventTx(ctx, tx, c.ID, c.Timeline[i]); err != nil {
			return err
		}
	}
	for _, p := range c.Payments {
		if err := insertPaymentTx(ctx, tx, c.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) DeleteCase(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM cases WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateCaseStatusTx(ctx context.Context, tx *sql.Tx, id string, status domain.CaseStatus) error {
	res, err := tx.ExecContext(ctx, `UPDATE cases SET status=? WHERE id=?`, string(status), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- stages ---

func insertStageTx(ctx context.Context, tx *sql.Tx, caseID string, position int, s domain.Stage) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO stages(id,case_id,position,title,description,status,priority,due_date,completed_date)
VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, caseID, position, s.Title, nullable(s.Description), string(s.Status), string(s.Priority),
		fmtTimePtr(s.DueDate), fmtTimePtr(s.CompletedDate))
	return err
}

func (r Repo) UpdateStageTx(ctx context.Context, tx *sql.Tx, s domain.Stage) error {
	res, err := tx.ExecContext(ctx, `UPDATE stages SET title=?, description=?, status=?, priority=?, due_date=?, completed_date=? WHERE id=?`,
		s.Title, nullable(s.Description), string(s.Status), string(s.Priority),
		fmtTimePtr(s.DueDate), fmtTimePtr(s.CompletedDate), s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func listStages(ctx context.Context, q rowQuerier, caseID string) ([]domain.Stage, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,title,description,status,priority,due_date,completed_date FROM stages WHERE case_id=? ORDER BY position ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stage
	for rows.Next() {
		var s domain.Stage
		var desc, due, completed sql.NullString
		var status, priority string
		if err := rows.Scan(&s.ID, &s.Title, &desc, &status, &priority, &due, &completed); err != nil {
			return nil, err
		}
		if desc.Valid {
			s.Description = desc.String
		}
		s.Status = domain.StageStatus(status)
		s.Priority = domain.Priority(priority)
		s.DueDate = parseTimePtr(due)
		s.CompletedDate = parseTimePtr(completed)
		res = append(res, s)
	}
	return res, rows.Err()
}

// --- timeline ---

// InsertTimelineEventTx appends one immutable event row.
func InsertTimelineEventTx(ctx context.Context, tx *sql.Tx, caseID string, e domain.TimelineEvent) error {
	var metaJSON any
	if e.Meta != nil {
		b, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("marshal event meta: %w", err)
		}
		metaJSON = string(b)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO timeline_events(id,case_id,ts,type,author,title,description,attachments_json,meta_json)
VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, caseID, fmtTime(e.At), string(e.Type), string(e.Author), e.Title,
		nullable(e.Description), marshalStringSlice(e.Attachments), metaJSON)
	return err
}

func listTimeline(ctx context.Context, q rowQuerier, caseID string) ([]domain.TimelineEvent, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,ts,type,author,title,description,attachments_json,meta_json FROM timeline_events WHERE case_id=? ORDER BY seq DESC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimelineEvent
	for rows.Next() {
		var e domain.TimelineEvent
		var ts, typ, author string
		var desc, attachments, meta sql.NullString
		if err := rows.Scan(&e.ID, &ts, &typ, &author, &e.Title, &desc, &attachments, &meta); err != nil {
			return nil, err
		}
		e.At = parseTime(ts)
		e.Type = domain.EventType(typ)
		e.Author = domain.Author(author)
		if desc.Valid {
			e.Description = desc.String
		}
		e.Attachments = unmarshalStringSlice(attachments)
		if meta.Valid && meta.String != "" {
			var m domain.EventMeta
			if err := json.Unmarshal([]byte(meta.String), &m); err != nil {
				return nil, fmt.Errorf("event %s meta: %w", e.ID, err)
			}
			e.Meta = &m
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- payments ---

func insertPaymentTx(ctx context.Context, tx *sql.Tx, caseID string, p domain.Payment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO payments(id,case_id,ts,amount,method,note) VALUES (?,?,?,?,?,?)`,
		p.ID, caseID, fmtTime(p.At), p.Amount, nullable(p.Method), nullable(p.Note))
	return err
}

// InsertPaymentTx records one payment against a case.
func (r Repo) InsertPaymentTx(ctx context.Context, tx *sql.Tx, caseID string, p domain.Payment) error {
	return insertPaymentTx(ctx, tx, caseID, p)
}

func listPayments(ctx context.Context, q rowQuerier, caseID string) ([]domain.Payment, error) {
	rows, err := q.QueryContext(ctx, `SELECT id,ts,amount,method,note FROM payments WHERE case_id=? ORDER BY ts ASC, id ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var ts string
		var method, note sql.NullString
		if err := rows.Scan(&p.ID, &ts, &p.Amount, &method, &note); err != nil {
			return nil, err
		}
		p.At = parseTime(ts)
		if method.Valid {
			p.Method = method.String
		}
		if note.Valid {
			p.Note = note.String
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
