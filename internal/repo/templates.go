package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"lexline/internal/domain"
)

func scanTemplate(scan func(dest ...any) error) (domain.ServiceTemplate, error) {
	var t domain.ServiceTemplate
	var stages sql.NullString
	var createdAt string
	err := scan(&t.ID, &t.Name, &t.BasePrice, &stages, &createdAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if stages.Valid && stages.String != "" {
		if err := json.Unmarshal([]byte(stages.String), &t.Stages); err != nil {
			return t, fmt.Errorf("template %s stages: %w", t.ID, err)
		}
	}
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

func (r Repo) GetServiceTemplate(ctx context.Context, id string) (domain.ServiceTemplate, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,base_price,stages_json,created_at FROM service_templates WHERE id=?`, id)
	return scanTemplate(row.Scan)
}

func (r Repo) ListServiceTemplates(ctx context.Context) ([]domain.ServiceTemplate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,base_price,stages_json,created_at FROM service_templates ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ServiceTemplate
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpsertServiceTemplate(ctx context.Context, t domain.ServiceTemplate) error {
	var stagesJSON any
	if len(t.Stages) > 0 {
		b, err := json.Marshal(t.Stages)
		if err != nil {
			return fmt.Errorf("marshal template stages: %w", err)
		}
		stagesJSON = string(b)
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO service_templates(id,name,base_price,stages_json,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, base_price=excluded.base_price, stages_json=excluded.stages_json`,
		t.ID, t.Name, t.BasePrice, stagesJSON, fmtTime(t.CreatedAt))
	return err
}

func (r Repo) DeleteServiceTemplate(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM service_templates WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
