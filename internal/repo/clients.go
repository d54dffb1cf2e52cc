package repo

import (
	"context"
	"database/sql"

	"lexline/internal/domain"
)

const clientCols = `id,name,email,phone,extra_emails_json,extra_phones_json,service_level,access_enabled,tags_json,created_at`

func scanClient(scan func(dest ...any) error) (domain.Client, error) {
	var c domain.Client
	var phone, extraEmails, extraPhones, tags sql.NullString
	var access int
	var createdAt string
	err := scan(&c.ID, &c.Name, &c.Email, &phone, &extraEmails, &extraPhones, &c.ServiceLevel, &access, &tags, &createdAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if phone.Valid {
		c.Phone = phone.String
	}
	c.ExtraEmails = unmarshalStringSlice(extraEmails)
	c.ExtraPhones = unmarshalStringSlice(extraPhones)
	c.Tags = unmarshalStringSlice(tags)
	c.AccessEnabled = access != 0
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

func (r Repo) GetClient(ctx context.Context, id string) (domain.Client, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+clientCols+` FROM clients WHERE id=?`, id)
	return scanClient(row.Scan)
}

func (r Repo) ListClients(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+clientCols+` FROM clients ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Client
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// UpsertClient replaces by identity match or appends.
func (r Repo) UpsertClient(ctx context.Context, c domain.Client) error {
	access := 0
	if c.AccessEnabled {
		access = 1
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO clients(`+clientCols+`) VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name, email=excluded.email, phone=excluded.phone,
extra_emails_json=excluded.extra_emails_json, extra_phones_json=excluded.extra_phones_json,
service_level=excluded.service_level, access_enabled=excluded.access_enabled, tags_json=excluded.tags_json`,
		c.ID, c.Name, c.Email, nullable(c.Phone), marshalStringSlice(c.ExtraEmails), marshalStringSlice(c.ExtraPhones),
		c.ServiceLevel, access, marshalStringSlice(c.Tags), fmtTime(c.CreatedAt))
	return err
}

func (r Repo) DeleteClient(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM clients WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
