package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"lexline/internal/config"
	"lexline/internal/domain"
	"lexline/internal/repo"
)

// ResolveConfig loads the workspace config, falling back to defaults, and
// seeds the catalog templates into the store so a fresh workspace is usable
// without manual imports. Seeding is idempotent: template ids are derived
// from the catalog name.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("Despacho")
	}
	if err := SeedCatalog(ctx, r, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SeedCatalog inserts catalog templates that are not yet in the store.
// Existing templates are left untouched so local edits survive restarts.
func SeedCatalog(ctx context.Context, r repo.Repo, cfg *config.Config) error {
	for _, entry := range cfg.Catalog.Templates {
		id := TemplateID(entry.Name)
		if _, err := r.GetServiceTemplate(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		tpl := domain.ServiceTemplate{
			ID:        id,
			Name:      entry.Name,
			BasePrice: entry.BasePrice,
			Stages:    entry.Stages,
			CreatedAt: time.Now().UTC(),
		}
		if err := r.UpsertServiceTemplate(ctx, tpl); err != nil {
			return err
		}
	}
	return nil
}

// TemplateID derives a stable template id from a catalog name.
func TemplateID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("template|"+name)).String()
}
