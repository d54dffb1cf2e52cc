package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lexline/internal/config"
	"lexline/internal/domain"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	cfg := config.Default("Mi Despacho")
	require.Equal(t, "Mi Despacho", cfg.Firm.Name)
	require.Equal(t, "EXP", cfg.Firm.FolioPrefix)
	require.NotEmpty(t, cfg.Catalog.Templates)
	require.NoError(t, cfg.Validate())
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	cfg, err := config.FromYAML([]byte(config.GenerateDefault("Mi Despacho")))
	require.NoError(t, err)
	require.Equal(t, "Mi Despacho", cfg.Firm.Name)
}

func TestLoadFromWorkspace(t *testing.T) {
	dir := t.TempDir()
	yml := `firm:
  name: Prueba
  folio_prefix: PRB
catalog:
  templates:
    - name: "Amparo"
      base_price: 15000
      stages:
        - title: "Demanda"
          priority: high
          estimated_days: 5
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lexline.yml"), []byte(yml), 0o644))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	require.Equal(t, "PRB", cfg.Firm.FolioPrefix)
	require.Len(t, cfg.Catalog.Templates, 1)
	require.Equal(t, domain.PriorityHigh, cfg.Catalog.Templates[0].Stages[0].Priority)
	require.Equal(t, 5, cfg.Catalog.Templates[0].Stages[0].EstimatedDays)
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Load(dir)
	require.Error(t, err)

	cfg, err := config.LoadOptional(dir)
	require.NoError(t, err)
	require.Nil(t, cfg)
}

func TestValidateRejectsBadCatalog(t *testing.T) {
	base := `firm:
  name: Prueba
  folio_prefix: PRB
catalog:
  templates:
`
	cases := map[string]string{
		"empty name": base + `    - name: ""
`,
		"duplicate name": base + `    - name: "Amparo"
    - name: "Amparo"
`,
		"negative price": base + `    - name: "Amparo"
      base_price: -1
`,
		"bad priority": base + `    - name: "Amparo"
      stages:
        - title: "Demanda"
          priority: urgentisimo
`,
	}
	for name, yml := range cases {
		_, err := config.FromYAML([]byte(yml))
		require.Error(t, err, name)
	}
}
