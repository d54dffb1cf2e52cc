package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"lexline/internal/domain"
)

// Config models lexline.yml.
type Config struct {
	Firm struct {
		Name        string `yaml:"name"`
		FolioPrefix string `yaml:"folio_prefix"`
	} `yaml:"firm"`
	Catalog struct {
		Templates []TemplateEntry `yaml:"templates"`
	} `yaml:"catalog"`
	Drafting struct {
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"drafting"`
}

// TemplateEntry is a catalog service offering seeded into the store.
type TemplateEntry struct {
	Name      string                 `yaml:"name"`
	BasePrice float64                `yaml:"base_price"`
	Stages    []domain.StageTemplate `yaml:"stages"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run lex init or create it by hand", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Firm.FolioPrefix == "" {
		return fmt.Errorf("config.firm.folio_prefix is required")
	}
	seen := map[string]bool{}
	for i, tpl := range c.Catalog.Templates {
		if tpl.Name == "" {
			return fmt.Errorf("catalog template %d has empty name", i)
		}
		if seen[tpl.Name] {
			return fmt.Errorf("catalog template %q defined twice", tpl.Name)
		}
		seen[tpl.Name] = true
		if tpl.BasePrice < 0 {
			return fmt.Errorf("catalog template %q has negative base price", tpl.Name)
		}
		for j, st := range tpl.Stages {
			if st.Title == "" {
				return fmt.Errorf("template %q stage %d has empty title", tpl.Name, j)
			}
			switch st.Priority {
			case "", domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh:
			default:
				return fmt.Errorf("template %q stage %q has invalid priority %q", tpl.Name, st.Title, st.Priority)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "lexline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(firmName string) string {
	return fmt.Sprintf(defaultTemplate, firmName)
}

// Default returns the default Config struct for a firm.
func Default(firmName string) *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(fmt.Sprintf(defaultTemplate, firmName)), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `firm:
  name: %s
  folio_prefix: EXP

catalog:
  templates:
    - name: "Constitución de Sociedad"
      base_price: 25000
      stages:
        - title: "Reunión inicial y acta constitutiva"
          description: "Levantamiento de requisitos y borrador del acta"
          priority: high
          estimated_days: 2
        - title: "Autorización de denominación"
          estimated_days: 5
        - title: "Protocolización ante notario"
          estimated_days: 8
        - title: "Inscripción en el Registro Público"
          estimated_days: 12
        - title: "Alta fiscal y entrega de expediente"
          estimated_days: 15

    - name: "Divorcio"
      base_price: 18000
      stages:
        - title: "Entrevista y convenio"
          priority: high
          estimated_days: 3
        - title: "Presentación de demanda"
          estimated_days: 7
        - title: "Audiencia"
          estimated_days: 20
        - title: "Sentencia y trámites finales"
          estimated_days: 35

    - name: "Contrato de Arrendamiento"
      base_price: 6000
      stages:
        - title: "Revisión de condiciones"
          estimated_days: 2
        - title: "Redacción del contrato"
          estimated_days: 4
        - title: "Firma y entrega"
          estimated_days: 6

    - name: "Registro de Marca"
      base_price: 12000
      stages:
        - title: "Búsqueda fonética y figurativa"
          estimated_days: 3
        - title: "Presentación de solicitud"
          priority: high
          estimated_days: 6
        - title: "Seguimiento del expediente"
        - title: "Título de registro"

drafting:
  base_url: ""
  model: ""
`
