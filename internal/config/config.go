package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models capworks.yml: the taxonomy catalogs the planning boundary
// validates codes against, plus automatic-loading settings.
type Config struct {
	Taxonomy struct {
		Boroughs map[string]struct {
			Description string `yaml:"description"`
		} `yaml:"boroughs"`
		Executors map[string]struct {
			Description string `yaml:"description"`
		} `yaml:"executors"`
		ProjectTypes map[string]ProjectType `yaml:"project_types"`
		ProgramTypes map[string]struct {
			Description string `yaml:"description"`
		} `yaml:"program_types"`
	} `yaml:"taxonomy"`
	Loading struct {
		StaleAfterMinutes int `yaml:"stale_after_minutes"`
		QueueSize         int `yaml:"queue_size"`
	} `yaml:"loading"`
}

// ProjectType describes one project-type code. Types flagged
// program_from_interventions carry their program classification on their
// interventions instead of on the project itself.
type ProjectType struct {
	Description              string `yaml:"description"`
	ProgramFromInterventions bool   `yaml:"program_from_interventions"`
}

// StaleAfter is how long a persisted loading flag may be held before
// BeginLoading treats it as abandoned.
func (c *Config) StaleAfter() time.Duration {
	if c.Loading.StaleAfterMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Loading.StaleAfterMinutes) * time.Minute
}

// ProgramFromInterventions reports whether the project type resolves its
// program classification through linked interventions. Unknown types default
// to false: they carry their own classification.
func (c *Config) ProgramFromInterventions(projectTypeID string) bool {
	pt, ok := c.Taxonomy.ProjectTypes[projectTypeID]
	return ok && pt.ProgramFromInterventions
}

func (c *Config) KnownBorough(code string) bool {
	_, ok := c.Taxonomy.Boroughs[code]
	return ok
}

func (c *Config) KnownExecutor(code string) bool {
	_, ok := c.Taxonomy.Executors[code]
	return ok
}

func (c *Config) KnownProjectType(code string) bool {
	_, ok := c.Taxonomy.ProjectTypes[code]
	return ok
}

func (c *Config) KnownProgramType(code string) bool {
	_, ok := c.Taxonomy.ProgramTypes[code]
	return ok
}

// Validate ensures the catalogs meet the required structure.
func (c *Config) Validate() error {
	if len(c.Taxonomy.Boroughs) == 0 {
		return fmt.Errorf("config.taxonomy.boroughs is required")
	}
	if _, ok := c.Taxonomy.Boroughs["MTL"]; !ok {
		return fmt.Errorf("config.taxonomy.boroughs must include the city-wide code MTL")
	}
	if len(c.Taxonomy.Executors) == 0 {
		return fmt.Errorf("config.taxonomy.executors is required")
	}
	if len(c.Taxonomy.ProjectTypes) == 0 {
		return fmt.Errorf("config.taxonomy.project_types is required")
	}
	for code := range c.Taxonomy.Boroughs {
		if code == "" {
			return fmt.Errorf("config.taxonomy.boroughs contains empty code")
		}
	}
	for code := range c.Taxonomy.ProjectTypes {
		if code == "" {
			return fmt.Errorf("config.taxonomy.project_types contains empty code")
		}
	}
	for code := range c.Taxonomy.ProgramTypes {
		if code == "" {
			return fmt.Errorf("config.taxonomy.program_types contains empty code")
		}
	}
	if c.Loading.StaleAfterMinutes < 0 {
		return fmt.Errorf("config.loading.stale_after_minutes must be >= 0")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "capworks.yml")
}

// Load reads and validates config from the workspace, falling back to the
// default catalog when no file exists.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
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

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

const defaultTemplate = `taxonomy:
  boroughs:
    MTL:
      description: "City-wide (matches any borough)"
    AC:
      description: "Ahuntsic-Cartierville"
    CDNNDG:
      description: "Cote-des-Neiges - Notre-Dame-de-Grace"
    MHM:
      description: "Mercier - Hochelaga-Maisonneuve"
    PMR:
      description: "Plateau-Mont-Royal"
    RDPPAT:
      description: "Riviere-des-Prairies - Pointe-aux-Trembles"
    SO:
      description: "Sud-Ouest"
    VM:
      description: "Ville-Marie"
    VSMPE:
      description: "Villeray - Saint-Michel - Parc-Extension"

  executors:
    di:
      description: "Infrastructure directorate"
    deeu:
      description: "Water treatment directorate"
    dep:
      description: "Drinking water directorate"
    borough:
      description: "Borough executor"

  project_types:
    integrated:
      description: "Integrated project; carries its own program classification"
    integratedgp:
      description: "Integrated large-scale project"
    nonIntegrated:
      description: "Non-integrated project; program classification lives on interventions"
      program_from_interventions: true

  program_types:
    par:
      description: "Road network program"
    aqueduc:
      description: "Aqueduct program"
    egout:
      description: "Sewer program"
    reconstruction:
      description: "Reconstruction program"
    rehabilitation:
      description: "Rehabilitation program"

loading:
  stale_after_minutes: 30
  queue_size: 16
`
