package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the environment-driven settings shared by the pipeline
// commands. Per-invocation overrides happen via CLI flags; the study
// manifest (subjects, tasks, exclusions) lives in its own YAML file.
type Config struct {
	Environment    string `envconfig:"MOBI_ENVIRONMENT" default:"development"`
	SourceDir      string `envconfig:"MOBI_SOURCE_DIR" default:"sourcedata/pilot"`
	BIDSRoot       string `envconfig:"MOBI_BIDS_ROOT" default:"data/BIDS"`
	DerivativesDir string `envconfig:"MOBI_DERIVATIVES_DIR" default:"data/BIDS/derivatives/mobi-pipeline"`
	RegistryPath   string `envconfig:"MOBI_REGISTRY_PATH" default:"data/mobi-registry.sqlite3"`
	StudyFile      string `envconfig:"MOBI_STUDY_FILE" default:"study.yaml"`
	MontageFile    string `envconfig:"MOBI_MONTAGE_FILE" default:""`
	ReviewPort     int    `envconfig:"MOBI_REVIEW_PORT" default:"8080"`
	Anonymize      bool   `envconfig:"MOBI_ANONYMIZE" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
