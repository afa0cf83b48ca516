package study

import (
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"github.com/JVHannila/MoBI-project/internal/bids"
)

// Manifest describes one study: which subjects and tasks to convert, which
// recordings to skip, and which alternate task spellings exist on disk.
type Manifest struct {
	Name         string   `json:"name"`
	Session      string   `json:"session"`
	SourceSubdir string   `json:"source_subdir"`
	Subjects     []string `json:"subjects"`
	Tasks        []string `json:"tasks"`

	// Exclude maps subject ID to task names that must not be converted.
	Exclude map[string][]string `json:"exclude,omitempty"`

	// TaskVariations maps a canonical task name to alternate names a
	// recording may have been saved under (e.g. sitting-eyes-closed-before).
	TaskVariations map[string][]string `json:"task_variations,omitempty"`
}

// Default returns the pilot-study manifest used when no file is given.
func Default() *Manifest {
	return &Manifest{
		Name:         "MoBI pilot",
		Session:      bids.DefaultSession,
		SourceSubdir: "brain",
		Subjects:     []string{"P01", "P02", "P03"},
		Tasks: []string{
			"natural-walk",
			"sitting-eyes-closed",
			"sitting-eyes-open",
			"treadmill-walk-comfortable",
			"treadmill-walk-fast",
		},
		Exclude: map[string][]string{
			"P01": {"treadmill-walk-fast"},
		},
		TaskVariations: map[string][]string{
			"sitting-eyes-closed": {"sitting-eyes-closed-before", "sitting-eyes-closed-after"},
			"sitting-eyes-open":   {"sitting-eyes-open-before", "sitting-eyes-open-after"},
			"treadmill-walk-fast": {"treadmill-walk-fast-1"},
		},
	}
}

// Load reads a manifest from a YAML file and validates it.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading study manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing study manifest %s: %w", filepath.Base(path), err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid study manifest %s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

// Validate checks the manifest for the mistakes that would otherwise surface
// halfway through a batch conversion.
func (m *Manifest) Validate() error {
	if len(m.Subjects) == 0 {
		return fmt.Errorf("no subjects listed")
	}
	if len(m.Tasks) == 0 {
		return fmt.Errorf("no tasks listed")
	}
	if m.Session == "" {
		m.Session = bids.DefaultSession
	}
	if m.SourceSubdir == "" {
		m.SourceSubdir = "brain"
	}

	known := make(map[string]bool, len(m.Tasks))
	for _, t := range m.Tasks {
		if t == "" {
			return fmt.Errorf("empty task name")
		}
		known[t] = true
	}
	for subject, tasks := range m.Exclude {
		for _, t := range tasks {
			if !known[t] {
				return fmt.Errorf("exclusion for %s references unknown task %q", subject, t)
			}
		}
	}
	for task := range m.TaskVariations {
		if !known[task] {
			return fmt.Errorf("variation list references unknown task %q", task)
		}
	}
	return nil
}

// Excluded reports whether the given subject/task pair is excluded.
func (m *Manifest) Excluded(subject, task string) bool {
	for _, t := range m.Exclude[subject] {
		if t == task {
			return true
		}
	}
	return false
}

// ResolveSource finds the raw recording for a subject/task under sourceDir,
// trying the primary file name first and then each declared variation.
// It returns the path and the actual task name found on disk.
func (m *Manifest) ResolveSource(sourceDir, subject, task string) (string, string, bool) {
	subjectDir := filepath.Join(sourceDir, "sub-"+subject, m.SourceSubdir)

	primary := filepath.Join(subjectDir, bids.SourceBasename(subject, task)+".xdf")
	if _, err := os.Stat(primary); err == nil {
		return primary, task, true
	}

	for _, variation := range m.TaskVariations[task] {
		candidate := filepath.Join(subjectDir, bids.SourceBasename(subject, variation)+".xdf")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, variation, true
		}
	}
	return "", "", false
}
