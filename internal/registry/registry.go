// Package registry tracks conversion and preprocessing outcomes in a local
// SQLite database. It is the source of truth for which standardized entries
// exist and whether they landed completely: a row only reaches status
// complete after the files are in place.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entry statuses.
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// ErrNotFound is returned when an entry or run does not exist.
var ErrNotFound = errors.New("registry entry not found")

// Entry is one standardized dataset entry, uniquely keyed by its
// (subject, session, task) triple.
type Entry struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	Subject string `gorm:"uniqueIndex:idx_entry_key,priority:1" json:"subject"`
	Session string `gorm:"uniqueIndex:idx_entry_key,priority:2" json:"session"`
	Task    string `gorm:"uniqueIndex:idx_entry_key,priority:3" json:"task"`

	SourceFile string `json:"source_file"`
	Status     string `gorm:"index:idx_entry_status" json:"status"`
	Error      string `json:"error,omitempty"`

	SampleRate float64 `json:"sample_rate"`
	NChannels  int     `json:"n_channels"`
	NEvents    int     `json:"n_events"`
	DurationS  float64 `json:"duration_s"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Run is one preprocessing invocation over an entry.
type Run struct {
	ID      string `gorm:"primaryKey;type:varchar(36)"`
	EntryID uint   `gorm:"index:idx_run_entry" json:"entry_id"`

	Mode        string `json:"mode"` // findings or apply
	BadChannels int    `json:"bad_channels"`
	Annotations int    `json:"annotations"`
	ReportPath  string `json:"report_path"`

	CreatedAt time.Time
}

// Registry wraps the database handle.
type Registry struct {
	db *gorm.DB
}

// Open creates or opens the registry database and migrates its schema.
func Open(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating registry dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening registry db: %w", err)
	}

	if err := db.AutoMigrate(&Entry{}, &Run{}); err != nil {
		return nil, fmt.Errorf("migrating registry schema: %w", err)
	}
	return &Registry{db: db}, nil
}

// Close releases the underlying connection pool.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert records the outcome for a (subject, session, task) triple,
// replacing any earlier row for the same triple.
func (r *Registry) Upsert(e *Entry) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing Entry
		err := tx.Where("subject = ? AND session = ? AND task = ?", e.Subject, e.Session, e.Task).
			First(&existing).Error
		switch {
		case err == nil:
			e.ID = existing.ID
			e.CreatedAt = existing.CreatedAt
			return tx.Save(e).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(e).Error
		default:
			return fmt.Errorf("querying existing entry: %w", err)
		}
	})
}

// Get looks up one entry by its triple.
func (r *Registry) Get(subject, session, task string) (*Entry, error) {
	var e Entry
	err := r.db.Where("subject = ? AND session = ? AND task = ?", subject, session, task).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: sub-%s ses-%s task-%s", ErrNotFound, subject, session, task)
	}
	if err != nil {
		return nil, fmt.Errorf("querying entry: %w", err)
	}
	return &e, nil
}

// List returns every entry ordered by subject, session, task.
func (r *Registry) List() ([]Entry, error) {
	var entries []Entry
	if err := r.db.Order("subject, session, task").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// RecordRun stores one preprocessing run for an entry.
func (r *Registry) RecordRun(run *Run) error {
	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// RunsFor lists the preprocessing runs for an entry, newest first.
func (r *Registry) RunsFor(entryID uint) ([]Run, error) {
	var runs []Run
	if err := r.db.Where("entry_id = ?", entryID).Order("created_at desc").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}
