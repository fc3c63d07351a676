package application

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

type MigrationStatus struct {
	Version int64
	Path    string
	Applied bool
}

// MigrationManager collects per-dialect schema sources from modules and
// applies them with goose.
type MigrationManager interface {
	RegisterSchema(dialect goose.Dialect, fsys fs.FS)
	Up(ctx context.Context, dialect goose.Dialect, db *sql.DB) error
	Down(ctx context.Context, dialect goose.Dialect, db *sql.DB) error
	Status(ctx context.Context, dialect goose.Dialect, db *sql.DB) ([]MigrationStatus, error)
}

func NewMigrationManager(logger *logrus.Logger) MigrationManager {
	return &migrationManager{
		logger:  logger,
		sources: make(map[goose.Dialect]fs.FS),
	}
}

type migrationManager struct {
	logger  *logrus.Logger
	mu      sync.Mutex
	sources map[goose.Dialect]fs.FS
}

func (m *migrationManager) RegisterSchema(dialect goose.Dialect, fsys fs.FS) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[dialect] = fsys
}

func (m *migrationManager) provider(dialect goose.Dialect, db *sql.DB) (*goose.Provider, error) {
	m.mu.Lock()
	fsys, ok := m.sources[dialect]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no migrations registered for dialect %q", dialect)
	}
	return goose.NewProvider(dialect, db, fsys)
}

func (m *migrationManager) Up(ctx context.Context, dialect goose.Dialect, db *sql.DB) error {
	p, err := m.provider(dialect, db)
	if err != nil {
		return err
	}
	results, err := p.Up(ctx)
	for _, r := range results {
		m.logger.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"duration": r.Duration,
		}).Info("migration applied")
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (m *migrationManager) Down(ctx context.Context, dialect goose.Dialect, db *sql.DB) error {
	p, err := m.provider(dialect, db)
	if err != nil {
		return err
	}
	r, err := p.Down(ctx)
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	if r != nil {
		m.logger.WithField("version", r.Source.Version).Info("migration rolled back")
	}
	return nil
}

func (m *migrationManager) Status(ctx context.Context, dialect goose.Dialect, db *sql.DB) ([]MigrationStatus, error) {
	p, err := m.provider(dialect, db)
	if err != nil {
		return nil, err
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}
