package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"inkwell/internal/middleware"

	"gorm.io/gorm"
)

// SchemaMigration is the ledger row written for every applied blog
// migration. Checksum is the SHA-256 of the up script as it was applied.
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64;not null;default:''"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

// TableName keeps the ledger out of the way of blog tables.
func (SchemaMigration) TableName() string {
	return "inkwell_schema_migrations"
}

const ensureLedgerSQL = `
CREATE TABLE IF NOT EXISTS inkwell_schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// MigrationStore reads and writes the migration ledger.
type MigrationStore interface {
	Applied(ctx context.Context) ([]SchemaMigration, error)
	Apply(ctx context.Context, m Migration) error
	Forget(ctx context.Context, version int) error
}

type migrationStore struct {
	db *gorm.DB
}

// NewMigrationStore returns a ledger over db.
func NewMigrationStore(db *gorm.DB) MigrationStore {
	return &migrationStore{db: db}
}

func checksum(script string) string {
	sum := sha256.Sum256([]byte(script))
	return hex.EncodeToString(sum[:])
}

// Applied lists ledger rows by version. A missing ledger means a fresh database.
func (s *migrationStore) Applied(ctx context.Context) ([]SchemaMigration, error) {
	var rows []SchemaMigration
	err := s.db.WithContext(ctx).Order("version ASC").Find(&rows).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	return rows, nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// Apply runs the up script and records it in one transaction.
func (s *migrationStore) Apply(ctx context.Context, m Migration) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(m.UpScript).Error; err != nil {
			return fmt.Errorf("apply %s: %w", m.String(), err)
		}
		row := SchemaMigration{Version: m.Version, Name: m.Name, Checksum: checksum(m.UpScript)}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("record %s: %w", m.String(), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	middleware.Logger.Info("blog schema migration applied", slog.String("migration", m.String()))
	return nil
}

func (s *migrationStore) Forget(ctx context.Context, version int) error {
	if err := s.db.WithContext(ctx).Delete(&SchemaMigration{}, version).Error; err != nil {
		return fmt.Errorf("forget migration %06d: %w", version, err)
	}
	return nil
}

// RunMigrations applies the pending embedded migrations in version order
// and returns the ones it ran.
func RunMigrations(ctx context.Context, db *gorm.DB) ([]Migration, error) {
	if err := db.WithContext(ctx).Exec(ensureLedgerSQL).Error; err != nil {
		return nil, fmt.Errorf("ensure migration ledger: %w", err)
	}
	return applyPending(ctx, NewMigrationStore(db), migrations)
}

func applyPending(ctx context.Context, store MigrationStore, registered []Migration) ([]Migration, error) {
	applied, err := store.Applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkLedger(applied, registered); err != nil {
		return nil, err
	}

	done := make(map[int]bool, len(applied))
	for _, row := range applied {
		done[row.Version] = true
	}

	var ran []Migration
	for _, m := range registered {
		if done[m.Version] {
			continue
		}
		if err := store.Apply(ctx, m); err != nil {
			return ran, err
		}
		ran = append(ran, m)
	}
	if len(ran) == 0 {
		middleware.Logger.Debug("blog schema is current", slog.Int("migrations", len(registered)))
	}
	return ran, nil
}

// checkLedger refuses to migrate when the ledger names versions this build
// does not ship, or when a shipped script changed after it was applied.
func checkLedger(applied []SchemaMigration, registered []Migration) error {
	byVersion := make(map[int]Migration, len(registered))
	for _, m := range registered {
		byVersion[m.Version] = m
	}

	var unknown, edited []string
	for _, row := range applied {
		m, ok := byVersion[row.Version]
		if !ok {
			unknown = append(unknown, fmt.Sprintf("%06d_%s", row.Version, row.Name))
			continue
		}
		// rows written before checksums were kept have none
		if row.Checksum != "" && row.Checksum != checksum(m.UpScript) {
			edited = append(edited, m.String())
		}
	}

	switch {
	case len(unknown) > 0:
		sort.Strings(unknown)
		return fmt.Errorf("database has migrations this build does not ship: %s (deploy a newer build or reset the development database)",
			strings.Join(unknown, ", "))
	case len(edited) > 0:
		return fmt.Errorf("migrations changed after they were applied: %s (add a new migration instead of editing one)",
			strings.Join(edited, ", "))
	}
	return nil
}

// RollbackMigration reverts one migration. Only the newest applied
// migration may be rolled back, so blog tables never lose a dependency.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return rollback(ctx, db, NewMigrationStore(db), version)
}

func rollback(ctx context.Context, db *gorm.DB, store MigrationStore, version int) error {
	m := GetMigrationByVersion(version)
	if m == nil {
		return fmt.Errorf("migration version %d not found", version)
	}

	applied, err := store.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 || !containsVersion(applied, version) {
		return fmt.Errorf("migration %s has not been applied", m.String())
	}
	if newest := applied[len(applied)-1]; newest.Version != version {
		return fmt.Errorf("roll back %06d_%s before %s", newest.Version, newest.Name, m.String())
	}

	middleware.Logger.Info("rolling back blog schema migration", slog.String("migration", m.String()))
	if err := db.WithContext(ctx).Exec(m.DownScript).Error; err != nil {
		return fmt.Errorf("roll back %s: %w", m.String(), err)
	}
	return store.Forget(ctx, version)
}

func containsVersion(rows []SchemaMigration, version int) bool {
	for _, row := range rows {
		if row.Version == version {
			return true
		}
	}
	return false
}
