package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// schemaPlan is the set of schema steps a startup or `migrate` run takes.
type schemaPlan struct {
	Mode string
	SQL  bool
	Auto bool
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// planSchema picks the steps for DB_SCHEMA_MODE. The embedded SQL is
// PostgreSQL, so a SQLite blog is always built from the gorm models.
// Hybrid runs the SQL and lets AutoMigrate fill in model additions outside
// production-like environments.
func planSchema(cfg *config.Config) (schemaPlan, error) {
	plan := schemaPlan{Mode: strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))}
	if plan.Mode == "" {
		plan.Mode = SchemaModeHybrid
	}
	switch plan.Mode {
	case SchemaModeHybrid, SchemaModeSQL, SchemaModeAuto:
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", plan.Mode)
	}

	if cfg.DBDriver == "sqlite" {
		plan.Auto = true
		return plan, nil
	}

	prodLike := isProdLikeEnv(cfg.Env)
	switch plan.Mode {
	case SchemaModeSQL:
		plan.SQL = true
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.Auto = true
	case SchemaModeHybrid:
		plan.SQL = true
		plan.Auto = !prodLike
	}
	return plan, nil
}

// ApplySchema brings the blog tables up to date according to the plan.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := planSchema(cfg)
	if err != nil {
		return err
	}

	if plan.SQL {
		if _, err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if plan.Auto {
		if plan.Mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.Warn("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true; review blog schema diffs before deploying")
		}
		middleware.Logger.Info("syncing blog tables from models",
			slog.String("mode", plan.Mode), slog.String("env", cfg.Env), slog.Int("models", len(PersistentModels())))
		if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// AppliedMigration is a ledger row matched against the shipped script.
type AppliedMigration struct {
	Migration
	AppliedAt time.Time
	Edited    bool
}

// SchemaStatus is what `migrate status` reports.
type SchemaStatus struct {
	Mode               string
	Environment        string
	Driver             string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	Applied            []AppliedMigration
	Pending            []Migration
	MissingTables      []string
}

// Lines renders the status one fact per line.
func (s *SchemaStatus) Lines() []string {
	steps := []string{}
	if s.WillRunSQL {
		steps = append(steps, "sql")
	}
	if s.WillRunAutoMigrate {
		steps = append(steps, "automigrate")
	}
	if len(steps) == 0 {
		steps = append(steps, "none")
	}

	lines := []string{fmt.Sprintf("mode %s on %s (%s): %s", s.Mode, s.Driver, s.Environment, strings.Join(steps, "+"))}
	for _, m := range s.Applied {
		line := fmt.Sprintf("applied %s at %s", m.String(), m.AppliedAt.UTC().Format(time.RFC3339))
		if m.Edited {
			line += " (script changed since)"
		}
		lines = append(lines, line)
	}
	for i := range s.Pending {
		lines = append(lines, "pending "+s.Pending[i].String())
	}
	for _, table := range s.MissingTables {
		lines = append(lines, "missing table "+table)
	}
	return lines
}

// GetSchemaStatus reports the plan, the migration ledger and which blog
// tables are absent.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               plan.Mode,
		Environment:        cfg.Env,
		Driver:             cfg.DBDriver,
		WillRunSQL:         plan.SQL,
		WillRunAutoMigrate: plan.Auto,
	}

	missing, err := missingBlogTables(db)
	if err != nil {
		return nil, err
	}
	status.MissingTables = missing

	if !plan.SQL {
		return status, nil
	}

	rows, err := NewMigrationStore(db).Applied(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(rows))
	for _, row := range rows {
		seen[row.Version] = true
		m := GetMigrationByVersion(row.Version)
		if m == nil {
			m = &Migration{Version: row.Version, Name: row.Name}
		}
		status.Applied = append(status.Applied, AppliedMigration{
			Migration: *m,
			AppliedAt: row.AppliedAt,
			Edited:    row.Checksum != "" && m.UpScript != "" && row.Checksum != checksum(m.UpScript),
		})
	}
	for _, m := range GetMigrations() {
		if !seen[m.Version] {
			status.Pending = append(status.Pending, m)
		}
	}
	return status, nil
}

func missingBlogTables(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse %T: %w", model, err)
		}
		if !db.Migrator().HasTable(stmt.Schema.Table) {
			missing = append(missing, stmt.Schema.Table)
		}
	}
	return missing, nil
}
