package database

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func sqliteConfig(t *testing.T) *config.Config {
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return &config.Config{
		Env:                      "test",
		DBDriver:                 "sqlite",
		DBSQLitePath:             "file:" + name + "?mode=memory&cache=shared",
		DBMaxOpenConns:           1,
		DBMaxIdleConns:           1,
		DBConnMaxLifetimeMinutes: 5,
	}
}

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_SQLiteBuildsSchema(t *testing.T) {
	db, err := Connect(sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model), "%T", model)
	}
	assert.True(t, db.Migrator().HasTable("post_tags"))
	assert.Nil(t, GetReadDB())

	user := models.User{Username: "author", Email: "a@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	post := models.Post{Title: "t", Slug: "t", Content: "c", AuthorID: user.ID, Status: models.PostStatusDraft}
	require.NoError(t, db.Create(&post).Error)

	// foreign keys are enforced
	err = db.Create(&models.Post{Title: "x", Slug: "x", Content: "c", AuthorID: 999}).Error
	assert.Error(t, err)
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := Connect(&config.Config{DBDriver: "oracle"})
	assert.Error(t, err)
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.Config
		wantSQL   bool
		wantAuto  bool
		expectErr bool
	}{
		{"Hybrid development", config.Config{Env: "development", DBDriver: "postgres"}, true, true, false},
		{"Hybrid production", config.Config{Env: "production", DBDriver: "postgres"}, true, false, false},
		{"SQL only", config.Config{Env: "development", DBDriver: "postgres", DBSchemaMode: "sql"}, true, false, false},
		{"Auto in staging refused", config.Config{Env: "staging", DBDriver: "postgres", DBSchemaMode: "auto"}, false, false, true},
		{"Auto in staging allowed", config.Config{Env: "staging", DBDriver: "postgres", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"SQLite always auto", config.Config{Env: "production", DBDriver: "sqlite", DBSchemaMode: "sql"}, false, true, false},
		{"Unknown mode", config.Config{Env: "development", DBDriver: "postgres", DBSchemaMode: "magic"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := planSchema(&tt.cfg)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.SQL)
			assert.Equal(t, tt.wantAuto, plan.Auto)
		})
	}
}

func TestEmbeddedMigrationsRegistered(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "000001_init_schema", all[0].String())
	assert.Contains(t, all[0].UpScript, "CREATE TABLE IF NOT EXISTS posts")
	assert.Contains(t, all[0].DownScript, "DROP TABLE IF EXISTS posts")

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}
	assert.Nil(t, GetMigrationByVersion(99999))
}

func TestRegisterMigrations_RejectsDuplicates(t *testing.T) {
	saved := migrations
	t.Cleanup(func() { migrations = saved })

	fsys := fstest.MapFS{
		"migrations/000001_again.up.sql":   {Data: []byte("SELECT 1;")},
		"migrations/000001_again.down.sql": {Data: []byte("SELECT 1;")},
	}
	assert.Error(t, RegisterMigrations(fsys))
}

func TestRegisterMigrations_MissingDown(t *testing.T) {
	saved := migrations
	t.Cleanup(func() { migrations = saved })
	migrations = nil

	fsys := fstest.MapFS{
		"migrations/000007_lonely.up.sql": {Data: []byte("SELECT 1;")},
		"migrations/notes.txt":            {Data: []byte("ignored")},
	}
	assert.Error(t, RegisterMigrations(fsys))
}

func TestCheckLedger(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "a", UpScript: "SELECT 1;"}, {Version: 2, Name: "b", UpScript: "SELECT 2;"}}
	assert.NoError(t, checkLedger(nil, registered))
	assert.NoError(t, checkLedger([]SchemaMigration{
		{Version: 1, Name: "a", Checksum: checksum("SELECT 1;")},
		{Version: 2, Name: "b"},
	}, registered))

	err := checkLedger([]SchemaMigration{{Version: 1, Name: "a"}, {Version: 5, Name: "e"}, {Version: 3, Name: "c"}}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000003_c, 000005_e")

	err = checkLedger([]SchemaMigration{{Version: 2, Name: "b", Checksum: checksum("SELECT 22;")}}, registered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000002_b")
}

func ledgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func appliedVersions(t *testing.T, store MigrationStore) []int {
	t.Helper()
	rows, err := store.Applied(context.Background())
	require.NoError(t, err)
	versions := []int{}
	for _, row := range rows {
		versions = append(versions, row.Version)
	}
	return versions
}

func TestMigrationStore_SQLite(t *testing.T) {
	db := ledgerDB(t)
	store := NewMigrationStore(db)
	ctx := context.Background()

	assert.Empty(t, appliedVersions(t, store))

	require.NoError(t, db.AutoMigrate(&SchemaMigration{}))
	widgets := Migration{Version: 3, Name: "widgets", UpScript: "CREATE TABLE widgets (id INTEGER PRIMARY KEY)"}
	require.NoError(t, store.Apply(ctx, widgets))
	assert.True(t, db.Migrator().HasTable("widgets"))
	assert.Equal(t, []int{3}, appliedVersions(t, store))

	rows, err := store.Applied(ctx)
	require.NoError(t, err)
	assert.Equal(t, checksum(widgets.UpScript), rows[0].Checksum)

	// a failing script leaves no ledger row behind
	assert.Error(t, store.Apply(ctx, Migration{Version: 4, Name: "broken", UpScript: "CREATE TABL nope"}))
	assert.Equal(t, []int{3}, appliedVersions(t, store))

	require.NoError(t, store.Forget(ctx, 3))
	assert.Empty(t, appliedVersions(t, store))
}

func TestApplyPending_RunsOnlyNewMigrations(t *testing.T) {
	db := ledgerDB(t)
	require.NoError(t, db.AutoMigrate(&SchemaMigration{}))
	store := NewMigrationStore(db)
	ctx := context.Background()

	registered := []Migration{
		{Version: 1, Name: "posts", UpScript: "CREATE TABLE blog_posts (id INTEGER PRIMARY KEY)"},
		{Version: 2, Name: "tags", UpScript: "CREATE TABLE blog_tags (id INTEGER PRIMARY KEY)"},
	}
	ran, err := applyPending(ctx, store, registered[:1])
	require.NoError(t, err)
	require.Len(t, ran, 1)

	ran, err = applyPending(ctx, store, registered)
	require.NoError(t, err)
	require.Len(t, ran, 1)
	assert.Equal(t, "000002_tags", ran[0].String())
	assert.Equal(t, []int{1, 2}, appliedVersions(t, store))

	ran, err = applyPending(ctx, store, registered)
	require.NoError(t, err)
	assert.Empty(t, ran)

	// an edited script is refused before anything runs
	edited := append([]Migration(nil), registered...)
	edited[0].UpScript = "CREATE TABLE blog_posts (id INTEGER PRIMARY KEY, title TEXT)"
	edited = append(edited, Migration{Version: 3, Name: "never", UpScript: "CREATE TABLE never_made (id INTEGER)"})
	_, err = applyPending(ctx, store, edited)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000001_posts")
	assert.False(t, db.Migrator().HasTable("never_made"))
}

func TestRollback_NewestOnly(t *testing.T) {
	all := GetMigrations()
	require.GreaterOrEqual(t, len(all), 2)

	db := ledgerDB(t)
	require.NoError(t, db.AutoMigrate(&SchemaMigration{}))
	store := NewMigrationStore(db)
	ctx := context.Background()
	for _, m := range all[:2] {
		require.NoError(t, db.Create(&SchemaMigration{Version: m.Version, Name: m.Name}).Error)
	}

	err := rollback(ctx, db, store, all[0].Version)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roll back "+all[1].String())

	err = rollback(ctx, db, store, 99999)
	assert.Error(t, err)
}

func TestGetSchemaStatus_SQLite(t *testing.T) {
	cfg := sqliteConfig(t)
	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.MissingTables)
	assert.Equal(t, []string{"mode hybrid on sqlite (test): automigrate"}, status.Lines())

	require.NoError(t, db.Migrator().DropTable("media_assets"))
	status, err = GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"media_assets"}, status.MissingTables)
	assert.Contains(t, status.Lines(), "missing table media_assets")
}

func TestSchemaStatus_Lines(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	status := &SchemaStatus{
		Mode: "hybrid", Driver: "postgres", Environment: "production", WillRunSQL: true,
		Applied: []AppliedMigration{{Migration: Migration{Version: 1, Name: "init_schema"}, AppliedAt: at, Edited: true}},
		Pending: []Migration{{Version: 2, Name: "search_indexes"}},
	}
	assert.Equal(t, []string{
		"mode hybrid on postgres (production): sql",
		"applied 000001_init_schema at 2026-03-01T09:30:00Z (script changed since)",
		"pending 000002_search_indexes",
	}, status.Lines())
}
