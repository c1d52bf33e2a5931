// Package integration spins up disposable PostgreSQL containers and runs
// the schema migrations so allocation and movement flows can be exercised
// against a real database.
package integration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB is a migrated PostgreSQL instance scoped to one test. The
// container and its connections are torn down when the test finishes.
type TestDB struct {
	DB *gorm.DB
	t  *testing.T
}

// NewTestDB starts a fresh postgres container, applies every migration,
// and returns a handle ready for fixture seeding.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("wms_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(termCtx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "resolve connection string")

	db := openGorm(t, dsn)
	applyMigrations(t, db)

	return &TestDB{DB: db, t: t}
}

func openGorm(t *testing.T, dsn string) *gorm.DB {
	t.Helper()

	logLevel := logger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	require.NoError(t, err, "connect to test database")

	pool, err := db.DB()
	require.NoError(t, err, "access connection pool")
	pool.SetMaxOpenConns(5)
	pool.SetMaxIdleConns(2)
	pool.SetConnMaxLifetime(5 * time.Minute)
	t.Cleanup(func() { pool.Close() })

	return db
}

func applyMigrations(t *testing.T, db *gorm.DB) {
	t.Helper()

	dir := migrationsDir()
	require.NotEmpty(t, dir, "migrations directory not found")

	pool, err := db.DB()
	require.NoError(t, err, "access connection pool")

	driver, err := mpg.WithInstance(pool, &mpg.Config{})
	require.NoError(t, err, "create migration driver")

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	require.NoError(t, err, "create migrator")

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		require.NoError(t, err, "apply migrations")
	}
}

// migrationsDir walks up from this source file until it finds the
// module root (marked by go.mod) and returns its migrations directory.
func migrationsDir() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return ""
	}

	for dir := filepath.Dir(file); ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			path := filepath.Join(dir, "migrations")
			if _, err := os.Stat(path); err == nil {
				return path
			}
			return ""
		}
		if dir == filepath.Dir(dir) {
			return ""
		}
	}
}

// CreateTestLocation inserts a storage location row directly, bypassing
// the repository layer. Capacity ceilings other than unit count are left
// unlimited.
func (tdb *TestDB) CreateTestLocation(id fmt.Stringer, code, site, building, zone, tags string, ceilingUnits int) {
	tdb.t.Helper()

	err := tdb.DB.Exec(`
		INSERT INTO storage_locations (
			id, code, path_site, path_building, path_zone,
			type_tags, status,
			ceiling_volume, ceiling_weight, ceiling_unit_count,
			occupied_volume, occupied_weight, occupied_unit_count,
			reserved_volume, reserved_weight, reserved_unit_count,
			allow_override, warning_threshold_percent, version
		) VALUES (?, ?, ?, ?, ?, ?, 'ACTIVE', 0, 0, ?, 0, 0, 0, 0, 0, 0, false, 80, 1)
		ON CONFLICT (id) DO NOTHING
	`, id.String(), code, site, building, zone, tags, ceilingUnits).Error
	require.NoError(tdb.t, err, "seed storage location %s", code)
}

// CreateTestUnitType inserts a handling unit type row for tests.
func (tdb *TestDB) CreateTestUnitType(code string, maxQuantity int) {
	tdb.t.Helper()

	err := tdb.DB.Exec(`
		INSERT INTO handling_unit_types (id, code, name, max_quantity, volume, weight)
		VALUES (?, ?, ?, ?, 0, 0)
		ON CONFLICT (code) DO NOTHING
	`, uuid.New().String(), code, "Test "+code, maxQuantity).Error
	require.NoError(tdb.t, err, "seed handling unit type %s", code)
}
