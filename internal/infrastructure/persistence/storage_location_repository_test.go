package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/location"
	"github.com/wms/backend/internal/domain/shared"
)

// newMockStorageLocationRepository creates a GormStorageLocationRepository with a mocked SQL connection
func newMockStorageLocationRepository(t *testing.T) (*GormStorageLocationRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormStorageLocationRepository(gormDB), mock, mockDB
}

func TestGormStorageLocationRepository_FindByID(t *testing.T) {
	t.Run("finds existing location with reservations", func(t *testing.T) {
		repo, mock, mockDB := newMockStorageLocationRepository(t)
		defer mockDB.Close()

		locationID := uuid.New()
		reservationID := uuid.New()

		locRows := sqlmock.NewRows([]string{"id", "version", "code", "type_tags", "status"}).
			AddRow(locationID, 1, "A-01-01", "AMBIENT", "ACTIVE")
		mock.ExpectQuery(`SELECT \* FROM "storage_locations" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(locationID, 1).
			WillReturnRows(locRows)

		resRows := sqlmock.NewRows([]string{"id", "location_id", "job_id", "row_id", "released", "confirmed"}).
			AddRow(reservationID, locationID, "JOB-1", "ROW-1", false, false)
		mock.ExpectQuery(`SELECT \* FROM "capacity_reservations" WHERE "capacity_reservations"\."location_id" = \$1`).
			WithArgs(locationID).
			WillReturnRows(resRows)

		loc, err := repo.FindByID(context.Background(), locationID)

		require.NoError(t, err)
		assert.Equal(t, "A-01-01", loc.Code)
		require.Len(t, loc.Reservations, 1)
		assert.Equal(t, reservationID, loc.Reservations[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrNotFound for missing location", func(t *testing.T) {
		repo, mock, mockDB := newMockStorageLocationRepository(t)
		defer mockDB.Close()

		locationID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "storage_locations" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(locationID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		loc, err := repo.FindByID(context.Background(), locationID)

		assert.Nil(t, loc)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormStorageLocationRepository_FindByCode(t *testing.T) {
	t.Run("returns ErrNotFound for unknown code", func(t *testing.T) {
		repo, mock, mockDB := newMockStorageLocationRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "storage_locations" WHERE code = \$1 ORDER BY .* LIMIT .*`).
			WithArgs("NO-SUCH", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		loc, err := repo.FindByCode(context.Background(), "NO-SUCH")

		assert.Nil(t, loc)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormStorageLocationRepository_FindCandidates(t *testing.T) {
	t.Run("filters active locations by storage-type coverage", func(t *testing.T) {
		repo, mock, mockDB := newMockStorageLocationRepository(t)
		defer mockDB.Close()

		ambientID := uuid.New()
		coldID := uuid.New()

		locRows := sqlmock.NewRows([]string{"id", "version", "code", "type_tags", "status"}).
			AddRow(ambientID, 1, "A-01-01", "AMBIENT", "ACTIVE").
			AddRow(coldID, 1, "C-01-01", "AMBIENT,TEMP_CONTROLLED", "ACTIVE")
		mock.ExpectQuery(`SELECT \* FROM "storage_locations" WHERE status = \$1 ORDER BY code ASC`).
			WithArgs(string(location.LocationStatusActive)).
			WillReturnRows(locRows)

		mock.ExpectQuery(`SELECT \* FROM "capacity_reservations" WHERE "capacity_reservations"\."location_id" IN \(\$1,\$2\)`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "location_id"}))

		candidates, err := repo.FindCandidates(context.Background(), []location.StorageType{location.StorageTypeTempControlled})

		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, "C-01-01", candidates[0].Code)
	})

	t.Run("no requirement accepts every active location", func(t *testing.T) {
		repo, mock, mockDB := newMockStorageLocationRepository(t)
		defer mockDB.Close()

		locRows := sqlmock.NewRows([]string{"id", "version", "code", "type_tags", "status"}).
			AddRow(uuid.New(), 1, "A-01-01", "AMBIENT", "ACTIVE").
			AddRow(uuid.New(), 1, "C-01-01", "TEMP_CONTROLLED", "ACTIVE")
		mock.ExpectQuery(`SELECT \* FROM "storage_locations" WHERE status = \$1 ORDER BY code ASC`).
			WithArgs(string(location.LocationStatusActive)).
			WillReturnRows(locRows)

		mock.ExpectQuery(`SELECT \* FROM "capacity_reservations"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "location_id"}))

		candidates, err := repo.FindCandidates(context.Background(), nil)

		require.NoError(t, err)
		assert.Len(t, candidates, 2)
	})
}

func TestGormStorageLocationRepository_SaveWithLock(t *testing.T) {
	t.Run("successful save with correct version", func(t *testing.T) {
		repo, mock, mockDB := newMockStorageLocationRepository(t)
		defer mockDB.Close()

		loc := newTestStorageLocation(t)
		loc.IncrementVersion() // Simulate domain operation bumping the version

		mock.ExpectExec(`UPDATE "storage_locations" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.SaveWithLock(context.Background(), loc)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns ErrConcurrencyConflict on version mismatch", func(t *testing.T) {
		repo, mock, mockDB := newMockStorageLocationRepository(t)
		defer mockDB.Close()

		loc := newTestStorageLocation(t)
		loc.IncrementVersion()

		// Another transaction already bumped the row's version, so the
		// version-guarded UPDATE matches nothing
		mock.ExpectExec(`UPDATE "storage_locations" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveWithLock(context.Background(), loc)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates database errors", func(t *testing.T) {
		repo, mock, mockDB := newMockStorageLocationRepository(t)
		defer mockDB.Close()

		loc := newTestStorageLocation(t)
		loc.IncrementVersion()

		mock.ExpectExec(`UPDATE "storage_locations" SET`).
			WillReturnError(assert.AnError)

		err := repo.SaveWithLock(context.Background(), loc)

		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func newTestStorageLocation(t *testing.T) *location.StorageLocation {
	t.Helper()

	loc, err := location.NewStorageLocation(
		"A-01-01",
		location.Path{Site: "S1", Building: "B1", Zone: "Z1"},
		[]location.StorageType{location.StorageTypeAmbient},
		location.Capacity{},
	)
	require.NoError(t, err)
	return loc
}
