package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"catmate-tracker/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// newSQLiteDB opens a private in-memory database with both tables migrated.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormDB.AutoMigrate(&model.MealScheduleRow{}, &model.PushSubscription{}))

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return gormDB
}

func scheduleRows(id string, stamp time.Time) []model.MealScheduleRow {
	rows := make([]model.MealScheduleRow, 4)
	for i := range rows {
		rows[i] = model.MealScheduleRow{
			ScheduleID:     id,
			TimeStamp:      stamp,
			NextMeal:       stamp.Add(time.Duration(i+1) * 12 * time.Hour),
			RemainingMeals: 4 - i,
		}
	}
	return rows
}

func TestGormStore_AppendSchedule(t *testing.T) {
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name             string
		rows             []model.MealScheduleRow
		mockExpectations func(mock sqlmock.Sqlmock)
		expectedErr      bool
	}{
		{
			name: "Inserts all rows of a schedule",
			rows: scheduleRows("a", now),
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "cat_meals" ("schedule_id","time_stamp","next_meals","remaining_meals")`)).
					WithArgs("a", Any{}, Any{}, 4, "a", Any{}, Any{}, 3, "a", Any{}, Any{}, 2, "a", Any{}, Any{}, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3).AddRow(4))
				mock.ExpectCommit()
			},
		},
		{
			name: "Write failure is rolled back and reported",
			rows: scheduleRows("b", now),
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "cat_meals"`)).
					WillReturnError(errors.New("connection reset"))
				mock.ExpectRollback()
			},
			expectedErr: true,
		},
		{
			name:             "Empty schedule never reaches the database",
			rows:             nil,
			mockExpectations: func(mock sqlmock.Sqlmock) {},
			expectedErr:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			err := store.AppendSchedule(context.Background(), tc.rows)

			if tc.expectedErr {
				var perr *PersistenceError
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, "append schedule", perr.Op)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_LatestRows(t *testing.T) {
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Returns newest rows oldest first", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "cat_meals" ORDER BY id DESC LIMIT`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "schedule_id", "time_stamp", "next_meals", "remaining_meals"}).
				AddRow(8, "b", now, now.Add(48*time.Hour), 1).
				AddRow(7, "b", now, now.Add(36*time.Hour), 2).
				AddRow(6, "b", now, now.Add(24*time.Hour), 3).
				AddRow(5, "b", now, now.Add(12*time.Hour), 4))

		rows, err := store.LatestRows(context.Background(), 4)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, []int64{5, 6, 7, 8}, []int64{rows[0].ID, rows[1].ID, rows[2].ID, rows[3].ID})
		assert.Equal(t, 4, rows[0].RemainingMeals)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Read failure is a persistence error", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "cat_meals"`)).
			WillReturnError(errors.New("database is down"))

		_, err := store.LatestRows(context.Background(), 4)
		var perr *PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "latest rows", perr.Op)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Invalid limit", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		store := NewGormStore(gormDB)

		_, err := store.LatestRows(context.Background(), 0)
		assert.ErrorIs(t, err, ErrInvalidLimit)
		var perr *PersistenceError
		assert.False(t, errors.As(err, &perr))

		_, err = store.LatestRows(context.Background(), -3)
		assert.ErrorIs(t, err, ErrInvalidLimit)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStore_ReplaceSchedule(t *testing.T) {
	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "cat_meals"`)).
		WillReturnResult(sqlmock.NewResult(0, 8))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "cat_meals"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9).AddRow(10).AddRow(11).AddRow(12))
	mock.ExpectCommit()

	err := store.ReplaceSchedule(context.Background(), scheduleRows("c", now))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_AppendKeepsHistory(t *testing.T) {
	gormDB := newSQLiteDB(t)
	store := NewGormStore(gormDB)
	ctx := context.Background()

	first := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(36 * time.Hour)

	require.NoError(t, store.AppendSchedule(ctx, scheduleRows("first", first)))
	require.NoError(t, store.AppendSchedule(ctx, scheduleRows("second", second)))

	var count int64
	require.NoError(t, gormDB.Model(&model.MealScheduleRow{}).Count(&count).Error)
	assert.Equal(t, int64(8), count)

	rows, err := store.LatestRows(ctx, 4)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, r := range rows {
		assert.Equal(t, "second", r.ScheduleID)
		assert.Equal(t, 4-i, r.RemainingMeals)
		assert.True(t, second.Equal(r.TimeStamp), "expected %v, got %v", second, r.TimeStamp)
	}

	rows, err = store.LatestRows(ctx, 6)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "first", rows[0].ScheduleID)
	assert.Equal(t, 2, rows[0].RemainingMeals)
}

func TestGormStore_ReplaceDropsHistory(t *testing.T) {
	gormDB := newSQLiteDB(t)
	store := NewGormStore(gormDB)
	ctx := context.Background()

	now := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendSchedule(ctx, scheduleRows("old", now)))
	require.NoError(t, store.ReplaceSchedule(ctx, scheduleRows("new", now.Add(time.Hour))))

	rows, err := store.LatestRows(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.Equal(t, "new", r.ScheduleID)
	}
}

func TestGormStore_LatestRowsEmpty(t *testing.T) {
	store := NewGormStore(newSQLiteDB(t))

	rows, err := store.LatestRows(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
