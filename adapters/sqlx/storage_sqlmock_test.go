package sqlx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	storage "rewardkit/adapters/sqlx"
	"rewardkit/core"
	"rewardkit/engine"
)

var _ engine.Store = (*storage.Store)(nil)

func newMockStore(t *testing.T, driver storage.Driver) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, string(driver)), driver)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_AddXP_Postgres(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO user_xp .* ON CONFLICT \(user_id\) DO UPDATE .* RETURNING xp`).
		WithArgs(user, int64(10), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"xp"}).AddRow(int64(35)))
	mock.ExpectExec(`INSERT INTO xp_events`).
		WithArgs(sqlmock.AnyArg(), user, int64(10), "signup", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ev, total, err := store.AddXP(ctx, user, 10, "signup")
	require.NoError(t, err)
	require.Equal(t, int64(35), total)
	require.Equal(t, "signup", ev.Reason)
	require.NotEmpty(t, ev.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_AddXP_MySQL(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO user_xp .* ON DUPLICATE KEY UPDATE`).
		WithArgs(user, int64(5), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT xp FROM user_xp WHERE user_id = \?`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"xp"}).AddRow(int64(5)))
	mock.ExpectExec(`INSERT INTO xp_events .* VALUES \(\?, \?, \?, \?, \?\)`).
		WithArgs(sqlmock.AnyArg(), user, int64(5), "vote_cast", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	_, total, err := store.AddXP(ctx, user, 5, "vote_cast")
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_AddXP_RollsBackOnEventFailure(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO user_xp`).
		WillReturnRows(sqlmock.NewRows([]string{"xp"}).AddRow(int64(10)))
	mock.ExpectExec(`INSERT INTO xp_events`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, _, err := store.AddXP(context.Background(), "u1", 10, "signup")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_InsertBadgeAward(t *testing.T) {
	tests := []struct {
		name     string
		driver   storage.Driver
		err      error
		inserted bool
		wantErr  bool
	}{
		{name: "inserted", driver: storage.DriverPostgres, inserted: true},
		{name: "postgres duplicate", driver: storage.DriverPostgres, err: &pq.Error{Code: "23505"}},
		{name: "mysql duplicate", driver: storage.DriverMySQL, err: &mysql.MySQLError{Number: 1062}},
		{name: "other failure", driver: storage.DriverPostgres, err: errors.New("connection reset"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock, cleanup := newMockStore(t, tt.driver)
			defer cleanup()

			exp := mock.ExpectExec(`INSERT INTO user_badges`).
				WithArgs(core.UserID("u1"), core.BadgeExplorer, sqlmock.AnyArg())
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(sqlmock.NewResult(1, 1))
			}

			inserted, err := store.InsertBadgeAward(context.Background(), core.BadgeAward{
				UserID: "u1", Badge: core.BadgeExplorer, AwardedAt: time.Now(),
			})
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tt.inserted, inserted)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQLMock_IncrementActivity_Postgres(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO user_activity .* ON CONFLICT \(user_id, counter\)`).
		WithArgs(core.UserID("u1"), core.CounterVotesCast).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectCommit()

	n, err := store.IncrementActivity(context.Background(), "u1", core.ActivityVoteCast)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_IncrementActivity_UnknownKind(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	_, err := store.IncrementActivity(context.Background(), "u1", core.ActivityKind("dance"))
	require.ErrorIs(t, err, core.ErrInvalidActivity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetStats(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	user := core.UserID("u1")
	mock.ExpectQuery(`SELECT counter, count FROM user_activity`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"counter", "count"}).
			AddRow("votes_cast", int64(3)).
			AddRow("signups", int64(1)))
	mock.ExpectQuery(`SELECT xp FROM user_xp`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"xp"}))

	stats, err := store.GetStats(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.VotesCast)
	require.Equal(t, int64(1), stats.Signups)
	require.Zero(t, stats.XP)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_ListBadgeAwards(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT badge, awarded_at FROM user_badges`).
		WithArgs(core.UserID("u1")).
		WillReturnRows(sqlmock.NewRows([]string{"badge", "awarded_at"}).
			AddRow("WELCOME", at).
			AddRow("EXPLORER", at.Add(time.Minute)))

	awards, err := store.ListBadgeAwards(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, awards, 2)
	require.Equal(t, core.BadgeWelcome, awards[0].Badge)
	require.Equal(t, core.UserID("u1"), awards[1].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_ListNotifications_UnreadOnly(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
	defer cleanup()

	mock.ExpectQuery(`FROM notifications WHERE user_id = \$1 AND is_read = FALSE ORDER BY created_at DESC`).
		WithArgs(core.UserID("u1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "message", "is_read", "created_at"}).
			AddRow("n1", "u1", "badge", "hello", false, time.Now()))

	notes, err := store.ListNotifications(context.Background(), "u1", true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, core.NotificationBadge, notes[0].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_MarkNotificationRead(t *testing.T) {
	t.Run("updated", func(t *testing.T) {
		store, mock, cleanup := newMockStore(t, storage.DriverPostgres)
		defer cleanup()
		mock.ExpectExec(`UPDATE notifications SET is_read = TRUE`).
			WithArgs(core.UserID("u1"), "n1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, store.MarkNotificationRead(context.Background(), "u1", "n1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("missing", func(t *testing.T) {
		store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
		defer cleanup()
		mock.ExpectExec(`UPDATE notifications SET is_read = TRUE`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(core.UserID("u1"), "nope").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		err := store.MarkNotificationRead(context.Background(), "u1", "nope")
		require.ErrorIs(t, err, core.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLMock_Migrate(t *testing.T) {
	store, mock, cleanup := newMockStore(t, storage.DriverMySQL)
	defer cleanup()

	for i := 0; i < 5; i++ {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, storage.DefaultConfig(storage.DriverPostgres).Validate())
	require.NoError(t, storage.DefaultConfig(storage.DriverMySQL).Validate())

	cfg := storage.DefaultConfig(storage.DriverPostgres)
	cfg.Driver = "sqlite"
	require.Error(t, cfg.Validate())

	cfg = storage.DefaultConfig(storage.DriverMySQL)
	cfg.DSN = ""
	require.Error(t, cfg.Validate())
}
