package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"LeadPulse/internal/modules/notification/domain/entity"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

var readStatusColumns = []string{"id", "notification_id", "user_id", "is_read", "read_at", "created_at", "updated_at"}

func TestReadStatusRepository_Get(t *testing.T) {
	t.Parallel()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `notification_read_status` WHERE notification_id = ? AND user_id = ?")).
			WithArgs("N1", "U1", 1).
			WillReturnRows(sqlmock.NewRows(readStatusColumns).AddRow(7, "N1", "U1", true, now, now, now))

		st, err := NewReadStatusRepository(db).Get(context.Background(), "N1", "U1")
		require.NoError(t, err)
		assert.Equal(t, int64(7), st.Id)
		assert.True(t, st.IsRead)
		require.NotNil(t, st.ReadAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `notification_read_status`")).
			WillReturnRows(sqlmock.NewRows(readStatusColumns))

		_, err := NewReadStatusRepository(db).Get(context.Background(), "N2", "U1")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReadStatusRepository_Writes(t *testing.T) {
	t.Parallel()
	now := time.Now()

	t.Run("create", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `notification_read_status`")).
			WillReturnResult(sqlmock.NewResult(11, 1))

		st := &entity.ReadStatus{NotificationId: "N1", UserId: "U1", IsRead: true, ReadAt: &now}
		require.NoError(t, NewReadStatusRepository(db).Create(context.Background(), st))
		assert.Equal(t, int64(11), st.Id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mark read", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `notification_read_status` SET")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewReadStatusRepository(db).MarkRead(context.Background(), 11, now))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("batch create upserts", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectExec("INSERT INTO `notification_read_status` .* ON DUPLICATE KEY UPDATE").
			WillReturnResult(sqlmock.NewResult(1, 2))

		rows := []entity.ReadStatus{
			{NotificationId: "N1", UserId: "U1", IsRead: true, ReadAt: &now},
			{NotificationId: "N2", UserId: "U1", IsRead: true, ReadAt: &now},
		}
		require.NoError(t, NewReadStatusRepository(db).BatchCreate(context.Background(), rows))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("batch mark read", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE `notification_read_status` SET")).
			WillReturnResult(sqlmock.NewResult(0, 3))

		n, err := NewReadStatusRepository(db).BatchMarkRead(context.Background(), "U1", []string{"N1", "N2", "N3"}, now)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty batches skip the database", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		repo := NewReadStatusRepository(db)

		require.NoError(t, repo.BatchCreate(context.Background(), nil))
		n, err := repo.BatchMarkRead(context.Background(), "U1", nil, now)
		require.NoError(t, err)
		assert.Zero(t, n)
		list, err := repo.ListByNotificationIDs(context.Background(), "U1", nil)
		require.NoError(t, err)
		assert.Empty(t, list)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReadStatusRepository_ListByNotificationIDs(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `notification_read_status` WHERE user_id = ? AND notification_id IN (?,?)")).
		WithArgs("U1", "N1", "N2").
		WillReturnRows(sqlmock.NewRows(readStatusColumns).
			AddRow(1, "N1", "U1", true, now, now, now).
			AddRow(2, "N2", "U1", false, nil, now, now))

	list, err := NewReadStatusRepository(db).ListByNotificationIDs(context.Background(), "U1", []string{"N1", "N2"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].IsRead)
	assert.False(t, list[1].IsRead)
	assert.Nil(t, list[1].ReadAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepository(t *testing.T) {
	t.Parallel()
	now := time.Now()

	t.Run("create", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `notification`")).
			WillReturnResult(sqlmock.NewResult(3, 1))

		n := &entity.Notification{Uuid: "N1", WorkspaceId: "W1", Action: "created", UserId: "U1", CreatedAt: now}
		require.NoError(t, NewNotificationRepository(db).Create(context.Background(), n))
		assert.Equal(t, int64(3), n.Id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list by workspace", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		cols := []string{"id", "uuid", "workspace_id", "lead_id", "action", "user_id", "related_user_id", "details", "created_at"}
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `notification` WHERE workspace_id = ? ORDER BY created_at DESC,id DESC")).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(2, "N2", "W1", "L2", "assigned", "U1", "U2", []byte(`{"to":"U2"}`), now).
				AddRow(1, "N1", "W1", "L1", "created", "U1", nil, []byte(`{}`), now.Add(-time.Minute)))

		list, err := NewNotificationRepository(db).ListByWorkspace(context.Background(), "W1", 0, 50)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "N2", list[0].Uuid)
		require.NotNil(t, list[0].RelatedUserId)
		assert.Equal(t, "U2", *list[0].RelatedUserId)
		assert.Nil(t, list[1].RelatedUserId)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get by uuid", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		cols := []string{"id", "uuid", "workspace_id", "lead_id", "action", "user_id", "details", "created_at"}
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `notification` WHERE uuid = ?")).
			WithArgs("N5", 1).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(5, "N5", "W1", "L5", "updated", "U1", []byte(`{}`), now))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `notification` WHERE uuid = ?")).
			WithArgs("N6", 1).
			WillReturnRows(sqlmock.NewRows(cols))

		repo := NewNotificationRepository(db)
		n, err := repo.GetByUUID(context.Background(), "N5")
		require.NoError(t, err)
		assert.Equal(t, "L5", n.LeadId)
		_, err = repo.GetByUUID(context.Background(), "N6")
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("count", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `notification` WHERE workspace_id = ?")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

		total, err := NewNotificationRepository(db).CountByWorkspace(context.Background(), "W1")
		require.NoError(t, err)
		assert.Equal(t, int64(42), total)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
