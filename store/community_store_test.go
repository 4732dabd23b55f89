package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newCommunityTestStore(t *testing.T) (*CommunityStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewCommunityStore(gdb), mock
}

func TestIsMember(t *testing.T) {
	s, mock := newCommunityTestStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "community_members" WHERE community_id = \$1 AND user_id = \$2`).
		WithArgs(uint(9), uint(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	member, err := s.IsMember(context.Background(), 9, 1)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestAddMemberIsIdempotent(t *testing.T) {
	s, mock := newCommunityTestStore(t)

	// Already a member: no insert issued.
	mock.ExpectQuery(`SELECT count\(\*\) FROM "community_members"`).
		WithArgs(uint(9), uint(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	require.NoError(t, s.AddMember(context.Background(), 9, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMemberInsertsNewMember(t *testing.T) {
	s, mock := newCommunityTestStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "community_members"`).
		WithArgs(uint(9), uint(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO community_members`).
		WithArgs(uint(9), uint(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.AddMember(context.Background(), 9, 1))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCommunityHistoryExcludesDeleted(t *testing.T) {
	s, mock := newCommunityTestStore(t)

	rows := sqlmock.NewRows([]string{"id", "community_id", "sender_id", "content", "is_deleted"}).
		AddRow(3, 9, 1, "latest", false).
		AddRow(1, 9, 2, "oldest", false)
	mock.ExpectQuery(`SELECT (.+) FROM "community_messages" WHERE community_id = \$1 AND is_deleted = \$2`).
		WithArgs(uint(9), false, 50).
		WillReturnRows(rows)

	history, err := s.CommunityHistory(context.Background(), 9, 50)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "latest", history[0].Content)
}

func TestDeleteCommunityRemovesMessagesAndMembers(t *testing.T) {
	s, mock := newCommunityTestStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "community_messages"`).
		WithArgs(uint(9)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(`DELETE FROM community_members`).
		WithArgs(uint(9)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "communities"`).
		WithArgs(uint(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteCommunity(context.Background(), 9))
	assert.NoError(t, mock.ExpectationsWereMet())
}
