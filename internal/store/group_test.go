package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupCreateSeedsCreatorAsAdmin(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "groups"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO "groups"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "group_members"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	g := &Group{Name: "gophers", CreatedBy: "zara"}
	require.NoError(t, store.Create(context.Background(), g))

	assert.NotEmpty(t, g.ID)
	assert.NotEmpty(t, g.InviteCode)
	assert.True(t, g.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupCreateRejectsDuplicateName(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM "groups"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	g := &Group{Name: "gophers", CreatedBy: "zara"}
	assert.ErrorIs(t, store.Create(context.Background(), g), ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupCreateRejectsMissingFields(t *testing.T) {
	db, _ := newMockDB(t)
	store := NewGroupStore(db)
	ctx := context.Background()

	assert.ErrorIs(t, store.Create(ctx, &Group{CreatedBy: "zara"}), ErrInvalid)
	assert.ErrorIs(t, store.Create(ctx, &Group{Name: "gophers"}), ErrInvalid)
}

func TestGroupGetIgnoresDeactivated(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectQuery(`SELECT \* FROM "groups"`).
		WillReturnRows(groupRows())

	_, err := store.Get(context.Background(), "g1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeactivateRequiresAdmin(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err := store.Deactivate(context.Background(), "g1", "amir")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDeactivateSoftDeletes(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`UPDATE "groups" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Deactivate(context.Background(), "g1", "zara"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeInviteCodeRotates(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`UPDATE "groups" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	code, err := store.RevokeInviteCode(context.Background(), "g1", "zara")
	require.NoError(t, err)
	assert.Len(t, code, 12)
}

func TestRevokeInviteCodeRequiresAdmin(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err := store.RevokeInviteCode(context.Background(), "g1", "amir")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestJoinByInviteCodeUnknownCode(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectQuery(`SELECT \* FROM "groups"`).
		WillReturnRows(groupRows())

	_, err := store.JoinByInviteCode(context.Background(), "bogus", "amir")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinByInviteCodeEmptyCode(t *testing.T) {
	db, _ := newMockDB(t)
	store := NewGroupStore(db)

	_, err := store.JoinByInviteCode(context.Background(), "", "amir")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinByInviteCodeAlreadyMember(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectQuery(`SELECT \* FROM "groups"`).
		WillReturnRows(groupRows().AddRow("g1", "gophers", "", "", "zara", true, "abc123def456"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := store.JoinByInviteCode(context.Background(), "abc123def456", "amir")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestJoinByInviteCodeAddsMember(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)

	mock.ExpectQuery(`SELECT \* FROM "groups"`).
		WillReturnRows(groupRows().AddRow("g1", "gophers", "", "", "zara", true, "abc123def456"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO "group_members"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	g, err := store.JoinByInviteCode(context.Background(), "abc123def456", "amir")
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsAdminImpliesMember(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewGroupStore(db)
	ctx := context.Background()

	// Membership lives on the same row as the admin flag, so an admin
	// can never exist without a membership.
	mock.ExpectQuery(`SELECT count\(\*\) FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "group_members"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	admin, err := store.IsAdmin(ctx, "g1", "zara")
	require.NoError(t, err)
	member, err := store.IsMember(ctx, "g1", "zara")
	require.NoError(t, err)
	assert.True(t, admin)
	assert.True(t, member)
}

func groupRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "avatar", "created_by", "is_active", "invite_code",
	})
}
