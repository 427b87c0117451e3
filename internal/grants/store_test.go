package grants

import (
	"context"
	"errors"
	"testing"

	apperrors "whitelist-intake/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, "luckperms_")
	require.NoError(t, err)
	return store, mock
}

func TestNewStore_RejectsUnsafePrefix(t *testing.T) {
	_, err := NewStore(nil, "lp; DROP TABLE x; --")
	assert.Error(t, err)

	_, err = NewStore(nil, "")
	assert.NoError(t, err)
}

func TestLookupIdentity(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(`SELECT uuid FROM luckperms_players WHERE username = \$1`).
		WithArgs("playerx").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("8667ba71-b85a-4004-af54-457a9734eed7"))
	mock.ExpectQuery(`SELECT uuid FROM luckperms_players`).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}))
	mock.ExpectQuery(`SELECT uuid FROM luckperms_players`).
		WithArgs("broken").
		WillReturnError(errors.New("too many connections"))

	id, err := store.LookupIdentity(context.Background(), "playerx")
	require.NoError(t, err)
	assert.Equal(t, "8667ba71-b85a-4004-af54-457a9734eed7", id)

	_, err = store.LookupIdentity(context.Background(), "nobody")
	assert.True(t, errors.Is(err, apperrors.ErrIdentityNotFound))

	_, err = store.LookupIdentity(context.Background(), "broken")
	assert.True(t, errors.Is(err, apperrors.ErrDatabaseQueryFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertGrant(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(`INSERT INTO luckperms_user_permissions`).
		WithArgs("uuid-1", "group.player", "global").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO luckperms_user_permissions`).
		WithArgs("uuid-1", "group.player", "global").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec(`INSERT INTO luckperms_user_permissions`).
		WithArgs("uuid-2", "group.guest", "global").
		WillReturnError(&pq.Error{Code: "42P01", Message: "relation does not exist"})

	res, err := store.InsertGrant(context.Background(), "uuid-1", GroupPermission("player"), "global")
	require.NoError(t, err)
	assert.Equal(t, Inserted, res)

	res, err = store.InsertGrant(context.Background(), "uuid-1", GroupPermission("player"), "global")
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, res)
	assert.Equal(t, "already_exists", res.String())

	_, err = store.InsertGrant(context.Background(), "uuid-2", GroupPermission("guest"), "global")
	assert.True(t, errors.Is(err, apperrors.ErrGrantInsertFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
