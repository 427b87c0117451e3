// Package grants is the client for the external permission database: it
// resolves player nicknames to identities and inserts group grants.
package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"whitelist-intake/internal/common/database"
	apperrors "whitelist-intake/internal/common/errors"
)

// InsertResult says whether InsertGrant created a row.
type InsertResult int

const (
	Inserted InsertResult = iota
	AlreadyExists
)

func (r InsertResult) String() string {
	if r == AlreadyExists {
		return "already_exists"
	}
	return "inserted"
}

var prefixPattern = regexp.MustCompile(`^[a-z0-9_]*$`)

type Store struct {
	db        *sql.DB
	lookupSQL string
	insertSQL string
}

// NewStore builds a client over the tables "<prefix>players" and
// "<prefix>user_permissions".
func NewStore(db *sql.DB, tablePrefix string) (*Store, error) {
	if !prefixPattern.MatchString(tablePrefix) {
		return nil, fmt.Errorf("invalid table prefix %q", tablePrefix)
	}
	return &Store{
		db:        db,
		lookupSQL: fmt.Sprintf(`SELECT uuid FROM %splayers WHERE username = $1 LIMIT 1`, tablePrefix),
		insertSQL: fmt.Sprintf(`INSERT INTO %suser_permissions (uuid, permission, value, server, world, expiry, contexts)
			VALUES ($1, $2, true, $3, $3, 0, '{}')`, tablePrefix),
	}, nil
}

// LookupIdentity returns the identity registered for an already normalized
// nickname.
func (s *Store) LookupIdentity(ctx context.Context, nickname string) (string, error) {
	var identity string
	err := s.db.QueryRowContext(ctx, s.lookupSQL, nickname).Scan(&identity)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NewIdentityNotFoundError(nickname)
	}
	if err != nil {
		return "", apperrors.NewDatabaseQueryFailedError("lookup identity", err)
	}
	return identity, nil
}

// InsertGrant inserts one permission for identity in scope. A unique
// constraint hit means the grant is already present and is not an error.
func (s *Store) InsertGrant(ctx context.Context, identity, permission, scope string) (InsertResult, error) {
	_, err := s.db.ExecContext(ctx, s.insertSQL, identity, permission, scope)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, apperrors.NewGrantInsertFailedError(identity, err)
	}
	return Inserted, nil
}

// GroupPermission is the permission string for membership in group.
func GroupPermission(group string) string {
	return "group." + group
}
