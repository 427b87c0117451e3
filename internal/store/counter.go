// internal/store/counter.go
package store

import (
	"context"
	"database/sql"
	"errors"

	apperrors "whitelist-intake/internal/common/errors"
)

// nextTicketQuery increments and reads the counter in one statement, so
// concurrent allocations serialize on the row lock and never collide.
const nextTicketQuery = `UPDATE counter SET last_number = last_number + 1 WHERE id = 1 RETURNING last_number`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// nextTicket allocates the next ticket number. Run inside the transaction
// that uses the ticket, a rollback returns the number to the counter.
func nextTicket(ctx context.Context, q querier) (int, error) {
	var ticket int
	err := q.QueryRowContext(ctx, nextTicketQuery).Scan(&ticket)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NewDatabaseUpdateFailedError("next ticket", errors.New("counter row missing"))
	}
	if err != nil {
		return 0, apperrors.NewDatabaseUpdateFailedError("next ticket", err)
	}
	return ticket, nil
}
