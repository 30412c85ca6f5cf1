package repository

import "context"

// Transactor runs fn inside one storage transaction. Repositories called with
// the ctx handed to fn join that transaction; a nested WithinTx joins the
// outer one. The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ClampLimit bounds list sizes.
func ClampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
