package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// maybeNoRows turns pgx.ErrNoRows into a nil error so single-row lookups
// report "no match" as a nil result rather than a failure.
func maybeNoRows(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
