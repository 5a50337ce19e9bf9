package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned by lookups that found nothing, translated from
// pgx.ErrNoRows so callers outside this package never import pgx directly.
var ErrNotFound = errors.New("repository: not found")

func translateNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// nilIfNoRows is used by "does this exist" probes that report absence via
// a boolean rather than an error.
func nilIfNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}
