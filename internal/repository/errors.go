package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// invalidTextRepresentation is raised when an id is not a well-formed uuid.
const invalidTextRepresentation = "22P02"

// isMissingRow reports whether a single-row lookup failed because the row cannot exist. A
// malformed id can never match a uuid column, so it is treated like an absent row.
func isMissingRow(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}
