package errx

import (
	"database/sql"
	"errors"
	"net/http"
)

// WrapSQLite maps data store errors to AppError.
func WrapSQLite(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return New(err, http.StatusNotFound, StoreNotFoundMessage)
	}

	return New(err, http.StatusInternalServerError, StoreErrorMessage)
}
