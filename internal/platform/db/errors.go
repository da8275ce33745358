package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/medilink/telehealth/internal/platform/apperr"
)

const (
	pgUniqueViolation = "23505"
	// Malformed literal for the column type, e.g. a non-UUID id.
	pgInvalidTextRepresentation = "22P02"
)

// TranslateError maps driver "no rows" and duplicate-key errors from either
// store onto apperr kinds. An id Postgres cannot parse names no row, so it is
// not found as well. Other errors are returned unchanged.
func TranslateError(err error, entity string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows), errors.Is(err, mongo.ErrNoDocuments), isMalformedValue(err):
		return apperr.NotFound("%s not found", entity)
	case IsDuplicate(err):
		return apperr.Wrap(apperr.KindConflict, err, entity+" already exists")
	}
	return err
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return mongo.IsDuplicateKeyError(err)
}

func isMalformedValue(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation
}

// NullIfEmpty turns an empty string into SQL NULL.
func NullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
