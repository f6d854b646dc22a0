package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrDatabaseNotFound is returned by Open when the SQLite file is missing
	// and creation was not requested, and by OpenPostgres when the target
	// database does not exist.
	ErrDatabaseNotFound = errors.New("database not found")

	// ErrScanNotFound is returned when a scan id has no record.
	ErrScanNotFound = errors.New("scan not found")
)

// PostgreSQL error codes the store reacts to.
const (
	pqInvalidCatalogName  = "3D000"
	pqForeignKeyViolation = "23503"
)

// translateError maps driver errors onto the package's sentinel errors.
// Errors it does not recognise are returned unchanged.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return errors.Join(ErrScanNotFound, err)
		case pqInvalidCatalogName:
			return errors.Join(ErrDatabaseNotFound, err)
		}
		return err
	}

	// modernc.org/sqlite reports constraint failures in the message.
	if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
		return errors.Join(ErrScanNotFound, err)
	}
	return err
}
