// Package repository holds the MySQL-backed stores. Each store maps its rows
// to internal/model types and reports failures with the sentinels below so
// services can classify them without knowing the driver.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when no row matches the lookup.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key.
var ErrDuplicate = errors.New("duplicate key")

// ErrVersionConflict is returned when an optimistic update finds that the
// row changed since it was read.
var ErrVersionConflict = errors.New("version conflict")

// ErrConflict is returned when a delete cannot proceed because other rows
// still reference the target (e.g. a table that has orders).
var ErrConflict = errors.New("conflict")

const (
	mysqlDuplicateEntry  = 1062
	mysqlRowIsReferenced = 1451
	mysqlNoReferencedRow = 1452
)

// ErrMissingReference is returned when a foreign key points at a row that
// does not exist.
var ErrMissingReference = errors.New("referenced row does not exist")

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDuplicateEntry:
			return ErrDuplicate
		case mysqlRowIsReferenced:
			return ErrConflict
		case mysqlNoReferencedRow:
			return ErrMissingReference
		}
	}
	return err
}
