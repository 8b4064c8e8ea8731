package database

import "errors"

// Domain errors for database operations.
var (
	// ErrMigrationNotFound is returned when a recorded migration has no file.
	ErrMigrationNotFound = errors.New("database: migration not found in filesystem")

	// ErrNoDownMigration is returned when rolling back a migration without .down.sql.
	ErrNoDownMigration = errors.New("database: migration has no down SQL")
)
