// Package migrations embeds the history store schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

// Source is the embedded schema, ready for database.DB.Migrate.
var Source = database.MigrationSource{FS: files, Dir: "."}
