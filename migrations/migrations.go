// Package migrations bundles the schema for the run-history database.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// ForDriver returns the migration directory for a database/sql driver name,
// rooted so that entries are bare file names ("001_initial_schema.sql").
func ForDriver(driver string) (fs.FS, error) {
	var dir string
	switch driver {
	case "sqlite3":
		dir = "sqlite"
	case "postgres":
		dir = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	return fs.Sub(files, dir)
}
