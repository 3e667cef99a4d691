package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// openPragmas are applied to every new connection. Autosave and commit both
// write while the API reads, so WAL plus a busy timeout keeps short write
// bursts from surfacing as SQLITE_BUSY errors.
var openPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// OpenSQLite opens (or creates) the draft database at the given path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range openPragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}
