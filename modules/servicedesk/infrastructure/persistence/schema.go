package persistence

import (
	"embed"
	"io/fs"
)

//go:embed schema/postgres/*.sql schema/sqlite/*.sql
var schemaFiles embed.FS

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(schemaFiles, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// PostgresMigrations and SQLiteMigrations are goose sources rooted at their
// migration files.
func PostgresMigrations() fs.FS { return mustSub("schema/postgres") }

func SQLiteMigrations() fs.FS { return mustSub("schema/sqlite") }
