// Package migrations embeds the store schema for each supported driver.
package migrations

import "embed"

// Embedded migration files bundled at compile time.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
