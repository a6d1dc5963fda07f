// Package migrations embeds the registry SQLite schema.
package migrations

import "embed"

// FS contains embedded SQLite migrations for registry storage.
//
//go:embed *.sql
var FS embed.FS
