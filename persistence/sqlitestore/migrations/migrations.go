// Package migrations contains the embedded SQLite schema migrations.
package migrations

import "embed"

// FS contains the *.sql migration files, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
