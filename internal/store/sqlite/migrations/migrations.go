// Package migrations embeds the SQLite schema files applied at open.
package migrations

import "embed"

// FS holds every .sql migration, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
