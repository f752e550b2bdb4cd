// Package migrations holds the sqlite schema, embedded into the binary
package migrations

import "embed"

// FS contains the numbered .sql migration files
//
//go:embed *.sql
var FS embed.FS
