// Package migrations carries the embedded goose migrations: SQL files for
// schema changes and Go migrations for data rewrites.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
