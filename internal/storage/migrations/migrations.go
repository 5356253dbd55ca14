// Package migrations embeds the knowledge store schema.
package migrations

import "embed"

// FS holds the ordered SQL migration files
//
//go:embed *.sql
var FS embed.FS
