// Package migrations embeds the SQL schema of the desk's own tables.
package migrations

import "embed"

// Files holds the migrations, applied in file name order.
//
//go:embed *.sql
var Files embed.FS
