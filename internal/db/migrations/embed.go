// Package migrations embeds the SQL schema for the neon datastore.
package migrations

import "embed"

// FS contains the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
