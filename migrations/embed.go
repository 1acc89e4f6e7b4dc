// Package migrations embeds the SQL schema for the audit trail database.
package migrations

import "embed"

// FS holds the golang-migrate files.
//
//go:embed *.sql
var FS embed.FS
