// Package migrations embeds the service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

const Table = "sales_schema_migrations"
