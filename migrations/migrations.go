package migrations

import "embed"

// FS holds the postgres schema migrations, applied in version order on startup.
//
//go:embed *.sql
var FS embed.FS
