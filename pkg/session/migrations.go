package session

import "embed"

// migrationsFS embeds the transcript-table migrations applied by
// Bootstrap, mirroring pkg/edgestore's embedded-migrations layout.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS
