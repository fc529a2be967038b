package edgestore

import "embed"

// migrationsFS embeds the SQL migrations applied by Bootstrap before an
// SQLStore is used, following the teacher's database/sql bootstrap idiom
// of shipping schema alongside the package that owns it.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS
