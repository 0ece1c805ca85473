// Package migrations embeds the schema migrations and seed files so the
// binaries do not depend on a checkout being present at runtime.
package migrations

import "embed"

//go:embed *.sql seeds/*.sql
var FS embed.FS
