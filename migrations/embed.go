// Package migrations embeds the SQL schema of the history store.
package migrations

import (
	"embed"

	"github.com/lmaertin/pooldose-go/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
