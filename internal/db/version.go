package db

import (
	"strings"

	"github.com/neonviz/neon/internal/db/migrations"
)

// SchemaVersion returns the number of embedded migrations. The readiness
// endpoint reports it so operators can spot a server running an old schema.
func SchemaVersion() int {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return 0
	}

	count := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			count++
		}
	}

	return count
}
