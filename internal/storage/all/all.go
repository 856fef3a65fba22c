// Package all links every storage backend into the binary.
package all

import (
	_ "tabletojson/internal/storage/mssql"
	_ "tabletojson/internal/storage/postgres"
	_ "tabletojson/internal/storage/sqlite"
)
