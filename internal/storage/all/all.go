// Package all registers every storage backend. Blank-import it from
// binaries that select a backend from configuration.
package all

import (
	_ "github.com/rampotla586/ut-de-framework/internal/storage/mssql"
	_ "github.com/rampotla586/ut-de-framework/internal/storage/postgres"
	_ "github.com/rampotla586/ut-de-framework/internal/storage/snowflake"
	_ "github.com/rampotla586/ut-de-framework/internal/storage/sqlite"
)
