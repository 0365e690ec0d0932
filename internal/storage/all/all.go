// Package all registers every storage backend with the storage factory.
// The CLI selects one by kind at runtime, so all of them are built in.
package all

import (
	_ "github.com/microsoft/go-mssqldb"

	_ "tabnorm/internal/storage/mssql"
	_ "tabnorm/internal/storage/mysql"
	_ "tabnorm/internal/storage/postgres"
	_ "tabnorm/internal/storage/sqlite"
)
