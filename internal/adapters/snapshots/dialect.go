package snapshots

import (
	"fmt"
	"strings"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// dialect captures what differs between the supported SQL backends.
type dialect struct {
	driver      string
	createTable string
	placeholder func(n int) string
}

var sqliteDialect = dialect{
	driver: DriverSQLite,
	createTable: `CREATE TABLE "assets" (
		"pkey"           INTEGER PRIMARY KEY AUTOINCREMENT,
		"id"             INTEGER NOT NULL,
		"name"           TEXT NOT NULL,
		"repoName"       TEXT NOT NULL,
		"downloadCount"  INTEGER NOT NULL,
		"releaseId"      TEXT NOT NULL,
		"releaseTagName" TEXT NOT NULL,
		"date"           DATETIME NOT NULL
	)`,
	placeholder: func(int) string { return "?" },
}

var postgresDialect = dialect{
	driver: DriverPostgres,
	createTable: `CREATE TABLE "assets" (
		"pkey"           BIGSERIAL PRIMARY KEY,
		"id"             BIGINT NOT NULL,
		"name"           TEXT NOT NULL,
		"repoName"       TEXT NOT NULL,
		"downloadCount"  BIGINT NOT NULL,
		"releaseId"      TEXT NOT NULL,
		"releaseTagName" TEXT NOT NULL,
		"date"           TIMESTAMPTZ NOT NULL
	)`,
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

const (
	probeQuery  = `SELECT 1 FROM "assets" LIMIT 1`
	createIndex = `CREATE INDEX IF NOT EXISTS "idx_assets_date" ON "assets" ("date")`
	selectAll   = `SELECT "pkey", "id", "name", "repoName", "downloadCount", "releaseId", "releaseTagName", "date"
		FROM "assets" ORDER BY "date" ASC, "pkey" ASC`
)

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case DriverSQLite:
		return sqliteDialect, nil
	case DriverPostgres:
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported store driver %q", driver)
	}
}

func (d dialect) insertQuery() string {
	cols := []string{`"id"`, `"name"`, `"repoName"`, `"downloadCount"`, `"releaseId"`, `"releaseTagName"`, `"date"`}
	marks := make([]string, len(cols))
	for i := range cols {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf(`INSERT INTO "assets" (%s) VALUES (%s)`, strings.Join(cols, ", "), strings.Join(marks, ", "))
}
