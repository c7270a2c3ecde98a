package migrations

import "embed"

// PostgresFS embeds the PostgreSQL migrations (pool registry, run
// summaries, fold scores).
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse migrations (event and snapshot
// series).
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
