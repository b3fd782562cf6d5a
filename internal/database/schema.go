package database

import (
	"context"
	"fmt"
	"strings"
)

const (
	inspectionsTable = `CREATE TABLE IF NOT EXISTS inspections (
	id VARCHAR(64) NOT NULL PRIMARY KEY,
	zone VARCHAR(16) NOT NULL,
	status VARCHAR(64) NOT NULL,
	assigned_company VARCHAR(255) NOT NULL DEFAULT '',
	request_date VARCHAR(10) NULL,
	created_at {{timestamp}} NOT NULL,
	change_time {{timestamp}} NOT NULL,
	document {{document}} NOT NULL{{inspections_indexes}}
)`

	historyTable = `CREATE TABLE IF NOT EXISTS inspection_history (
	id VARCHAR(64) NOT NULL PRIMARY KEY,
	inspection_id VARCHAR(64) NOT NULL,
	change_time {{timestamp}} NOT NULL,
	user_id VARCHAR(64) NOT NULL,
	username VARCHAR(255) NOT NULL,
	changes {{document}} NOT NULL{{history_indexes}}
)`

	counterTable = `CREATE TABLE IF NOT EXISTS inspection_number_counter (
	counter_uid VARCHAR(16) NOT NULL PRIMARY KEY,
	counter BIGINT NOT NULL,
	create_time {{timestamp}} NOT NULL
)`
)

// SchemaStatements returns the DDL for the given driver, in execution order.
func SchemaStatements(driver string) ([]string, error) {
	name, err := DriverName(driver)
	if err != nil {
		return nil, err
	}

	var replacer *strings.Replacer
	switch name {
	case "mysql":
		replacer = strings.NewReplacer(
			"{{timestamp}}", "DATETIME(6)",
			"{{document}}", "LONGTEXT",
			"{{inspections_indexes}}", ",\n\tINDEX idx_inspections_zone_status (zone, status),\n\tINDEX idx_inspections_request_date (request_date)",
			"{{history_indexes}}", ",\n\tINDEX idx_inspection_history_inspection (inspection_id, change_time)",
		)
	default:
		timestamp := "TIMESTAMP"
		if name == "postgres" {
			timestamp = "TIMESTAMPTZ"
		}
		replacer = strings.NewReplacer(
			"{{timestamp}}", timestamp,
			"{{document}}", "TEXT",
			"{{inspections_indexes}}", "",
			"{{history_indexes}}", "",
		)
	}

	stmts := []string{
		replacer.Replace(inspectionsTable),
		replacer.Replace(historyTable),
		replacer.Replace(counterTable),
	}
	if name != "mysql" {
		stmts = append(stmts,
			"CREATE INDEX IF NOT EXISTS idx_inspections_zone_status ON inspections (zone, status)",
			"CREATE INDEX IF NOT EXISTS idx_inspections_request_date ON inspections (request_date)",
			"CREATE INDEX IF NOT EXISTS idx_inspection_history_inspection ON inspection_history (inspection_id, change_time)",
		)
	}
	return stmts, nil
}

// Migrate applies the schema for the pool's driver. Every statement is
// idempotent so it is safe to run on each start.
func Migrate(ctx context.Context, pool *Pool) error {
	stmts, err := SchemaStatements(pool.config.Driver)
	if err != nil {
		return err
	}
	for i, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	pool.logger.Info("schema applied")
	return nil
}
