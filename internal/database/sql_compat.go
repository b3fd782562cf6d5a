package database

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
)

var (
	driverMu       sync.RWMutex
	driverOverride string

	numberedPlaceholder = regexp.MustCompile(`\$\d+`)
)

// SetDriver pins the active driver. Open calls it; tests may reset it with "".
func SetDriver(driver string) {
	driverMu.Lock()
	driverOverride = strings.ToLower(strings.TrimSpace(driver))
	driverMu.Unlock()
}

// GetDBDriver returns the current database driver.
func GetDBDriver() string {
	driverMu.RLock()
	driver := driverOverride
	driverMu.RUnlock()
	if driver != "" {
		return driver
	}
	// In test mode, prefer TEST_ prefixed environment variables
	driver = os.Getenv("TEST_DB_DRIVER")
	if driver == "" {
		driver = os.Getenv("DB_DRIVER")
	}
	if driver == "" {
		driver = "mysql"
	}
	return strings.ToLower(driver)
}

// IsMySQL returns true if using MySQL/MariaDB.
func IsMySQL() bool {
	driver := GetDBDriver()
	return driver == "mysql" || driver == "mariadb"
}

// IsPostgreSQL returns true if using PostgreSQL.
func IsPostgreSQL() bool {
	driver := GetDBDriver()
	return driver == "postgres" || driver == "postgresql"
}

// IsSQLite returns true if using SQLite.
func IsSQLite() bool {
	driver := GetDBDriver()
	return driver == "sqlite" || driver == "sqlite3"
}

// DriverName maps a configured driver to the database/sql driver name.
func DriverName(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql", "mariadb":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", driver)
}

// ConvertPlaceholders converts SQL placeholders to the format required by the current database.
// This is the ONLY function that should be used for placeholder conversion in the codebase.
//
// IMPORTANT: Only ? placeholders are allowed. Using $N placeholders will panic.
// - For PostgreSQL: ? → $1, $2, ...
// - For MySQL and SQLite: ? passed through as-is
//
// Example:
//
//	query := database.ConvertPlaceholders("SELECT document FROM inspections WHERE id = ?")
//	err := db.GetContext(ctx, &doc, query, id)
func ConvertPlaceholders(query string) string {
	if numberedPlaceholder.MatchString(query) {
		panic(fmt.Sprintf("ConvertPlaceholders: $N placeholders are not allowed. Use ? placeholders instead.\nQuery: %s", query))
	}

	if IsPostgreSQL() && strings.Contains(query, "?") {
		result := strings.Builder{}
		paramNum := 1
		for _, c := range query {
			if c == '?' {
				result.WriteString(fmt.Sprintf("$%d", paramNum))
				paramNum++
			} else {
				result.WriteRune(c)
			}
		}
		query = result.String()
	}

	// MySQL is case-insensitive by default with utf8_general_ci
	if IsMySQL() {
		query = strings.ReplaceAll(query, " ILIKE ", " LIKE ")
		query = strings.ReplaceAll(query, " ilike ", " LIKE ")
	}

	return query
}

// QuoteIdentifier quotes table/column names based on database.
func QuoteIdentifier(name string) string {
	if IsMySQL() {
		return fmt.Sprintf("`%s`", name)
	}
	return name
}

// BuildInsertQuery builds an INSERT query compatible with the current database.
// Returns a query with ? placeholders - caller must use ConvertPlaceholders() before executing.
func BuildInsertQuery(table string, columns []string) string {
	quotedColumns := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quotedColumns[i] = QuoteIdentifier(col)
		placeholders[i] = "?"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdentifier(table),
		strings.Join(quotedColumns, ", "),
		strings.Join(placeholders, ", "))
}

// BuildUpsertQuery builds an INSERT that replaces every non-key column when
// a row with the same key exists.
// Returns a query with ? placeholders - caller must use ConvertPlaceholders() before executing.
func BuildUpsertQuery(table string, columns []string, key string) string {
	query := BuildInsertQuery(table, columns)

	updates := make([]string, 0, len(columns))
	for _, col := range columns {
		if col == key {
			continue
		}
		quoted := QuoteIdentifier(col)
		if IsMySQL() {
			updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", quoted, quoted))
		} else {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", quoted, quoted))
		}
	}

	if IsMySQL() {
		return query + " ON DUPLICATE KEY UPDATE " + strings.Join(updates, ", ")
	}
	return query + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET ", QuoteIdentifier(key)) + strings.Join(updates, ", ")
}

// BuildUpdateQuery builds an UPDATE query compatible with the current database.
// Returns a query with ? placeholders - caller must use ConvertPlaceholders() before executing.
// The whereClause should also use ? placeholders.
func BuildUpdateQuery(table string, setColumns []string, whereClause string) string {
	setClauses := make([]string, len(setColumns))
	for i, col := range setColumns {
		setClauses[i] = fmt.Sprintf("%s = ?", QuoteIdentifier(col))
	}

	query := fmt.Sprintf("UPDATE %s SET %s", QuoteIdentifier(table), strings.Join(setClauses, ", "))
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	return query
}
