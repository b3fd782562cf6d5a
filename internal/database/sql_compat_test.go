package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useDriver(t *testing.T, driver string) {
	t.Helper()
	SetDriver(driver)
	t.Cleanup(func() { SetDriver("") })
}

func TestGetDBDriver_EnvFallback(t *testing.T) {
	SetDriver("")
	t.Setenv("TEST_DB_DRIVER", "")
	t.Setenv("DB_DRIVER", "Postgres")
	assert.Equal(t, "postgres", GetDBDriver())
	assert.True(t, IsPostgreSQL())

	t.Setenv("TEST_DB_DRIVER", "sqlite3")
	assert.True(t, IsSQLite())

	useDriver(t, "mariadb")
	assert.True(t, IsMySQL(), "pinned driver wins over env")
}

func TestConvertPlaceholders(t *testing.T) {
	query := "SELECT document FROM inspections WHERE zone = ? AND status = ? AND street ILIKE ?"

	tests := []struct {
		driver string
		want   string
	}{
		{"postgres", "SELECT document FROM inspections WHERE zone = $1 AND status = $2 AND street ILIKE $3"},
		{"mysql", "SELECT document FROM inspections WHERE zone = ? AND status = ? AND street LIKE ?"},
		{"sqlite", query},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			useDriver(t, tt.driver)
			assert.Equal(t, tt.want, ConvertPlaceholders(query))
		})
	}
}

func TestConvertPlaceholders_RejectsNumbered(t *testing.T) {
	useDriver(t, "postgres")
	assert.Panics(t, func() { ConvertPlaceholders("SELECT 1 WHERE id = $1") })
}

func TestBuildUpsertQuery(t *testing.T) {
	cols := []string{"id", "status", "document"}

	useDriver(t, "postgres")
	assert.Equal(t,
		"INSERT INTO inspections (id, status, document) VALUES (?, ?, ?) ON CONFLICT (id) DO UPDATE SET status = excluded.status, document = excluded.document",
		BuildUpsertQuery("inspections", cols, "id"))

	SetDriver("mysql")
	assert.Equal(t,
		"INSERT INTO `inspections` (`id`, `status`, `document`) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE `status` = VALUES(`status`), `document` = VALUES(`document`)",
		BuildUpsertQuery("inspections", cols, "id"))
}

func TestBuildUpdateQuery(t *testing.T) {
	useDriver(t, "sqlite")
	assert.Equal(t,
		"UPDATE inspections SET status = ?, document = ? WHERE id = ?",
		BuildUpdateQuery("inspections", []string{"status", "document"}, "id = ?"))
}

func TestDriverName(t *testing.T) {
	for in, want := range map[string]string{
		"postgres": "postgres", "PostgreSQL": "postgres",
		"mysql": "mysql", "mariadb": "mysql",
		"sqlite": "sqlite3", "sqlite3": "sqlite3",
	} {
		got, err := DriverName(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := DriverName("oracle")
	assert.Error(t, err)
}

func TestSchemaStatements(t *testing.T) {
	pg, err := SchemaStatements("postgres")
	require.NoError(t, err)
	require.Len(t, pg, 6)
	assert.Contains(t, pg[0], "TIMESTAMPTZ")
	assert.NotContains(t, pg[0], "{{")

	my, err := SchemaStatements("mysql")
	require.NoError(t, err)
	require.Len(t, my, 3)
	assert.Contains(t, my[0], "INDEX idx_inspections_zone_status")
	assert.Contains(t, my[1], "LONGTEXT")

	lite, err := SchemaStatements("sqlite3")
	require.NoError(t, err)
	assert.Contains(t, lite[2], "inspection_number_counter")

	_, err = SchemaStatements("oracle")
	assert.Error(t, err)
}
