package database

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinic-queue-api/pkg/config"
)

func writeMigrations(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

func newMigratorMock(t *testing.T, dir string) (*Migrator, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewMigrator(sqlx.NewDb(db, "postgres"), dir), mock, func() { db.Close() }
}

func TestMigratorLoadSortsAndSkips(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"002_indexes.sql": "CREATE INDEX a ON b (c);",
		"001_tables.sql":  "CREATE TABLE b (c INT);",
		"README.md":       "docs",
		"draft.sql":       "SELECT 1;",
	})
	m := NewMigrator(nil, dir)

	migrations, err := m.Load()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "002_indexes.sql", migrations[1].Name)
}

func TestMigratorUpAppliesPending(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_tables.sql":  "CREATE TABLE b (c INT);",
		"002_indexes.sql": "CREATE INDEX a ON b (c);",
	})
	m, mock, cleanup := newMigratorMock(t, dir)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, applied_at FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX a ON b (c);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs(2, "002_indexes.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	count, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratorStatus(t *testing.T) {
	dir := writeMigrations(t, map[string]string{
		"001_tables.sql":  "CREATE TABLE b (c INT);",
		"002_indexes.sql": "CREATE INDEX a ON b (c);",
	})
	m, mock, cleanup := newMigratorMock(t, dir)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, applied_at FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).AddRow(1, time.Now()))

	statuses, err := m.Status(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Applied)
	assert.NotNil(t, statuses[0].AppliedAt)
	assert.False(t, statuses[1].Applied)
}

func TestRepositoryMigrationFileParses(t *testing.T) {
	m := NewMigrator(nil, filepath.Join("..", "..", "migrations"))
	migrations, err := m.Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Contains(t, migrations[0].SQL, "department_sequences")
	assert.Contains(t, migrations[0].SQL, "patients_single_consultation")
}

func TestDSNMigrate(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "hospital_queue", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=hospital_queue sslmode=disable", dsn)
}
