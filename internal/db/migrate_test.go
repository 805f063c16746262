package db

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

func TestEmbeddedMigrationsCreateUsers(t *testing.T) {
	versions, err := migrationVersions(migrationFiles)
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_create_users.sql", versions[0])

	script, err := migrationFiles.ReadFile("migrations/" + versions[0])
	require.NoError(t, err)
	assert.Contains(t, string(script), "CREATE TABLE IF NOT EXISTS users")
	assert.Contains(t, string(script), "UNIQUE INDEX")
}

func TestRunMigrationsAppliesPending(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	files := fstest.MapFS{
		"migrations/0002_second.sql": {Data: []byte("SELECT 2")},
		"migrations/0001_first.sql":  {Data: []byte("SELECT 1")},
		"migrations/README.md":       {Data: []byte("ignored")},
	}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs("0001_first.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs("0002_second.sql").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT 2")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).WithArgs("0002_second.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	logs := &bytes.Buffer{}
	require.NoError(t, runMigrations(context.Background(), database, observability.NewLoggerTo(logs), files))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, logs.String(), "0002_second.sql")
	assert.NotContains(t, logs.String(), "0001_first.sql")
}

func TestRunMigrationsRollsBackOnFailure(t *testing.T) {
	database, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer database.Close()

	files := fstest.MapFS{"migrations/0001_broken.sql": {Data: []byte("CREATE BROKEN")}}

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE BROKEN")).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = runMigrations(context.Background(), database, observability.NewLoggerTo(&bytes.Buffer{}), files)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_broken.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}
