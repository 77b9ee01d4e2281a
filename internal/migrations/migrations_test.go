package migrations

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedFiles(t *testing.T) {
	migrations, err := Load(files)
	require.NoError(t, err)
	require.Len(t, migrations, 5)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotEmpty(t, m.UpSQL, "migration %d has no up SQL", m.Version)
		assert.NotEmpty(t, m.DownSQL, "migration %d has no down SQL", m.Version)
	}
	assert.Equal(t, "enrollments", migrations[2].Name)
	assert.Contains(t, migrations[2].UpSQL, "sequence_enrollments_unique_idx")
}

func TestLoad_IgnoresUnrelatedAndRequiresUp(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/README.md":         {Data: []byte("notes")},
		"sql/002_b.up.sql":      {Data: []byte("CREATE TABLE b ()")},
		"sql/001_a.up.sql":      {Data: []byte("CREATE TABLE a ()")},
		"sql/001_a.down.sql":    {Data: []byte("DROP TABLE a")},
		"sql/not_a_version.sql": {Data: []byte("SELECT 1")},
	}

	migrations, err := Load(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, "a", migrations[0].Name)
	assert.Equal(t, "b", migrations[1].Name)
	assert.Empty(t, migrations[1].DownSQL)

	_, err = Load(fstest.MapFS{"sql/003_c.down.sql": {Data: []byte("DROP TABLE c")}})
	assert.Error(t, err)
}

func TestRunner_UpAppliesOnlyPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	runner, err := NewRunner(db)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).
			AddRow(1, time.Now()).
			AddRow(2, time.Now()))

	for _, tc := range []struct {
		version int
		name    string
		table   string
	}{
		{3, "enrollments", "sequence_enrollments"},
		{4, "outbound_emails", "outbound_emails"},
		{5, "activity_log", "activity_log"},
	} {
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS " + tc.table).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").
			WithArgs(tc.version, tc.name).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
	}

	done, err := runner.Up(context.Background())
	require.NoError(t, err)
	require.Len(t, done, 3)
	assert.Equal(t, 3, done[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_UpStopsOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	runner, err := NewRunner(db)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS workspaces").
		WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	done, err := runner.Up(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "001_workspaces_contacts")
	assert.Empty(t, done)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_DownRollsBackLatest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	runner, err := NewRunner(db)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}).
			AddRow(1, time.Now()).
			AddRow(2, time.Now()))
	mock.ExpectBegin()
	mock.ExpectExec("DROP TABLE IF EXISTS sequence_steps").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM schema_migrations").
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m, err := runner.Down(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 2, m.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunner_DownWithNothingApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	runner, err := NewRunner(db)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT version, applied_at FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version", "applied_at"}))

	m, err := runner.Down(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m)
}
