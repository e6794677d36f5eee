package database

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/labeldrop?sslmode=disable",
		MigrateURL("postgres://u:p@db:5432/labeldrop?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/labeldrop", MigrateURL("postgresql://u@db/labeldrop"))
	assert.Equal(t, "pgx5://already", MigrateURL("pgx5://already"))
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

func TestRollbackNeedsSteps(t *testing.T) {
	assert.Error(t, Rollback("postgres://u@db/labeldrop", 0, nil))
}
