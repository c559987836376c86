package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/scanassist/config"
)

type testModel struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:255"`
}

func testConfig(driver, dsn string, autoMigrate bool) config.Config {
	return config.Config{
		Database: config.DatabaseConfig{
			Driver:      driver,
			DSN:         dsn,
			AutoMigrate: autoMigrate,
		},
	}
}

func TestProvideDatabaseSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")

	db, err := ProvideDatabase(testConfig("sqlite", dsn, true), WithModels(&testModel{}), nil)
	require.NoError(t, err)
	require.NotNil(t, db)

	assert.True(t, db.Migrator().HasTable(&testModel{}))
}

func TestProvideDatabaseSkipsMigrationWhenDisabled(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")

	db, err := ProvideDatabase(testConfig("sqlite", dsn, false), WithModels(&testModel{}), nil)
	require.NoError(t, err)

	assert.False(t, db.Migrator().HasTable(&testModel{}))
}

func TestProvideDatabaseUnsupportedDriver(t *testing.T) {
	_, err := ProvideDatabase(testConfig("oracle", "dsn", false), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestWithModels(t *testing.T) {
	opt := WithModels(&testModel{}, &struct{ ID uint }{})
	assert.Len(t, opt.models, 2)
}
