package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	values, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, "library.json", values.DBFileName)
	assert.Equal(t, "", values.DatabaseDSN)
	assert.Equal(t, "info", values.LogLevel)
	assert.Equal(t, "migrations", values.MigrationsDir)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FILE_STORAGE_PATH", "other.json")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_DSN", "postgres://localhost/library")

	values, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, "other.json", values.DBFileName)
	assert.Equal(t, "debug", values.LogLevel)
	assert.Equal(t, "postgres://localhost/library", values.DatabaseDSN)
}

func TestInvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}
