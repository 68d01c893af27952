package v1

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDatabaseConfig(t *testing.T) {
	config := NewDatabaseConfig()
	assert.NotNil(t, config)
	assert.Equal(t, "localhost", config.Host)
	assert.Equal(t, "5432", config.Port)
	assert.Equal(t, "postgres", config.Username)
	assert.Equal(t, "password", config.Password)
	assert.Equal(t, "parpass", config.Database)
	assert.Equal(t, "require", config.SSLMode)
	assert.Equal(t, 25, config.MaxOpenConns)
	assert.Equal(t, 5, config.MaxIdleConns)
	assert.Equal(t, time.Hour, config.ConnMaxLifetime)
	assert.Equal(t, 30*time.Minute, config.ConnMaxIdleTime)
}

func TestNewDatabaseConfig_WithEnvVars(t *testing.T) {
	os.Setenv("PARPASS_DATABASE_HOSTNAME", "test-host")
	os.Setenv("PARPASS_DATABASE_PORT", "5433")
	os.Setenv("PARPASS_DATABASE_USERNAME", "test-user")
	os.Setenv("PARPASS_DATABASE_PASSWORD", "test-pass")
	os.Setenv("PARPASS_DATABASE_NAME", "test-db")
	os.Setenv("DB_SSLMODE", "disable")
	defer func() {
		os.Unsetenv("PARPASS_DATABASE_HOSTNAME")
		os.Unsetenv("PARPASS_DATABASE_PORT")
		os.Unsetenv("PARPASS_DATABASE_USERNAME")
		os.Unsetenv("PARPASS_DATABASE_PASSWORD")
		os.Unsetenv("PARPASS_DATABASE_NAME")
		os.Unsetenv("DB_SSLMODE")
	}()

	config := NewDatabaseConfig()
	assert.Equal(t, "test-host", config.Host)
	assert.Equal(t, "5433", config.Port)
	assert.Equal(t, "test-user", config.Username)
	assert.Equal(t, "test-pass", config.Password)
	assert.Equal(t, "test-db", config.Database)
	assert.Equal(t, "disable", config.SSLMode)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Run("Returns env var when set", func(t *testing.T) {
		key := "TEST_ENV_VAR_12345"
		os.Setenv(key, "test-value")
		defer os.Unsetenv(key)

		result := getEnvOrDefault(key, "default")
		assert.Equal(t, "test-value", result)
	})

	t.Run("Returns default when unset", func(t *testing.T) {
		result := getEnvOrDefault("TEST_ENV_VAR_UNSET_12345", "default")
		assert.Equal(t, "default", result)
	})
}
