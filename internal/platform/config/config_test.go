package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "FINISH_POLICY", "VALIDATOR_TIMEOUT_MS"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	Load()
	require.NotNil(t, AppConfig)

	assert.Equal(t, DriverPostgres, AppConfig.DBDriver)
	assert.Equal(t, []string{"all_submitted", "contest_ended"}, AppConfig.FinishPolicy)
	assert.Equal(t, 3*time.Second, AppConfig.ValidatorTimeout)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", DriverSQLite)
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("VALIDATOR_TIMEOUT_MS", "250")
	t.Setenv("FINISH_POLICY", "manual, contest_ended ,")
	t.Setenv("DB_HOST", "db")

	Load()

	assert.Equal(t, DriverSQLite, AppConfig.DBDriver)
	assert.Equal(t, "/tmp/x.db", AppConfig.SQLitePath)
	assert.Equal(t, 250*time.Millisecond, AppConfig.ValidatorTimeout)
	assert.Equal(t, []string{"manual", "contest_ended"}, AppConfig.FinishPolicy)
	assert.Contains(t, AppConfig.DBConnStr, "host=db")
	require.NoError(t, AppConfig.Validate())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DBDriver:         DriverPostgres,
			ValidatorMode:    ValidatorModeLocal,
			ValidatorTimeout: time.Second,
			FinishPolicy:     []string{"manual"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid"},
		{name: "bad driver", mutate: func(c *Config) { c.DBDriver = "mysql" }, wantErr: "DB_DRIVER"},
		{name: "bad validator mode", mutate: func(c *Config) { c.ValidatorMode = "magic" }, wantErr: "VALIDATOR_MODE"},
		{name: "remote without url", mutate: func(c *Config) { c.ValidatorMode = ValidatorModeRemote }, wantErr: "VALIDATOR_URL"},
		{name: "zero timeout", mutate: func(c *Config) { c.ValidatorTimeout = 0 }, wantErr: "VALIDATOR_TIMEOUT_MS"},
		{name: "no policy", mutate: func(c *Config) { c.FinishPolicy = nil }, wantErr: "FINISH_POLICY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
