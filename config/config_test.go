package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Port:           "8080",
		DBDriver:       "sqlite",
		DBDSN:          "tables.db",
		RateLimitRPS:   50,
		RateLimitBurst: 100,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "ok", mutate: func(*Config) {}},
		{name: "mysql upper case", mutate: func(c *Config) { c.DBDriver = "MySQL" }},
		{name: "postgres", mutate: func(c *Config) { c.DBDriver = "postgres" }},
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "oracle" }, wantErr: "unsupported DB_DRIVER"},
		{name: "empty dsn", mutate: func(c *Config) { c.DBDSN = "" }, wantErr: "DB_DSN is required"},
		{name: "zero rps", mutate: func(c *Config) { c.RateLimitRPS = 0 }, wantErr: "must be positive"},
		{name: "zero burst", mutate: func(c *Config) { c.RateLimitBurst = 0 }, wantErr: "must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	// no .env in the package directory
	c, foundEnv, err := Load()
	require.NoError(t, err)
	assert.False(t, foundEnv)
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "tables.db", c.DBDSN)
	assert.Equal(t, float64(50), c.RateLimitRPS)
	// one full bulk create fits in the burst
	assert.Equal(t, 500, c.RateLimitBurst)
	assert.Equal(t, 8, c.BulkConcurrency)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DSN", "file:env?mode=memory")
	t.Setenv("RATE_LIMIT_BURST", "5")

	c, _, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", c.Port)
	assert.Equal(t, "file:env?mode=memory", c.DBDSN)
	assert.Equal(t, 5, c.RateLimitBurst)
}

func TestLoadRejectsBadEnvironment(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "fast")

	_, _, err := Load()
	assert.ErrorContains(t, err, "process env")
}

func TestInitDBSqlite(t *testing.T) {
	c := validConfig()
	c.DBDSN = "file:initdb?mode=memory&cache=shared"

	db, err := InitDB(c)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.NoError(t, sqlDB.Ping())
}
