package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port    string `envconfig:"PORT" default:"8080"`
	GinMode string `envconfig:"GIN_MODE" default:"debug"`

	// DB
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite, mysql or postgres
	DBDSN    string `envconfig:"DB_DSN" default:"tables.db"`

	// HTTP
	CORSOrigin     string  `envconfig:"CORS_ORIGIN" default:"http://localhost:3000"`
	RateLimitRPS   float64 `envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int     `envconfig:"RATE_LIMIT_BURST" default:"500"`

	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	BulkConcurrency int    `envconfig:"BULK_CONCURRENCY" default:"8"`
}

// Load reads an optional .env file and then the process environment.
// It reports whether a .env file was found.
func Load() (Config, bool, error) {
	foundEnv := true
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, false, fmt.Errorf("load .env: %w", err)
		}
		foundEnv = false
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, foundEnv, fmt.Errorf("process env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, foundEnv, err
	}
	return c, foundEnv, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(c.DBDriver) {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want sqlite, mysql or postgres)", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// InitDB opens the configured database. Driver errors are translated so unique
// violations surface as gorm.ErrDuplicatedKey.
func InitDB(c Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(c.DBDriver) {
	case "mysql":
		dialector = mysql.Open(c.DBDSN)
	case "postgres":
		dialector = postgres.Open(c.DBDSN)
	default:
		dialector = sqlite.Open(c.DBDSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", c.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if driver := strings.ToLower(c.DBDriver); driver == "mysql" || driver == "postgres" {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	} else {
		// sqlite serializes writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
