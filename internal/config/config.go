package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env string `validate:"required,oneof=dev prod"`
	DB  struct {
		URL             string
		Host            string `validate:"required_without=URL"`
		Port            int    `validate:"min=1,max=65535"`
		Name            string `validate:"required_without=URL"`
		User            string `validate:"required_without=URL"`
		Password        string
		SSLMode         string `validate:"required"`
		ConnectTimeout  int    `validate:"min=0"`
		ApplicationName string
	}
	Retry struct {
		MaxAttempts  int           `validate:"min=1"`
		InitialDelay time.Duration `validate:"gt=0"`
	}
	MigrationsPath string
	Log            struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
	}
}

var validate = validator.New()

// Load reads configuration from environment variables and optional .env file.
// Defaults point at a sibling "database" container with the stock postgres
// user and database.
func Load() (Config, error) {
	_ = godotenv.Load()

	var (
		c   Config
		err error
	)
	c.Env = getenv("ENV", "prod")

	c.DB.URL = os.Getenv("DATABASE_URL")
	c.DB.Host = getenv("DB_HOST", "database")
	c.DB.Name = getenv("DB_NAME", "postgres")
	c.DB.User = getenv("DB_USER", "postgres")
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.SSLMode = getenv("DB_SSLMODE", "disable")
	c.DB.ApplicationName = getenv("DB_APPLICATION_NAME", "pgwait")
	if c.DB.Port, err = getint("DB_PORT", 5432); err != nil {
		return Config{}, err
	}
	if c.DB.ConnectTimeout, err = getint("DB_CONNECT_TIMEOUT", 5); err != nil {
		return Config{}, err
	}

	if c.Retry.MaxAttempts, err = getint("RETRY_MAX_ATTEMPTS", 8); err != nil {
		return Config{}, err
	}
	if c.Retry.InitialDelay, err = getduration("RETRY_INITIAL_DELAY", 500*time.Millisecond); err != nil {
		return Config{}, err
	}

	c.MigrationsPath = os.Getenv("MIGRATIONS_PATH")

	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = os.Getenv("LOG_FILE")

	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", k, v)
	}
	return n, nil
}

// getduration accepts Go durations ("500ms", "2s") and plain seconds ("0.5").
func getduration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", k, v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
