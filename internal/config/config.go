// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env         string // APP_ENV, e.g. "dev", "prod"
	Port        string // APP_PORT
	StoreDriver string // STORE_DRIVER: mysql (default) or memory
	DBUser      string // DB_USER
	DBPass      string // DB_PASS (optional)
	DBHost      string // DB_HOST
	DBPort      string // DB_PORT
	DBName      string // DB_NAME
	DBMigrate   bool   // DB_MIGRATE: create missing tables on startup
	JWTSecret   string // JWT_SECRET
	AccessTTL   time.Duration
	BcryptCost  int // BCRYPT_COST, for confirmation code hashes
	PageSize    int // PAGE_SIZE
}

// Load reads configuration values from the environment.  Every missing or
// malformed required variable is reported in the returned error.
func Load() (Config, error) {
	var l loader
	cfg := Config{
		Env:         l.must("APP_ENV"),
		Port:        l.must("APP_PORT"),
		StoreDriver: strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
		DBPass:      os.Getenv("DB_PASS"),
		DBMigrate:   envBool("DB_MIGRATE", true),
		JWTSecret:   l.must("JWT_SECRET"),
		AccessTTL:   time.Duration(l.mustInt("ACCESS_TOKEN_TTL_MIN")) * time.Minute,
		BcryptCost:  envInt("BCRYPT_COST", 10),
		PageSize:    envInt("PAGE_SIZE", 10),
	}
	switch cfg.StoreDriver {
	case StoreMySQL:
		cfg.DBUser = l.must("DB_USER")
		cfg.DBHost = l.must("DB_HOST")
		cfg.DBPort = l.must("DB_PORT")
		cfg.DBName = l.must("DB_NAME")
	case StoreMemory:
	default:
		l.problems = append(l.problems, fmt.Sprintf("STORE_DRIVER: unknown driver %q", cfg.StoreDriver))
	}
	if cfg.AccessTTL <= 0 && len(l.problems) == 0 {
		l.problems = append(l.problems, "ACCESS_TOKEN_TTL_MIN: must be positive")
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 10
	}
	return cfg, l.err()
}

// loader accumulates problems so a misconfigured deployment reports them
// all at once.
type loader struct {
	problems []string
}

// must retrieves a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.problems = append(l.problems, "missing required env var: "+key)
	}
	return v
}

// mustInt is like must but converts the value into an integer.
func (l *loader) mustInt(key string) int {
	s := l.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.problems = append(l.problems, fmt.Sprintf("invalid int for %s: %q", key, s))
	}
	return n
}

func (l *loader) err() error {
	if len(l.problems) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(l.problems, "; "))
}
