package dbconfig

import (
	"net"
	"net/url"
	"os"
	"strconv"
)

// Config holds Postgres connection settings.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	ConnectTimeout  int // seconds, 0 means the driver default
	ApplicationName string
}

// NewConfigFromEnv reads DB_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	return Config{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "postgres"),
		Password:        getEnv("DB_PASSWORD", "postgres"),
		Database:        getEnv("DB_NAME", "leaguedraft"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		ConnectTimeout:  getEnvAsInt("DB_CONNECT_TIMEOUT", 5),
		ApplicationName: getEnv("DB_APPLICATION_NAME", "leaguedraft"),
	}
}

// DSN returns the Postgres connection URL. It is accepted by both pgx and
// lib/pq.
func (c Config) DSN() string {
	return c.url(url.UserPassword(c.User, c.Password)).String()
}

// Redacted is the DSN with the password masked, for logs.
func (c Config) Redacted() string {
	return c.url(url.UserPassword(c.User, "xxxxx")).String()
}

func (c Config) url(user *url.Userinfo) *url.URL {
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(c.ConnectTimeout))
	}
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	return &url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
