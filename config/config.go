package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all settings read from environment variables.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"8000"`

	// Static credentials used as a fallback when no DB user matches.
	AdminLogin    string `envconfig:"ADMIN_LOGIN" default:"admin"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"admin123"`
	UserLogin     string `envconfig:"USER_LOGIN" default:"user"`
	UserPassword  string `envconfig:"USER_PASSWORD" default:"user123"`

	JWTSecret    string `envconfig:"JWT_SECRET" required:"true"`
	PasswordSalt string `envconfig:"PASSWORD_SALT" default:"static_salt_v1"`

	PageSizeDefault int `envconfig:"PAGE_SIZE_DEFAULT" default:"20"`
	PageSizeMax     int `envconfig:"PAGE_SIZE_MAX" default:"100"`

	// Nightly job that links article publications to registered users.
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 2 * * *"`

	S3Key      string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3Secret   string `envconfig:"S3_SECRET_KEY" required:"true"`
	S3Endpoint string `envconfig:"S3_ENDPOINT" required:"true"`
	S3Region   string `envconfig:"S3_REGION" required:"true"`
	S3Bucket   string `envconfig:"S3_BUCKET" required:"true"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
