package configs

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	// BUSINESS_TIMEZONE must resolve in images without /usr/share/zoneinfo
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"credit-engine/internal/repository/sqldb"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Email     EmailConfig
	Engine    EngineConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver     string // postgres or sqlite3
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

// DSN returns the data source name for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == sqldb.DriverSQLite {
		return fmt.Sprintf("file:%s?_busy_timeout=5000", d.SQLitePath)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// EmailConfig holds email configuration. Reminders are disabled when
// SMTPHost is empty.
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
}

// EngineConfig holds ledger engine configuration
type EngineConfig struct {
	DefaultCalendar string
	RulesFile       string
	Currency        string
	// CalendarURL is a format string taking the year, pointing at a
	// production calendar XML document.
	CalendarURL string
	// Timezone decides which calendar day a payment timestamp falls on.
	Timezone string
}

// Location returns the business time zone, UTC when none is set.
func (e EngineConfig) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("BUSINESS_TIMEZONE: %w", err)
	}
	return loc, nil
}

// SchedulerConfig holds the periodic job configuration
type SchedulerConfig struct {
	Enabled            bool
	DelinquencyCron    string // with seconds field
	ReminderThresholds []int  // late days that trigger a reminder
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // json or text
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("SERVER_PORT: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("DB_PORT: %w", err)
	}

	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}

	schedulerEnabled, err := strconv.ParseBool(getEnv("SCHEDULER_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("SCHEDULER_ENABLED: %w", err)
	}

	thresholds, err := parseInts(getEnv("REMINDER_THRESHOLDS", "1,7,30"))
	if err != nil {
		return nil, fmt.Errorf("REMINDER_THRESHOLDS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: port,
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", sqldb.DriverPostgres),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       dbPort,
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", "postgres"),
			DBName:     getEnv("DB_NAME", "credit_engine"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "data/credit_engine.db"),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     smtpPort,
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SenderEmail:  getEnv("SENDER_EMAIL", "no-reply@credit-engine.local"),
		},
		Engine: EngineConfig{
			DefaultCalendar: getEnv("DEFAULT_CALENDAR", "default"),
			RulesFile:       getEnv("RULES_FILE", ""),
			Currency:        getEnv("CURRENCY", "RUB"),
			CalendarURL:     getEnv("CALENDAR_URL", "https://xmlcalendar.ru/data/ru/%d/calendar.xml"),
			Timezone:        getEnv("BUSINESS_TIMEZONE", "UTC"),
		},
		Scheduler: SchedulerConfig{
			Enabled:            schedulerEnabled,
			DelinquencyCron:    getEnv("DELINQUENCY_CRON", "0 0 7 * * *"),
			ReminderThresholds: thresholds,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case sqldb.DriverPostgres, sqldb.DriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", sqldb.DriverPostgres, sqldb.DriverSQLite, c.Database.Driver)
	}
	if c.Engine.DefaultCalendar == "" {
		return fmt.Errorf("DEFAULT_CALENDAR is required")
	}
	if _, err := c.Engine.Location(); err != nil {
		return err
	}
	for _, t := range c.Scheduler.ReminderThresholds {
		if t <= 0 {
			return fmt.Errorf("reminder thresholds must be positive, got %d", t)
		}
	}
	return nil
}

// NewLogger builds the application logger from the log configuration.
func NewLogger(cfg LogConfig, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)

	switch strings.ToLower(cfg.Format) {
	case "", "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)
	return log, nil
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
