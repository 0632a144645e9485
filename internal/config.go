package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron"

	"github.com/starford/strand/internal/backup"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Content ContentConfig     `yaml:"content"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Git     GitConfig         `yaml:"git"`
	Backups BackupsConfig     `yaml:"backups"`
	CORS    CORSConfig        `yaml:"cors"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Content.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Git.Validate(); err != nil {
		return err
	}
	return c.Backups.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig locates the content tree and the directory that receives
// backups of overwritten and deleted files.
type ContentConfig struct {
	Root      string `yaml:"root"`
	BackupDir string `yaml:"backup_dir"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.BackupDir, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// GitConfig controls commits of content changes.
// RepoDir defaults to the working directory when empty.
type GitConfig struct {
	Enabled bool          `yaml:"enabled"`
	RepoDir string        `yaml:"repo_dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// BackupsConfig holds the retention policy and its schedule.
// MaxAge accepts Go durations plus day and week suffixes ("30d", "2w").
// With neither MaxCount nor MaxAge set, backups are never pruned.
type BackupsConfig struct {
	Schedule string `yaml:"schedule"`
	MaxCount int    `yaml:"max_count"`
	MaxAge   string `yaml:"max_age"`
}

// Validate validates the backups configuration.
func (c *BackupsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Schedule, validation.By(func(any) error {
			if c.Schedule == "" {
				return nil
			}
			_, err := cron.Parse(c.Schedule)
			return err
		})),
		validation.Field(&c.MaxCount, validation.Min(0)),
		validation.Field(&c.MaxAge, validation.By(func(any) error {
			if c.MaxAge == "" {
				return nil
			}
			_, err := backup.ParseDuration(c.MaxAge)
			return err
		})),
	)
}

// Policy returns the configured retention policy, or nil when none is set.
func (c *BackupsConfig) Policy() backup.RetentionPolicy {
	var age time.Duration
	if c.MaxAge != "" {
		age, _ = backup.ParseDuration(c.MaxAge)
	}
	return backup.NewPolicy(c.MaxCount, age)
}

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 3001,
			},
		},
		Content: ContentConfig{
			Root:      "./content",
			BackupDir: "./.backups",
		},
		SQLite: SQLiteConfig{
			Path: "./strand.db",
		},
		Git: GitConfig{
			Enabled: true,
			Timeout: 10 * time.Second,
		},
		Backups: BackupsConfig{
			Schedule: backup.DefaultSchedule,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3001"},
		},
	}
}
