package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/taskboard/internal/index"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Board  BoardConfig       `yaml:"board"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Board.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

var (
	fileNameRe = regexp.MustCompile(`^[^/\\]+\.md$`)
	idPrefixRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
)

// BoardConfig locates the ledger files and sets the id format.
// ActiveFile and ArchiveFile are plain file names inside Dir.
type BoardConfig struct {
	Dir         string `yaml:"dir"`
	ActiveFile  string `yaml:"active_file"`
	ArchiveFile string `yaml:"archive_file"`
	IDPrefix    string `yaml:"id_prefix"`
	IDWidth     int    `yaml:"id_width"`
}

// Validate validates the board configuration.
func (c *BoardConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.ActiveFile, validation.Required, validation.Match(fileNameRe).Error("must be a plain .md file name")),
		validation.Field(&c.ArchiveFile, validation.Required, validation.Match(fileNameRe).Error("must be a plain .md file name")),
		validation.Field(&c.IDPrefix, validation.Required, validation.Match(idPrefixRe)),
		validation.Field(&c.IDWidth, validation.Required, validation.Min(1), validation.Max(9)),
	); err != nil {
		return err
	}
	if c.ActiveFile == c.ArchiveFile {
		return fmt.Errorf("board: active_file and archive_file must differ")
	}
	return nil
}

// Files returns the ledger file names.
func (c *BoardConfig) Files() index.Files {
	return index.Files{Active: c.ActiveFile, Archive: c.ArchiveFile}
}

// AgentFile resolves an agent instruction file relative to the board directory
// unless it is absolute.
func (c *BoardConfig) AgentFile(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Dir, name)
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

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Board: BoardConfig{
			Dir:         ".",
			ActiveFile:  "kanban.md",
			ArchiveFile: "archive.md",
			IDPrefix:    "TASK",
			IDWidth:     3,
		},
		SQLite: SQLiteConfig{
			Path: "./.taskboard.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
