// Package am loads texsense configuration ("am" as in "I am configured
// like this") from TOML files and TEXSENSE_ environment variables, and
// exposes the settings the completion engine reads on every request.
package am

import (
	"fmt"
	"time"

	"github.com/teranos/texsense/complete"
)

// Config represents the texsense configuration
type Config struct {
	Intellisense IntellisenseConfig `mapstructure:"intellisense"`
	Editor       EditorConfig       `mapstructure:"editor"`
	Data         DataConfig         `mapstructure:"data"`
	Workspace    WorkspaceConfig    `mapstructure:"workspace"`
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
}

// IntellisenseConfig configures completion behavior
type IntellisenseConfig struct {
	Citation        CitationConfig        `mapstructure:"citation"`
	SurroundCommand SurroundCommandConfig `mapstructure:"surround_command"`
}

// CitationConfig configures citation key completion
type CitationConfig struct {
	Type              string `mapstructure:"type"`                // "inline" lists keys, "browser" opens a picker
	BrowserIntervalMS int    `mapstructure:"browser_interval_ms"` // minimum gap between picker openings (0 = no limit)
}

// SurroundCommandConfig configures wrapping a selection with a command
type SurroundCommandConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// EditorConfig mirrors editor settings that affect inserted text
type EditorConfig struct {
	AutoClosingBrackets bool `mapstructure:"auto_closing_brackets"`
}

// DataConfig locates the static completion resources
type DataConfig struct {
	Dir string `mapstructure:"dir"` // empty = resources compiled into the binary
}

// WorkspaceConfig locates project files
type WorkspaceConfig struct {
	Root string `mapstructure:"root"` // where .bib files are discovered
}

// ServerConfig configures the language server
type ServerConfig struct {
	Port         int `mapstructure:"port"`          // websocket port
	SettleMS     int `mapstructure:"settle_ms"`     // delay before follow-up side effects
	MaxDocuments int `mapstructure:"max_documents"` // open documents kept in memory (0 = unbounded)
}

// LogConfig configures log output
type LogConfig struct {
	File string `mapstructure:"file"` // rotating log file; required for stdio serving
	JSON bool   `mapstructure:"json"`
}

// Citation modes
const (
	CitationInline  = "inline"
	CitationBrowser = complete.CitationModeBrowser
)

// Server port constants
const (
	DefaultServerPort   = 8797
	DefaultSettleMS     = 10
	DefaultMaxDocuments = 256
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// BrowserInterval returns the citation picker throttle interval.
func (c *Config) BrowserInterval() time.Duration {
	return time.Duration(c.Intellisense.Citation.BrowserIntervalMS) * time.Millisecond
}

// Settle returns the follow-up settle delay.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.Server.SettleMS) * time.Millisecond
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Citation: %s, Surround: %t, AutoClosing: %t, DataDir: %q, Port: %d}",
		c.Intellisense.Citation.Type, c.Intellisense.SurroundCommand.Enabled,
		c.Editor.AutoClosingBrackets, c.Data.Dir, c.Server.Port)
}
