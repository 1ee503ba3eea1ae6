package am

import (
	"sort"

	"github.com/spf13/viper"
)

// DefaultConfig is the configuration used when no source sets a value.
func DefaultConfig() Config {
	return Config{
		Intellisense: IntellisenseConfig{
			Citation: CitationConfig{
				Type:              CitationInline,
				BrowserIntervalMS: 500, // one picker per half second
			},
			SurroundCommand: SurroundCommandConfig{Enabled: true},
		},
		// Overridden by the editor via didChangeConfiguration
		Editor:    EditorConfig{AutoClosingBrackets: true},
		Workspace: WorkspaceConfig{Root: "."},
		Server: ServerConfig{
			Port:         DefaultServerPort,
			SettleMS:     DefaultSettleMS,
			MaxDocuments: DefaultMaxDocuments,
		},
	}
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Completion
	v.SetDefault("intellisense.citation.type", d.Intellisense.Citation.Type)
	v.SetDefault("intellisense.citation.browser_interval_ms", d.Intellisense.Citation.BrowserIntervalMS)
	v.SetDefault("intellisense.surround_command.enabled", d.Intellisense.SurroundCommand.Enabled)
	v.SetDefault("editor.auto_closing_brackets", d.Editor.AutoClosingBrackets)

	// Resources
	v.SetDefault("data.dir", d.Data.Dir)
	v.SetDefault("workspace.root", d.Workspace.Root)

	// Server
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.settle_ms", d.Server.SettleMS)
	v.SetDefault("server.max_documents", d.Server.MaxDocuments)

	// Logging
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.json", d.Log.JSON)
}

// viperWithDefaults returns a bare instance holding only the defaults.
func viperWithDefaults() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

// BindEnvVars binds environment variables whose names don't follow the
// TEXSENSE_SECTION_KEY pattern.
func BindEnvVars(v *viper.Viper) {
	v.BindEnv("data.dir", "TEXSENSE_DATA_DIR", "TEXSENSE_DATA")
	v.BindEnv("workspace.root", "TEXSENSE_WORKSPACE_ROOT", "TEXSENSE_ROOT")
}

// Keys lists every configuration key in dot notation, sorted.
func Keys() []string {
	keys := viperWithDefaults().AllKeys()
	sort.Strings(keys)
	return keys
}

// IsKey reports whether key is a known configuration key.
func IsKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}
