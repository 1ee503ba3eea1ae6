package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/texsense/errors"
)

// Config file locations
const (
	ConfigFileName   = "am.toml"
	SystemConfigPath = "/etc/texsense/am.toml"
	UserConfigDir    = ".texsense"
	EnvPrefix        = "TEXSENSE"
)

var (
	loadMu        sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper

	// ConfigSources records, for every key set by a config file, which file
	// set it last. Rebuilt on every load.
	ConfigSources = map[string]SourceInfo{}
)

// Load reads the texsense configuration using Viper. The result is cached
// until Reset.
func Load() (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	config, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	loadMu.Lock()
	defer loadMu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Set defaults but don't bind environment variables for this specific load
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	globalConfig = nil
	viperInstance = nil
}

// initViper initializes Viper with configuration sources and defaults.
// Callers hold loadMu.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvVars(v)

	// Set defaults first
	SetDefaults(v)

	// Manually merge configs in precedence order: system -> user -> project -> env vars
	ConfigSources = mergeConfigFiles(v, ConfigPaths())

	viperInstance = v
	return v
}

// UserConfigPath returns ~/.texsense/am.toml, or "" without a home directory.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, ConfigFileName)
}

// FindProjectConfig searches for am.toml by walking up from the working
// directory. Returns "" if none is found.
func FindProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		amPath := filepath.Join(dir, ConfigFileName)
		if info, err := os.Stat(amPath); err == nil && !info.IsDir() {
			return amPath
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop searching
			break
		}
		dir = parent
	}

	return ""
}

// ConfigPath is one candidate config file and the precedence tier it
// belongs to.
type ConfigPath struct {
	Path   string
	Source ConfigSource
}

// ConfigPaths returns candidate config files from lowest to highest
// precedence. Files that don't exist are still listed.
func ConfigPaths() []ConfigPath {
	paths := []ConfigPath{{Path: SystemConfigPath, Source: SourceSystem}}
	if user := UserConfigPath(); user != "" {
		paths = append(paths, ConfigPath{Path: user, Source: SourceUser})
	}
	if project := FindProjectConfig(); project != "" {
		paths = append(paths, ConfigPath{Path: project, Source: SourceProject})
	}
	return paths
}

// mergeConfigFiles merges each existing file into v in order and returns
// the file that last set each key. Unreadable files are skipped.
func mergeConfigFiles(v *viper.Viper, paths []ConfigPath) map[string]SourceInfo {
	sources := map[string]SourceInfo{}
	for _, p := range paths {
		if _, err := os.Stat(p.Path); err != nil {
			continue
		}
		tempViper := viper.New()
		tempViper.SetConfigFile(p.Path)
		tempViper.SetConfigType("toml")

		if err := tempViper.ReadInConfig(); err != nil {
			continue
		}
		// MergeConfigMap keeps file values below env vars
		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			continue
		}
		for _, key := range tempViper.AllKeys() {
			sources[key] = SourceInfo{Source: p.Source, Path: p.Path}
		}
	}
	return sources
}

// sourcesSnapshot copies ConfigSources under the load lock.
func sourcesSnapshot() map[string]SourceInfo {
	loadMu.Lock()
	defer loadMu.Unlock()
	out := make(map[string]SourceInfo, len(ConfigSources))
	for k, v := range ConfigSources {
		out[k] = v
	}
	return out
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}

// GetBool returns a configuration value as bool using dot notation
func GetBool(key string) bool {
	return GetViper().GetBool(key)
}

// GetInt returns a configuration value as int using dot notation
func GetInt(key string) int {
	return GetViper().GetInt(key)
}
