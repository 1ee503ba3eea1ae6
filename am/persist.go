package am

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/texsense/errors"
	"github.com/teranos/texsense/logger"
)

// backupCount is how many rotated copies SetValue keeps (.back1 .. .back3).
const backupCount = 3

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config
func createBackup(configPath string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Delete oldest backup if exists
	oldest := configPath + ".back" + strconv.Itoa(backupCount)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		// Log deletion failures (but don't fail config save)
		logger.Warnw("Failed to delete old config backup", logger.FieldFile, oldest, logger.FieldError, err)
	}

	// Rotate .backN-1 -> .backN, ..., .back1 -> .back2
	for n := backupCount - 1; n >= 1; n-- {
		from := configPath + ".back" + strconv.Itoa(n)
		to := configPath + ".back" + strconv.Itoa(n+1)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, to); err != nil {
				return errors.Wrapf(err, "failed to rotate %s", filepath.Base(from))
			}
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(configPath+".back1", content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// loadOrInitialize reads configPath as TOML, or returns an empty map if the
// file doesn't exist yet.
func loadOrInitialize(configPath string) (map[string]interface{}, error) {
	if err := os.MkdirAll(filepath.Dir(configPath), DefaultDirPermissions); err != nil {
		return nil, errors.Wrap(err, "failed to create config directory")
	}

	config := make(map[string]interface{})
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", configPath)
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", configPath)
	}
	return config, nil
}

// save writes the config with backup
func save(config map[string]interface{}, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if cw := GetGlobalWatcher(); cw != nil && cw.path == filepath.Clean(configPath) {
		cw.MarkOwnWrite()
	}

	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", configPath)
	}

	return nil
}

// SetValue sets a dotted key in the TOML file at configPath, creating the
// file and intermediate tables as needed.
func SetValue(configPath, key string, value interface{}) error {
	if !IsKey(key) {
		return errors.WithHint(
			errors.NewNotFoundError("unknown config key %q", key),
			"run 'texsense am show' to list keys")
	}

	config, err := loadOrInitialize(configPath)
	if err != nil {
		return err
	}

	parts := strings.Split(key, ".")
	table := config
	for _, part := range parts[:len(parts)-1] {
		next, ok := table[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			table[part] = next
		}
		table = next
	}
	table[parts[len(parts)-1]] = value

	// Reject values that would make the file unloadable
	candidate := Config{}
	defaults := viperWithDefaults()
	if err := defaults.MergeConfigMap(config); err != nil {
		return errors.Wrap(err, "failed to merge config")
	}
	if err := defaults.Unmarshal(&candidate); err != nil {
		return errors.Mark(errors.Wrapf(err, "invalid value for %s", key), errors.ErrInvalidRequest)
	}
	if err := candidate.Validate(); err != nil {
		return errors.Mark(err, errors.ErrInvalidRequest)
	}

	return save(config, configPath)
}

// ParseValue converts a command-line string into a bool, int or string.
func ParseValue(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
