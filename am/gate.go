package am

import (
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/errors"
)

// EditorSection is the top-level key editors nest texsense settings under.
const EditorSection = "texsense"

// Gate serves the request-time settings to the completion engine. File
// configuration comes in through Update; settings pushed by the editor come
// in through Apply and stay on top across file reloads.
type Gate struct {
	mu        sync.RWMutex
	base      Config
	overrides map[string]interface{}
	effective Config
}

// NewGate creates a gate over cfg. A nil cfg uses the defaults.
func NewGate(cfg *Config) *Gate {
	base := DefaultConfig()
	if cfg != nil {
		base = *cfg
	}
	return &Gate{
		base:      base,
		effective: base,
		overrides: map[string]interface{}{},
	}
}

func (g *Gate) CitationMode() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.effective.Intellisense.Citation.Type
}

func (g *Gate) SurroundEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.effective.Intellisense.SurroundCommand.Enabled
}

func (g *Gate) AutoClosingBrackets() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.effective.Editor.AutoClosingBrackets
}

// Config returns a copy of the effective configuration.
func (g *Gate) Config() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.effective
}

// Update replaces the file configuration, e.g. after a config file reload.
// Editor overrides are re-applied on top.
func (g *Gate) Update(cfg *Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	effective, err := merge(*cfg, g.overrides)
	if err != nil {
		return err
	}
	g.base = *cfg
	g.effective = effective
	return nil
}

// Apply merges editor settings. settings may be nested maps or dotted keys,
// optionally under a "texsense" section; unknown keys are ignored. An invalid
// result is rejected and the previous settings stay in force.
func (g *Gate) Apply(settings map[string]interface{}) ([]string, error) {
	if section, ok := settings[EditorSection].(map[string]interface{}); ok {
		settings = section
	}
	flat := map[string]interface{}{}
	flatten("", settings, flat)

	var applied []string
	g.mu.Lock()
	defer g.mu.Unlock()

	overrides := make(map[string]interface{}, len(g.overrides)+len(flat))
	for k, v := range g.overrides {
		overrides[k] = v
	}
	for k, v := range flat {
		if !IsKey(k) {
			continue
		}
		overrides[k] = v
		applied = append(applied, k)
	}

	effective, err := merge(g.base, overrides)
	if err != nil {
		return nil, err
	}
	g.overrides = overrides
	g.effective = effective
	return applied, nil
}

// merge layers dotted-key overrides over cfg and validates the result.
func merge(cfg Config, overrides map[string]interface{}) (Config, error) {
	v := viper.New()
	for key, value := range cfg.Settings() {
		v.Set(key, value)
	}
	for key, value := range overrides {
		v.Set(key, value)
	}
	merged, err := LoadWithViper(v)
	if err != nil {
		return Config{}, errors.Mark(errors.Wrap(err, "apply settings"), errors.ErrInvalidRequest)
	}
	if err := merged.Validate(); err != nil {
		return Config{}, errors.Mark(errors.Wrap(err, "apply settings"), errors.ErrInvalidRequest)
	}
	return *merged, nil
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

// Settings returns cfg as dotted key -> value.
func (c *Config) Settings() map[string]interface{} {
	return map[string]interface{}{
		"intellisense.citation.type":                c.Intellisense.Citation.Type,
		"intellisense.citation.browser_interval_ms": c.Intellisense.Citation.BrowserIntervalMS,
		"intellisense.surround_command.enabled":     c.Intellisense.SurroundCommand.Enabled,
		"editor.auto_closing_brackets":              c.Editor.AutoClosingBrackets,
		"data.dir":                                  c.Data.Dir,
		"workspace.root":                            c.Workspace.Root,
		"server.port":                               c.Server.Port,
		"server.settle_ms":                          c.Server.SettleMS,
		"server.max_documents":                      c.Server.MaxDocuments,
		"log.file":                                  c.Log.File,
		"log.json":                                  c.Log.JSON,
	}
}

var _ complete.Settings = (*Gate)(nil)
