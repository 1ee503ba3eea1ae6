package am

import (
	"os"

	"github.com/teranos/texsense/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Intellisense.Citation.Type {
	case CitationInline, CitationBrowser:
	default:
		return errors.WithHintf(
			errors.Newf("intellisense.citation.type must be %q or %q, got %q", CitationInline, CitationBrowser, c.Intellisense.Citation.Type),
			"set intellisense.citation.type in %s or %s", ConfigFileName, EnvVarName("intellisense.citation.type"))
	}

	// 0 = no throttle, negative = invalid
	if c.Intellisense.Citation.BrowserIntervalMS < 0 {
		return errors.Newf("intellisense.citation.browser_interval_ms must be >= 0, got %d", c.Intellisense.Citation.BrowserIntervalMS)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	// 0 = run follow-ups as soon as the worker is free
	if c.Server.SettleMS < 0 {
		return errors.Newf("server.settle_ms must be >= 0, got %d", c.Server.SettleMS)
	}

	// 0 = unbounded
	if c.Server.MaxDocuments < 0 {
		return errors.Newf("server.max_documents must be >= 0, got %d", c.Server.MaxDocuments)
	}

	if c.Data.Dir != "" {
		info, err := os.Stat(c.Data.Dir)
		if err != nil {
			return errors.Wrapf(err, "data.dir %s", c.Data.Dir)
		}
		if !info.IsDir() {
			return errors.Newf("data.dir %s is not a directory", c.Data.Dir)
		}
	}

	return nil
}
