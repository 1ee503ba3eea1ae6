package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/texsense/am"
	"github.com/teranos/texsense/errors"
)

func TestShowConfig(t *testing.T) {
	settings := map[string]interface{}{
		"intellisense": map[string]interface{}{
			"citation": map[string]interface{}{"type": "browser"},
		},
		"server": map[string]interface{}{"port": 8797},
	}

	tests := []struct {
		format string
		want   []string
	}{
		{"toml", []string{"type = 'browser'", "port = 8797"}},
		{"json", []string{`"type": "browser"`, `"port": 8797`}},
		{"yaml", []string{"type: browser", "port: 8797"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, showConfig(&buf, settings, tt.format))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}

	err := showConfig(&bytes.Buffer{}, settings, "xml")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestShowSources(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, showSources(&buf, []am.SettingInfo{
		{Key: "server.port", Value: 9000, Source: am.SourceEnvironment, SourcePath: "TEXSENSE_SERVER_PORT"},
	}))
	assert.Contains(t, buf.String(), "server.port")
	assert.Contains(t, buf.String(), "TEXSENSE_SERVER_PORT")
}
