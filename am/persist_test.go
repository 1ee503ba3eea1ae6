package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/texsense/errors"
)

func TestSetValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	require.NoError(t, SetValue(path, "intellisense.citation.type", "browser"))
	require.NoError(t, SetValue(path, "server.port", ParseValue("9001")))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, CitationBrowser, cfg.Intellisense.Citation.Type)
	assert.Equal(t, 9001, cfg.Server.Port)

	_, err = os.Stat(path + ".back1")
	assert.NoError(t, err, "second write backs up the first")
}

func TestSetValue_Rejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	err := SetValue(path, "server.nope", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = SetValue(path, "intellisense.citation.type", "popup")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing written for rejected values")
}

func TestCreateBackup_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)

	for i := 0; i < 5; i++ {
		writeFile(t, path, string(rune('a'+i)))
		require.NoError(t, createBackup(path))
	}

	for n, want := range map[string]string{".back1": "e", ".back2": "d", ".back3": "c"} {
		data, err := os.ReadFile(path + n)
		require.NoError(t, err)
		assert.Equal(t, want, string(data), n)
	}
	_, err := os.Stat(path + ".back4")
	assert.True(t, os.IsNotExist(err))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, false, ParseValue("false"))
	assert.Equal(t, int64(1), ParseValue("1"))
	assert.Equal(t, "browser", ParseValue("browser"))
}
