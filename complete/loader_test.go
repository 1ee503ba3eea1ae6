package complete

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/texsense/errors"
)

// recordingFS remembers every file opened through it.
type recordingFS struct {
	fs.FS
	mu     sync.Mutex
	opened []string
}

func (r *recordingFS) Open(name string) (fs.File, error) {
	r.mu.Lock()
	r.opened = append(r.opened, name)
	r.mu.Unlock()
	return r.FS.Open(name)
}

func (r *recordingFS) Opened() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.opened...)
}

type recordingCommand struct {
	fakeProvider
	initialized bool
	commands    map[string]CommandDef
	symbols     map[string]SymbolDef
	envs        map[string]EnvironmentDef
}

func (r *recordingCommand) Initialize(commands map[string]CommandDef, symbols map[string]SymbolDef, envs map[string]EnvironmentDef) {
	r.initialized = true
	r.commands, r.symbols, r.envs = commands, symbols, envs
}

type recordingEnvironment struct {
	fakeProvider
	initialized bool
	envs        map[string]EnvironmentDef
}

func (r *recordingEnvironment) Initialize(envs map[string]EnvironmentDef) {
	r.initialized = true
	r.envs = envs
}

func validResources() fstest.MapFS {
	return fstest.MapFS{
		EnvironmentsFile: {Data: []byte(`{"itemize": {"text": "itemize", "snippet": "\t\\item ${1}"}}`)},
		CommandsFile:     {Data: []byte(`{"section": {"command": "section", "snippet": "section{${1}}"}}`)},
		SymbolsFile:      {Data: []byte(`{"alpha": {"command": "alpha", "detail": "α"}}`)},
	}
}

func TestLoader_Success(t *testing.T) {
	cmd := &recordingCommand{}
	env := &recordingEnvironment{}
	l := NewLoader(validResources(), DefaultResourceFiles(), cmd, env, nil)

	require.NoError(t, l.Load(context.Background()))

	assert.True(t, cmd.initialized)
	assert.True(t, env.initialized)
	assert.Equal(t, "section{${1}}", cmd.commands["section"].Snippet)
	assert.Equal(t, "α", cmd.symbols["alpha"].Detail)
	assert.Equal(t, cmd.envs, env.envs, "both providers share the parsed environments")
	assert.Contains(t, env.envs, "itemize")
}

func TestLoader_StartIsAsynchronous(t *testing.T) {
	cmd := &recordingCommand{}
	env := &recordingEnvironment{}
	l := NewLoader(validResources(), DefaultResourceFiles(), cmd, env, nil)

	assert.Nil(t, l.Err(), "no error before loading finishes")
	l.Start(context.Background())
	l.Start(context.Background())

	select {
	case <-l.Done():
	case <-time.After(time.Second):
		t.Fatal("loader did not finish")
	}
	assert.NoError(t, l.Err())
	assert.True(t, cmd.initialized)
	assert.NoError(t, l.Load(context.Background()), "Load after Start returns the same outcome")
}

func TestLoader_AbortsOnFailure(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(fstest.MapFS)
		wantOpened []string
		wantMark   error
	}{
		{
			name:       "environments missing",
			mutate:     func(m fstest.MapFS) { delete(m, EnvironmentsFile) },
			wantOpened: []string{EnvironmentsFile},
			wantMark:   errors.ErrResourceLoad,
		},
		{
			name:       "commands missing",
			mutate:     func(m fstest.MapFS) { delete(m, CommandsFile) },
			wantOpened: []string{EnvironmentsFile, CommandsFile},
			wantMark:   errors.ErrResourceLoad,
		},
		{
			name:       "environments malformed",
			mutate:     func(m fstest.MapFS) { m[EnvironmentsFile] = &fstest.MapFile{Data: []byte(`{"itemize": `)} },
			wantOpened: []string{EnvironmentsFile},
			wantMark:   errors.ErrResourceParse,
		},
		{
			name:       "symbols malformed",
			mutate:     func(m fstest.MapFS) { m[SymbolsFile] = &fstest.MapFile{Data: []byte(`[1, 2`)} },
			wantOpened: []string{EnvironmentsFile, CommandsFile, SymbolsFile},
			wantMark:   errors.ErrResourceParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resources := validResources()
			tt.mutate(resources)
			rec := &recordingFS{FS: resources}
			cmd := &recordingCommand{}
			env := &recordingEnvironment{}

			core, logs := observer.New(zapcore.ErrorLevel)
			l := NewLoader(rec, DefaultResourceFiles(), cmd, env, zap.New(core).Sugar())

			err := l.Load(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantMark))
			assert.True(t, errors.IsResourceError(err))
			assert.Equal(t, tt.wantOpened, rec.Opened())
			assert.False(t, cmd.initialized)
			assert.False(t, env.initialized)
			assert.Equal(t, 1, logs.Len(), "failure is logged once")
		})
	}
}

func TestLoader_Cancelled(t *testing.T) {
	rec := &recordingFS{FS: validResources()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(rec, DefaultResourceFiles(), nil, nil, nil)
	err := l.Load(ctx)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrResourceLoad))
	assert.Empty(t, rec.Opened())
}

func TestLoader_YAMLResources(t *testing.T) {
	resources := fstest.MapFS{
		"envs.yaml": {Data: []byte("itemize:\n  text: itemize\nalign:\n  text: align\n  package: amsmath\n")},
		"cmds.yml":  {Data: []byte("emph:\n  command: emph\n  snippet: emph{${1}}\n")},
		"syms.json": {Data: []byte(`{}`)},
	}
	cmd := &recordingCommand{}
	env := &recordingEnvironment{}
	l := NewLoader(resources, ResourceFiles{Environments: "envs.yaml", Commands: "cmds.yml", Symbols: "syms.json"}, cmd, env, nil)

	require.NoError(t, l.Load(context.Background()))
	assert.Equal(t, "amsmath", env.envs["align"].Package)
	assert.Equal(t, "emph{${1}}", cmd.commands["emph"].Snippet)
}

func TestEmbeddedResources(t *testing.T) {
	cmd := &recordingCommand{}
	env := &recordingEnvironment{}
	l := NewLoader(EmbeddedResources(), DefaultResourceFiles(), cmd, env, nil)

	require.NoError(t, l.Load(context.Background()))
	assert.Contains(t, env.envs, "itemize")
	assert.Contains(t, cmd.commands, "begin")
	assert.Contains(t, cmd.symbols, "alpha")

	for name, def := range cmd.commands {
		if def.Snippet != "" {
			assert.NoError(t, ValidateSnippet(def.Snippet), name)
		}
	}
	for name, def := range env.envs {
		if def.Snippet != "" {
			assert.NoError(t, ValidateSnippet(def.Snippet), name)
		}
	}
}

func TestResourceDir(t *testing.T) {
	_, err := fs.Stat(ResourceDir(""), CommandsFile)
	assert.NoError(t, err, "empty dir falls back to the embedded resources")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CommandsFile), []byte(`{}`), 0o644))
	data, err := fs.ReadFile(ResourceDir(dir), CommandsFile)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	_, err = fs.Stat(ResourceDir(dir), SymbolsFile)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
