package complete

import (
	"bytes"
	"embed"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teranos/texsense/errors"
)

// Default resource file names inside the data directory.
const (
	EnvironmentsFile = "environments.json"
	CommandsFile     = "commands.json"
	SymbolsFile      = "unimathsymbols.json"
)

// EnvironmentDef describes one environment from the environments resource.
type EnvironmentDef struct {
	// Text is inserted after \begin{ and \end{; defaults to the map key.
	Text string `json:"text" yaml:"text"`
	// Snippet is the body placed between \begin and \end when completing a
	// whole environment, e.g. "\t\\item ${1}".
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Package string `json:"package,omitempty" yaml:"package,omitempty"`
}

// CommandDef describes one command from the commands resource.
type CommandDef struct {
	// Command is the name without the leading backslash.
	Command string `json:"command" yaml:"command"`
	// Snippet, when set, is inserted instead of Command.
	Snippet       string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Detail        string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty" yaml:"documentation,omitempty"`
	Package       string `json:"package,omitempty" yaml:"package,omitempty"`
}

// SymbolDef describes one math symbol from the unicode-math symbols resource.
type SymbolDef struct {
	Command       string `json:"command" yaml:"command"`
	Detail        string `json:"detail,omitempty" yaml:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty" yaml:"documentation,omitempty"`
}

// ResourceFiles names the three static resources inside a data directory.
type ResourceFiles struct {
	Environments string
	Commands     string
	Symbols      string
}

// DefaultResourceFiles returns the file names shipped with texsense.
func DefaultResourceFiles() ResourceFiles {
	return ResourceFiles{
		Environments: EnvironmentsFile,
		Commands:     CommandsFile,
		Symbols:      SymbolsFile,
	}
}

//go:embed data/*.json
var embedded embed.FS

// EmbeddedResources returns the resource directory compiled into the binary.
func EmbeddedResources() fs.FS {
	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		// data/ is part of the embed pattern
		panic(err)
	}
	return sub
}

// ResourceDir returns the resources to load: dir on disk when set, the
// embedded copy otherwise.
func ResourceDir(dir string) fs.FS {
	if dir == "" {
		return EmbeddedResources()
	}
	return os.DirFS(dir)
}

// decodeResource decodes data into v. YAML files (.yaml, .yml) go through
// yaml.v3; everything else is treated as JSON.
func decodeResource(name string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, v); err != nil {
			return errors.Mark(errors.Wrapf(err, "decode %s", name), errors.ErrResourceParse)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(v); err != nil {
			return errors.Mark(errors.Wrapf(err, "decode %s", name), errors.ErrResourceParse)
		}
	}
	return nil
}
