package complete

import (
	"context"
	"io/fs"
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/texsense/errors"
	"github.com/teranos/texsense/logger"
)

// Loader reads the environments, commands and symbols resources in that
// order and initializes the Command and Environment providers from them.
// Any read or decode failure stops the chain; the providers then stay
// uninitialized and report no suggestions.
type Loader struct {
	fsys        fs.FS
	files       ResourceFiles
	command     CommandProvider
	environment EnvironmentProvider
	logger      *zap.SugaredLogger

	once sync.Once
	done chan struct{}
	err  error
}

// NewLoader prepares a loader; nothing is read until Start or Load.
func NewLoader(fsys fs.FS, files ResourceFiles, command CommandProvider, environment EnvironmentProvider, log *zap.SugaredLogger) *Loader {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Loader{
		fsys:        fsys,
		files:       files,
		command:     command,
		environment: environment,
		logger:      log,
		done:        make(chan struct{}),
	}
}

// Start loads the resources on a new goroutine and returns immediately.
// Calling Start more than once has no further effect.
func (l *Loader) Start(ctx context.Context) {
	l.once.Do(func() {
		go func() {
			defer close(l.done)
			l.err = l.load(ctx)
		}()
	})
}

// Load runs the chain on the calling goroutine.
func (l *Loader) Load(ctx context.Context) error {
	l.once.Do(func() {
		defer close(l.done)
		l.err = l.load(ctx)
	})
	<-l.done
	return l.err
}

// Done is closed once loading has finished, successfully or not.
func (l *Loader) Done() <-chan struct{} {
	return l.done
}

// Err reports the failure that stopped the chain. Only meaningful after Done.
func (l *Loader) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

func (l *Loader) load(ctx context.Context) error {
	var envs map[string]EnvironmentDef
	if err := l.step(ctx, "environments", l.files.Environments, &envs); err != nil {
		return err
	}

	var commands map[string]CommandDef
	if err := l.step(ctx, "commands", l.files.Commands, &commands); err != nil {
		return err
	}

	var symbols map[string]SymbolDef
	if err := l.step(ctx, "unimathsymbols", l.files.Symbols, &symbols); err != nil {
		return err
	}

	if l.command != nil {
		l.command.Initialize(commands, symbols, envs)
	}
	if l.environment != nil {
		l.environment.Initialize(envs)
	}
	l.logger.Infow("Completion resources ready",
		"environments", len(envs),
		"commands", len(commands),
		"symbols", len(symbols),
	)
	return nil
}

// step reads and decodes one resource. Read failures are marked
// ErrResourceLoad, decode failures ErrResourceParse.
func (l *Loader) step(ctx context.Context, label, name string, v any) error {
	if err := ctx.Err(); err != nil {
		err = errors.Mark(errors.Wrapf(err, "load default %s", label), errors.ErrResourceLoad)
		l.logger.Warnw("Resource loading cancelled", logger.FieldResource, name, logger.FieldError, err)
		return err
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		err = errors.Mark(errors.Wrapf(err, "read default %s", label), errors.ErrResourceLoad)
		l.logger.Errorw("Error reading default "+label, logger.FieldResource, name, logger.FieldError, err)
		return err
	}

	if err := decodeResource(name, data, v); err != nil {
		l.logger.Errorw("Error parsing default "+label, logger.FieldResource, name, logger.FieldError, err)
		return err
	}

	l.logger.Infow("Default "+label+" loaded", logger.FieldResource, name, logger.FieldSize, len(data))
	return nil
}
