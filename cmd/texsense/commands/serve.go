package commands

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/texsense/am"
	"github.com/teranos/texsense/complete"
	"github.com/teranos/texsense/errors"
	"github.com/teranos/texsense/logger"
	"github.com/teranos/texsense/server"
)

// ServeCmd starts the language server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Run the LaTeX language server",
	Long: `Run the texsense language server.

With --stdio (the default) a single editor talks to texsense over
stdin/stdout; logs go to log.file when set, otherwise to stderr.
With --ws editors connect over WebSocket at ws://127.0.0.1:<port>/lsp.

The project or user am.toml is watched and reloaded on change.`,
	RunE: runServe,
}

var (
	serveStdio bool
	serveWS    bool
	servePort  int
	serveDebug bool
	serveWatch bool
)

func init() {
	ServeCmd.Flags().BoolVar(&serveStdio, "stdio", false, "Serve one editor over stdin/stdout (default)")
	ServeCmd.Flags().BoolVar(&serveWS, "ws", false, "Serve editors over WebSocket")
	ServeCmd.Flags().IntVar(&servePort, "port", 0, "WebSocket port (overrides server.port)")
	ServeCmd.Flags().BoolVar(&serveDebug, "rpc-debug", false, "Trace JSON-RPC messages (implied by -vvv)")
	ServeCmd.Flags().BoolVar(&serveWatch, "watch", true, "Reload configuration when am.toml changes")
	ServeCmd.MarkFlagsMutuallyExclusive("stdio", "ws")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Get verbosity flag - default to 1 (Info) for the WebSocket server
	verbosity, _ := cmd.Flags().GetCount("verbose")
	if verbosity == 0 && serveWS {
		verbosity = 1
	}
	level := logger.VerbosityToLevel(verbosity)

	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}

	// stdout carries the protocol in stdio mode
	if serveWS {
		if err := logger.Initialize(cfg.Log.JSON, level); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
	} else if cfg.Log.File != "" {
		logger.InitializeFile(logger.FileOptions{Path: cfg.Log.File}, level)
	} else {
		logger.InitializeStderr(level)
	}
	log := logger.ComponentLogger("server")
	log.Infow("Configuration loaded", "config", cfg.String())

	gate := am.NewGate(cfg)
	if serveWatch {
		if watcher := startConfigWatcher(gate, log); watcher != nil {
			defer func() {
				am.SetGlobalWatcher(nil)
				if err := watcher.Stop(); err != nil {
					log.Warnw("Failed to stop config watcher", logger.FieldError, err)
				}
			}()
		}
	}

	srv := server.New(gate, complete.ResourceDir(cfg.Data.Dir), log)
	srv.SetDebug(serveDebug || logger.ShouldLogTrace(verbosity))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !serveWS {
		return srv.RunStdio(ctx)
	}

	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = servePort
	}
	pterm.Info.Printf("texsense listening on ws://127.0.0.1:%d%s (Ctrl+C to stop)\n", port, server.LSPPath)
	if err := srv.ListenAndServe(ctx, port); err != nil {
		return errors.Wrap(err, "server failed")
	}
	pterm.Success.Println("Server stopped cleanly")
	return nil
}

// startConfigWatcher watches the nearest am.toml (project first, then user)
// and pushes reloads into gate. Returns nil when there is nothing to watch.
func startConfigWatcher(gate *am.Gate, log *zap.SugaredLogger) *am.ConfigWatcher {
	path := am.FindProjectConfig()
	if path == "" {
		path = am.UserConfigPath()
	}
	if path == "" {
		return nil
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		log.Debugw("Config directory missing, not watching", logger.FieldFile, path)
		return nil
	}

	watcher, err := am.NewConfigWatcher(path)
	if err != nil {
		log.Warnw("Failed to watch config", logger.FieldFile, path, logger.FieldError, err)
		return nil
	}
	watcher.OnReload(func(cfg *am.Config) error {
		return gate.Update(cfg)
	})
	am.SetGlobalWatcher(watcher)
	watcher.Start()

	log.Infow("Watching configuration", logger.FieldFile, path)
	return watcher
}
