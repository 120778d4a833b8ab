// Package zkernel wires the dispatch kernel from configuration: backends,
// session tracking and (optionally) the bridge endpoint.
package zkernel

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/zcli/zkernel/backend/data"
	"github.com/zcli/zkernel/backend/dialog"
	"github.com/zcli/zkernel/backend/funcs"
	"github.com/zcli/zkernel/backend/wizard"
	"github.com/zcli/zkernel/bridge"
	"github.com/zcli/zkernel/config"
	"github.com/zcli/zkernel/kernel"
	"github.com/zcli/zkernel/session"
)

// Option adjusts a Runtime during construction.
type Option func(*Runtime) error

// WithFunction registers a named function on the runtime's registry.
func WithFunction(name string, fn funcs.Func) Option {
	return func(rt *Runtime) error {
		return rt.Functions.Register(name, fn)
	}
}

// WithDefinitions loads wizard and dialog definitions from raw YAML instead
// of the configured file.
func WithDefinitions(doc []byte) Option {
	return func(rt *Runtime) error {
		if err := rt.Wizards.Load(doc); err != nil {
			return err
		}
		return rt.Dialogs.Load(doc)
	}
}

// Runtime bundles the wired subsystems of one kernel instance.
type Runtime struct {
	Config     config.Config
	Logger     *zap.Logger
	Functions  *funcs.Registry
	Wizards    *wizard.Backend
	Dialogs    *dialog.Backend
	Data       *data.Backend
	Sessions   *session.Manager
	Dispatcher *kernel.Dispatcher
}

// NewRuntime builds the backends and dispatcher described by cfg. The data
// backend is wired only when a DSN is configured; wizard/dialog definitions
// load from the configured definitions path unless an option supplies them.
func NewRuntime(cfg config.Config, logger *zap.Logger, opts ...Option) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	rt := &Runtime{
		Config:    cfg,
		Logger:    logger,
		Functions: funcs.NewRegistry(logger.Named("funcs")),
		Wizards:   wizard.New(logger.Named("wizard")),
		Dialogs:   dialog.New(logger.Named("dialog")),
		Sessions:  session.NewManager(logger.Named("session")),
	}

	defsLoaded := false
	for _, opt := range opts {
		if err := opt(rt); err != nil {
			return nil, err
		}
	}
	if len(rt.Wizards.Names()) > 0 || len(rt.Dialogs.Names()) > 0 {
		defsLoaded = true
	}

	if !defsLoaded {
		defsPath, err := cfg.DefinitionsPath()
		if err != nil {
			return nil, fmt.Errorf("read definitions path: %w", err)
		}
		if defsPath != "" {
			if err := rt.Wizards.LoadFile(defsPath); err != nil {
				return nil, err
			}
			if err := rt.Dialogs.LoadFile(defsPath); err != nil {
				return nil, err
			}
		}
	}

	dsn, err := cfg.DataDSN()
	if err != nil {
		return nil, fmt.Errorf("read data dsn: %w", err)
	}
	if dsn != "" {
		driver, err := cfg.DataDriver()
		if err != nil {
			return nil, fmt.Errorf("read data driver: %w", err)
		}
		rt.Data, err = data.Open(driver, dsn, logger.Named("data"))
		if err != nil {
			return nil, err
		}
	}

	backends := kernel.Backends{
		Functions: rt.Functions,
		Wizards:   rt.Wizards,
		Dialogs:   rt.Dialogs,
	}
	if rt.Data != nil {
		backends.Data = rt.Data
	}
	rt.Dispatcher = kernel.New(backends, logger.Named("kernel"))
	return rt, nil
}

// StartBridge registers the bridge routes and starts the HTTP listener.
func (rt *Runtime) StartBridge(ctx context.Context, overrideListenAddr string) (*http.Server, <-chan error, error) {
	server, err := bridge.NewServer(rt.Config, rt.Dispatcher, rt.Sessions, rt.Logger.Named("bridge"))
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	server.RegisterHandlers(mux)
	return bridge.StartHTTPServer(ctx, rt.Logger, rt.Config, mux, overrideListenAddr)
}

// Close releases the runtime's resources.
func (rt *Runtime) Close() error {
	rt.Sessions.CloseAll()
	if rt.Data != nil {
		return rt.Data.Close()
	}
	return nil
}
