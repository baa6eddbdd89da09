package di

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/KOMKZ/go-yogan-admission/config"
	"github.com/KOMKZ/go-yogan-admission/limiter"
	"github.com/KOMKZ/go-yogan-admission/logger"
	"github.com/samber/do/v2"
	"go.uber.org/zap"
)

// AppState is the lifecycle state of a DoApplication.
type AppState int

const (
	StateInit AppState = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

func (s AppState) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetup:
		return "Setup"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

const shutdownTimeout = 30 * time.Second

// DoApplication runs the admission components on a samber/do injector. The injector
// shuts services down in reverse dependency order.
type DoApplication struct {
	injector *do.RootScope

	configPath   string
	envPrefix    string
	flags        interface{}
	configLoader *config.Loader

	logger    *logger.CtxZapLogger
	admission *limiter.Config
	factory   *limiter.Factory

	ctx    context.Context
	cancel context.CancelFunc
	state  AppState
	mu     sync.RWMutex

	name    string
	version string

	onSetup    func(*DoApplication) error
	onReady    func(*DoApplication) error
	onShutdown func(context.Context) error
}

type DoAppOption func(*DoApplication)

func WithConfigPath(path string) DoAppOption {
	return func(app *DoApplication) {
		app.configPath = path
	}
}

// WithEnvPrefix enables PREFIX_* environment overrides.
func WithEnvPrefix(prefix string) DoAppOption {
	return func(app *DoApplication) {
		app.envPrefix = prefix
	}
}

// WithFlags adds a flags struct with `config` tags as the highest-priority source.
func WithFlags(flags interface{}) DoAppOption {
	return func(app *DoApplication) {
		app.flags = flags
	}
}

func WithName(name string) DoAppOption {
	return func(app *DoApplication) {
		app.name = name
	}
}

func WithVersion(version string) DoAppOption {
	return func(app *DoApplication) {
		app.version = version
	}
}

// WithOnSetup runs after the core services are built.
func WithOnSetup(fn func(*DoApplication) error) DoAppOption {
	return func(app *DoApplication) {
		app.onSetup = fn
	}
}

func WithOnReady(fn func(*DoApplication) error) DoAppOption {
	return func(app *DoApplication) {
		app.onReady = fn
	}
}

// WithOnShutdown runs before the injector shuts down.
func WithOnShutdown(fn func(context.Context) error) DoAppOption {
	return func(app *DoApplication) {
		app.onShutdown = fn
	}
}

func NewDoApplication(opts ...DoAppOption) *DoApplication {
	ctx, cancel := context.WithCancel(context.Background())

	app := &DoApplication{
		injector:   do.New(),
		configPath: "./configs",
		ctx:        ctx,
		cancel:     cancel,
		state:      StateInit,
		name:       "admission-gateway",
		version:    "0.0.1",
		logger:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

func (app *DoApplication) Injector() *do.RootScope {
	return app.injector
}

func (app *DoApplication) Logger() *logger.CtxZapLogger {
	return app.logger
}

func (app *DoApplication) ConfigLoader() *config.Loader {
	return app.configLoader
}

// AdmissionConfig is the validated admission section. Nil before Setup.
func (app *DoApplication) AdmissionConfig() *limiter.Config {
	return app.admission
}

// Factory is nil before Setup.
func (app *DoApplication) Factory() *limiter.Factory {
	return app.factory
}

// Context is cancelled by Shutdown.
func (app *DoApplication) Context() context.Context {
	return app.ctx
}

func (app *DoApplication) State() AppState {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.state
}

func (app *DoApplication) setState(state AppState) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.state = state
}

// Setup registers the core providers, then builds config, logging, the admission
// section and the limiter factory eagerly so configuration errors surface here.
func (app *DoApplication) Setup() error {
	app.setState(StateSetup)

	RegisterCoreProviders(app.injector, ConfigOptions{
		ConfigPath: app.configPath,
		EnvPrefix:  app.envPrefix,
		Flags:      app.flags,
	})

	loader, err := do.Invoke[*config.Loader](app.injector)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	app.configLoader = loader

	appLogger, err := do.Invoke[*logger.CtxZapLogger](app.injector)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	app.logger = appLogger

	app.logger.InfoCtx(app.ctx, "application setting up",
		zap.String("name", app.name),
		zap.String("version", app.version),
		zap.String("config_path", app.configPath),
		zap.Strings("config_files", loader.GetLoadedFiles()),
	)

	if app.admission, err = do.Invoke[*limiter.Config](app.injector); err != nil {
		return fmt.Errorf("admission config: %w", err)
	}
	if app.factory, err = do.Invoke[*limiter.Factory](app.injector); err != nil {
		return fmt.Errorf("limiter factory: %w", err)
	}

	if app.onSetup != nil {
		if err := app.onSetup(app); err != nil {
			return fmt.Errorf("setup callback: %w", err)
		}
	}
	return nil
}

func (app *DoApplication) Start() error {
	app.setState(StateRunning)

	app.logger.InfoCtx(app.ctx, "application started",
		zap.String("name", app.name),
		zap.String("version", app.version),
		zap.Int("policies", len(app.admission.Policies)),
	)

	if app.onReady != nil {
		if err := app.onReady(app); err != nil {
			return fmt.Errorf("ready callback: %w", err)
		}
	}
	return nil
}

// Run sets up, starts and blocks until SIGINT or SIGTERM, then shuts down.
func (app *DoApplication) Run() error {
	if err := app.Setup(); err != nil {
		return err
	}
	if err := app.Start(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = app.Shutdown(ctx)
		return err
	}
	app.waitForSignal()
	return nil
}

func (app *DoApplication) waitForSignal() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		app.logger.InfoCtx(app.ctx, "received signal", zap.String("signal", sig.String()))
	case <-app.ctx.Done():
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		app.logger.ErrorCtx(ctx, "shutdown failed", zap.Error(err))
	}
}

// Shutdown runs the shutdown callback, cancels Context and shuts the injector down.
func (app *DoApplication) Shutdown(ctx context.Context) error {
	app.setState(StateStopping)
	app.logger.InfoCtx(ctx, "graceful shutdown started")

	if app.onShutdown != nil {
		if err := app.onShutdown(ctx); err != nil {
			app.logger.WarnCtx(ctx, "shutdown callback failed", zap.Error(err))
		}
	}

	app.cancel()

	if report := app.injector.Shutdown(); report != nil && len(report.Errors) > 0 {
		app.logger.WarnCtx(ctx, "injector shutdown failed", zap.String("errors", report.Error()))
	}

	app.setState(StateStopped)
	app.logger.InfoCtx(ctx, "application stopped")
	return nil
}

// HealthCheck runs every do.Healthchecker service, e.g. the redis manager.
func (app *DoApplication) HealthCheck() map[string]error {
	return app.injector.HealthCheck()
}

func (app *DoApplication) IsHealthy() bool {
	for _, err := range app.HealthCheck() {
		if err != nil {
			return false
		}
	}
	return true
}
