package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Manager creates and caches one CtxZapLogger per module.
type Manager struct {
	baseConfig ManagerConfig
	loggers    map[string]*CtxZapLogger
	zapLoggers map[string]*zap.Logger
	writers    map[string][]*lumberjack.Logger
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// NewManager creates a manager. Zero-valued fields of cfg get defaults.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.ApplyDefaults()
	return &Manager{
		baseConfig: cfg,
		loggers:    make(map[string]*CtxZapLogger),
		zapLoggers: make(map[string]*zap.Logger),
		writers:    make(map[string][]*lumberjack.Logger),
	}
}

// InitManager installs the global manager once. Later calls are ignored.
func InitManager(cfg ManagerConfig) {
	managerOnce.Do(func() {
		globalManager = NewManager(cfg)
	})
}

// Config returns the effective configuration.
func (m *Manager) Config() ManagerConfig {
	return m.baseConfig
}

// GetLogger returns the logger of moduleName, creating it on first use.
// Entries carry a "module" field.
func (m *Manager) GetLogger(moduleName string) *CtxZapLogger {
	m.mu.RLock()
	if l, ok := m.loggers[moduleName]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.loggers[moduleName]; ok {
		return l
	}

	zapLogger := m.createLogger(moduleConfig{ManagerConfig: m.baseConfig, module: moduleName}).
		With(zap.String("module", moduleName))

	l := &CtxZapLogger{
		base:   zapLogger.WithOptions(zap.AddCallerSkip(1)),
		module: moduleName,
		config: &m.baseConfig,
	}
	m.loggers[moduleName] = l
	m.zapLoggers[moduleName] = zapLogger
	return l
}

// createLogger tees console output with an info file and an error file.
func (m *Manager) createLogger(cfg moduleConfig) *zap.Logger {
	level := ParseLevel(cfg.Level)
	var cores []zapcore.Core

	if cfg.EnableConsole {
		cores = append(cores, zapcore.NewCore(
			newEncoder(cfg.ConsoleEncoding),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}

	if cfg.EnableFile {
		encoder := newEncoder(cfg.Encoding)

		infoWriter, infoLumber := newFileWriter(cfg.filePath("info"), cfg)
		cores = append(cores, zapcore.NewCore(encoder, infoWriter,
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= level && lvl < zapcore.ErrorLevel
			}),
		))

		errorWriter, errorLumber := newFileWriter(cfg.filePath("error"), cfg)
		cores = append(cores, zapcore.NewCore(encoder, errorWriter,
			zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
				return lvl >= zapcore.ErrorLevel && lvl >= level
			}),
		))

		m.writers[cfg.module] = []*lumberjack.Logger{infoLumber, errorLumber}
	}

	var opts []zap.Option
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...)
}

// CloseAll syncs every logger and closes the rotated files.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.zapLoggers {
		_ = l.Sync()
	}
	for _, writers := range m.writers {
		for _, w := range writers {
			_ = w.Close()
		}
	}

	m.loggers = make(map[string]*CtxZapLogger)
	m.zapLoggers = make(map[string]*zap.Logger)
	m.writers = make(map[string][]*lumberjack.Logger)
}

// Shutdown implements do.Shutdowner.
func (m *Manager) Shutdown() error {
	m.CloseAll()
	return nil
}

func newEncoder(encoding string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		CallerKey:      "caller",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encoding == "console" {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}

func newFileWriter(filename string, cfg moduleConfig) (zapcore.WriteSyncer, *lumberjack.Logger) {
	_ = os.MkdirAll(filepath.Dir(filename), 0o755)

	lj := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
	return zapcore.AddSync(lj), lj
}

// GetLogger returns a module logger from the global manager, initializing it with defaults.
func GetLogger(moduleName string) *CtxZapLogger {
	InitManager(DefaultManagerConfig())
	return globalManager.GetLogger(moduleName)
}

// CloseAll closes the global manager if it was initialized.
func CloseAll() {
	if globalManager != nil {
		globalManager.CloseAll()
	}
}
