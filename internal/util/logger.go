package util

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger   *zap.Logger
	loggerMu sync.RWMutex
)

// InitLogger builds the process logger. Production writes JSON at the level
// named by LOG_LEVEL (info by default); anything else writes colored console
// output at debug. Every entry carries the service and env fields.
func InitLogger(env, service string) error {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "ts"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if lvl, err := zapcore.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
			config.Level = zap.NewAtomicLevelAt(lvl)
		}
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	built, err := config.Build(zap.Fields(
		zap.String("service", service),
		zap.String("env", env),
	))
	if err != nil {
		return err
	}

	SetLogger(built)
	return nil
}

// SetLogger replaces the process logger, including zap's globals
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	zap.ReplaceGlobals(l)
}

// GetLogger returns the process logger, falling back to a development logger
// before InitLogger has run
func GetLogger() *zap.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	l, _ = zap.NewDevelopment()
	loggerMu.Lock()
	if logger == nil {
		logger = l
	}
	l = logger
	loggerMu.Unlock()
	return l
}

// ComponentLogger returns the process logger tagged with a component field
func ComponentLogger(component string) *zap.Logger {
	return GetLogger().With(zap.String("component", component))
}

func SyncLogger() {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger != nil {
		_ = logger.Sync()
	}
}
