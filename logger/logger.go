package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	globalLogger = slog.Default()
	once         sync.Once
)

type Config struct {
	Level   string   `json:"level" yaml:"level"`     // debug/info/warn/error
	Outputs []string `json:"outputs" yaml:"outputs"` // stdout/file path
}

// Init builds the process-wide logger. The first call wins.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		level := slog.LevelInfo
		switch cfg.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		var writers []io.Writer
		for _, output := range cfg.Outputs {
			switch output {
			case "", "stdout":
				writers = append(writers, os.Stdout)
			default:
				if mkErr := os.MkdirAll(filepath.Dir(output), 0755); mkErr != nil {
					err = fmt.Errorf("create log directory: %w", mkErr)
					return
				}
				file, openErr := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if openErr != nil {
					err = fmt.Errorf("open log file: %w", openErr)
					return
				}
				writers = append(writers, file)
			}
		}
		if len(writers) == 0 {
			writers = append(writers, os.Stdout)
		}

		globalLogger = slog.New(slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
			Level: level,
		}))
	})
	return err
}

func Debug(msg string, args ...any) {
	globalLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	globalLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	globalLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	globalLogger.Error(msg, args...)
}

func Logger() *slog.Logger {
	return globalLogger
}
