package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/anything-ai/anything-ai/internal/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new logger instance
func NewLogger(cfg *config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(JSONFormatter())
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}

	switch cfg.Output {
	case "file":
		out, err := RotatingFile(cfg.File)
		if err != nil {
			return nil, err
		}
		logger.SetOutput(out)
	default:
		logger.SetOutput(os.Stdout)
	}

	return logger, nil
}

// JSONFormatter is the formatter shared by the server log and the usage log.
func JSONFormatter() *logrus.JSONFormatter {
	return &logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	}
}

// RotatingFile opens a lumberjack-rotated file, creating its directory first.
func RotatingFile(cfg config.FileConfig) (io.WriteCloser, error) {
	logDir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   true,
	}, nil
}

// Discard returns a logger that writes nowhere. Used by tests and tooling.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// WithRequest adds common request fields to logger
func WithRequest(logger *logrus.Logger, userID, conversationID string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"user_id":         userID,
		"conversation_id": conversationID,
	})
}
