// Package logging builds the arbor logger used across the pipeline.
package logging

import (
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"

	"contractqa/internal/config"
)

// New creates a logger writing to the outputs named in cfg ("console",
// "stdout" or "file"). With no outputs it logs to the console.
func New(cfg config.LoggingConfig) arbor.ILogger {
	logger := arbor.NewLogger()

	console := len(cfg.Output) == 0
	file := false
	for _, out := range cfg.Output {
		switch out {
		case "console", "stdout":
			console = true
		case "file":
			file = true
		}
	}

	if file {
		path := cfg.File
		if path == "" {
			path = filepath.Join("logs", "contractqa.log")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:       models.LogWriterTypeFile,
				FileName:   path,
				TimeFormat: "15:04:05",
				MaxSize:    10 * 1024 * 1024,
				MaxBackups: 3,
				TextOutput: true,
			})
		} else {
			console = true
		}
	}

	if console {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			TimeFormat: "15:04:05",
			TextOutput: true,
		})
	}

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	return logger.WithLevelFromString(level)
}
