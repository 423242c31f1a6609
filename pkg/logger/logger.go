// Package logger builds the process slog.Logger from config.LoggingConfig.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmLog "github.com/charmbracelet/log"

	"smsbridge/pkg/config"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type levelSpec struct {
	slog  slog.Level
	charm charmLog.Level
}

var levels = map[string]levelSpec{
	"debug":   {slog.LevelDebug, charmLog.DebugLevel},
	"info":    {slog.LevelInfo, charmLog.InfoLevel},
	"warn":    {slog.LevelWarn, charmLog.WarnLevel},
	"warning": {slog.LevelWarn, charmLog.WarnLevel},
	"error":   {slog.LevelError, charmLog.ErrorLevel},
}

// New builds the process logger writing to stderr. Text output is rendered by
// charmbracelet/log, JSON output as one LogEntry per line.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg config.LoggingConfig, out io.Writer) (*slog.Logger, error) {
	lvl, err := lookupLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	switch format := strings.ToLower(strings.TrimSpace(cfg.Format)); format {
	case "", formatText:
		return slog.New(charmLog.NewWithOptions(out, charmLog.Options{
			Level:           lvl.charm,
			ReportTimestamp: true,
			ReportCaller:    cfg.AddSource,
			Formatter:       charmLog.TextFormatter,
		})), nil
	case formatJSON:
		return slog.New(newEntryHandler(out, lvl.slog, cfg.AddSource)), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", format)
	}
}

// lookupLevel resolves a config level name for both handlers. Empty means info.
func lookupLevel(name string) (levelSpec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = "info"
	}
	lvl, ok := levels[key]
	if !ok {
		return levelSpec{}, fmt.Errorf("unsupported log level %q", name)
	}
	return lvl, nil
}
