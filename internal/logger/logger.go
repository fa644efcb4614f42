package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process logger of a plugincheck invocation. It owns the log
// file, if any, and is closed when the command returns.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// Config holds logger configuration
type Config struct {
	Level     string    // debug, info, warn, error
	File      string    // appended to, never rotated
	Console   bool      // write to Output
	Pretty    bool      // human readable console lines
	Redaction bool      // mask credentials in definition URLs and headers
	Output    io.Writer // console destination, stderr when nil
}

// New creates the logger and installs it as the zerolog global. Console
// output goes to stderr so it never interleaves with the report on stdout.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.WarnLevel
	}

	sink, file, err := openSink(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Redaction {
		sink = NewRedactor().Wrap(sink)
	}

	l := zerolog.New(sink).Level(level).With().Timestamp().Logger()
	log.Logger = l

	return &Logger{Logger: l, file: file}, nil
}

// openSink combines the console and file destinations into one writer
func openSink(cfg Config) (io.Writer, *os.File, error) {
	var writers []io.Writer

	if cfg.Console {
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		if cfg.Pretty {
			out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		}
		writers = append(writers, out)
	}

	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	switch len(writers) {
	case 0:
		return io.Discard, file, nil
	case 1:
		return writers[0], file, nil
	default:
		return zerolog.MultiLevelWriter(writers...), file, nil
	}
}

// Close closes the log file, if one was opened
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
