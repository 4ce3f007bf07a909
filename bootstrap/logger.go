package bootstrap

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/applelectricals/microjpeg/config"
)

// NewLogger builds the process logger from cfg. When cfg.File is set the
// output goes to a size-rotated file and the returned closer must be
// closed on shutdown; otherwise it writes to stdout and the closer is nil.
func NewLogger(cfg config.LoggingConfig) (zerolog.Logger, io.Closer) {
	SetLogLevel(cfg.Level)

	var (
		out    io.Writer = os.Stdout
		closer io.Closer
	)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out, closer = lj, lj
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.File != ""}
	}

	return zerolog.New(out).With().Timestamp().Logger(), closer
}

// SetLogLevel applies level globally. Unknown levels fall back to info.
func SetLogLevel(level string) {
	l, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}
