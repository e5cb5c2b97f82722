package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	console io.Writer = os.Stdout
	logger            = zerolog.New(console).With().Timestamp().Logger()
)

// SetConsoleWriter changes where InitLogger sends console output. Commands
// that print documents to stdout log to stderr instead.
func SetConsoleWriter(w io.Writer) {
	console = w
}

// InitLogger configures the global logger to write JSON lines to the console
// and, when file is set, to a size-rotated log file.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	writers := []io.Writer{console}
	if file != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		})
	}
	logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	SetLogLevel(level)
}

// SetLogLevel changes the minimum level. Unknown levels fall back to info.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	logger = logger.Level(lvl)
}

// SetLoggerForTest swaps the global logger, typically for one writing into a buffer.
func SetLoggerForTest(l zerolog.Logger) {
	logger = l
}

func Debug(msg string, kv ...any) { withFields(logger.Debug(), kv).Msg(msg) }
func Info(msg string, kv ...any)  { withFields(logger.Info(), kv).Msg(msg) }
func Warn(msg string, kv ...any)  { withFields(logger.Warn(), kv).Msg(msg) }
func Error(msg string, kv ...any) { withFields(logger.Error(), kv).Msg(msg) }

// withFields attaches alternating key/value pairs. A trailing key without a
// value is logged with a null value.
func withFields(e *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			e = e.Interface(key, nil)
			break
		}
		switch v := kv[i+1].(type) {
		case error:
			e = e.AnErr(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}
