// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to w in the given format ("console" or "json")
// at or above level.
func New(w io.Writer, format, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("unknown log level %q; supported levels are debug, info, warn, error", level)
	}

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(time.RFC3339))
	}
	config.EncodeDuration = func(d time.Duration, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(d.String())
	}

	var enc zapcore.Encoder
	switch format {
	case FormatConsole, "":
		enc = zapcore.NewConsoleEncoder(config)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(config)
	default:
		return nil, fmt.Errorf("unknown log format %q; supported formats are console, json", format)
	}

	return zap.New(zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), lvl)), nil
}
