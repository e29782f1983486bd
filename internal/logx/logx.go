// Package logx builds the structured logger shared by every long-running
// Legio component.
package logx

import (
	"os"

	"github.com/muesli/termenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Level is the minimum level that will be emitted: debug, info, warn, error.
	Level string
	// JSON forces the JSON encoder even on a TTY.
	JSON bool
}

// New builds a *zap.Logger for the given options. Output goes to stderr so
// that stdout stays available for machine-readable command output
// (`--json` CLI mode, hook protocol responses).
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	useJSON := opts.JSON || !isColorTTY()

	var encoder zapcore.Encoder
	if useJSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		devCfg.TimeKey = "ts"
		devCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewConsoleEncoder(devCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core), nil
}

// isColorTTY reports whether stderr is a terminal that supports color and
// neither NO_COLOR nor TERM=dumb has been requested.
func isColorTTY() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	return termenv.NewOutput(os.Stderr).Profile != termenv.Ascii && isTTY(os.Stderr)
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// Nop returns a logger that discards everything, used by tests and
// one-shot CLI paths that don't want log noise on stdout.
func Nop() *zap.Logger {
	return zap.NewNop()
}
