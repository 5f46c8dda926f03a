// Package observability holds the process-wide loggers.
//
// CLI tools log human-readable lines to stderr so stdout stays clean for
// command output.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the shared logger for command-line surfaces. It defaults
// to info level; Init replaces it once configuration is loaded.
var CLILogger = newCLILogger(zapcore.InfoLevel)

// Init reconfigures the CLI logger at the given level ("debug", "info",
// "warn", "error").
func Init(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	CLILogger = newCLILogger(lvl)
	return nil
}

// Sync flushes buffered log entries. Called on process exit.
func Sync() {
	_ = CLILogger.Sync()
}

func newCLILogger(lvl zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)
	return zap.New(core)
}
