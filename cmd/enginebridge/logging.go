package main

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/wippyai/engine-bridge/engine"
	"github.com/wippyai/engine-bridge/invoke"
	"github.com/wippyai/engine-bridge/loader"
	"github.com/wippyai/engine-bridge/server"
)

// newLogger writes to w: console format on a terminal, JSON otherwise.
func newLogger(w io.Writer, level string) (*zap.Logger, error) {
	lvl := zap.NewAtomicLevelAt(zap.InfoLevel)
	if level != "" {
		var err error
		if lvl, err = zap.ParseAtomicLevel(level); err != nil {
			return nil, err
		}
	}

	var enc zapcore.Encoder
	if isTerminal(w) {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// installLogger makes log the package logger of every bridge package.
func installLogger(log *zap.Logger) {
	engine.SetLogger(log.Named("engine"))
	loader.SetLogger(log.Named("loader"))
	invoke.SetLogger(log.Named("invoke"))
	server.SetLogger(log.Named("server"))
}
