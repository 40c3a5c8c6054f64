package main

import (
	"io"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// rotation settings of --log-file.
const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 2
)

// withLogFile returns a logger that also writes JSON entries at every level to a size rotated file.
// The returned closer closes the file.
func withLogFile(base golog.Logger, filename string) (golog.Logger, io.Closer) {
	rotated := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		Compress:   true,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rotated),
		zapcore.DebugLevel,
	)
	tee := zapcore.NewTee(base.Desugar().Core(), fileCore)
	return zap.New(tee).Sugar().Named("navigate"), rotated
}
