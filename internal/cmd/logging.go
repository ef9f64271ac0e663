package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/gofrs/uuid/v5"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger  *slog.Logger
	logFile *lumberjack.Logger
	runID   string
)

// initLogging sets up the package logger from the verbose and log-file
// settings. Every record carries the run id.
func initLogging() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if path := viper.GetString("log-file"); path != "" {
		logFile = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
			LocalTime:  true,
		}
		w = io.MultiWriter(os.Stderr, logFile)
	}

	runID = newRunID()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})).With("run", runID)
	slog.SetDefault(logger)
}

func closeLogging() {
	if logFile != nil {
		logFile.Close() // nolint:errcheck
		logFile = nil
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Must(uuid.NewV4()).String()
	}
	return id.String()
}
