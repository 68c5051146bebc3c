package config

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the JSON logger shared by every component. Unknown levels fall back to info.
func NewLogger(level string) *logrus.Logger {
	return newLogger(level, os.Stdout)
}

func newLogger(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

func LogError(logger logrus.FieldLogger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
