// Package log is the process-wide logger used by every tilegen package.
// It wraps logrus so log level and formatting are configured in one place.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if lvl := os.Getenv("TILEGEN_LOG_LEVEL"); lvl != "" {
		SetLevel(lvl)
	}
}

// SetLevel sets the process-wide log level by name (panic, fatal, error,
// warn, info, debug, trace). Unknown names are ignored.
func SetLevel(name string) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		return
	}
	std.SetLevel(lvl)
}

func Debug(args ...interface{})            { std.Debug(args...) }
func Debugf(f string, args ...interface{}) { std.Debugf(f, args...) }
func Info(args ...interface{})             { std.Info(args...) }
func Infof(f string, args ...interface{})  { std.Infof(f, args...) }
func Warn(args ...interface{})             { std.Warn(args...) }
func Warnf(f string, args ...interface{})  { std.Warnf(f, args...) }
func Error(args ...interface{})            { std.Error(args...) }
func Errorf(f string, args ...interface{}) { std.Errorf(f, args...) }
func Fatal(args ...interface{})            { std.Fatal(args...) }
func Fatalf(f string, args ...interface{}) { std.Fatalf(f, args...) }

// WithField returns an entry carrying a single structured field, for
// callers that want to attach e.g. a layer or coordinate to a burst of
// related log lines.
func WithField(key string, value interface{}) *logrus.Entry {
	return std.WithField(key, value)
}
