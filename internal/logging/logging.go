package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger
var Log = logrus.New()

func init() {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// SetLevel sets the log level from a config string
func SetLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "info", "":
		Log.SetLevel(logrus.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	default:
		return fmt.Errorf("bad log level %q", level)
	}
	return nil
}

// SetFormat switches between "text" and "json" output
func SetFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("bad log format %q", format)
	}
	return nil
}
