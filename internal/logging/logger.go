package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config controls the process-wide logger.
type Config struct {
	Level  string
	Format string
}

var base = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// Setup applies cfg to the shared logger. Unknown levels fall back to info.
func Setup(cfg Config) {
	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if err != nil && cfg.Level != "" {
		base.WithField("level", cfg.Level).Warn("unknown log level, using info")
	}
}

// SetOutput redirects the shared logger, mainly for tests and CLIs.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// Logger returns the shared logger.
func Logger() *logrus.Logger {
	return base
}

// For returns an entry tagged with the given component.
func For(component string) *logrus.Entry {
	return base.WithField("component", component)
}
