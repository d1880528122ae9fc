// Package logging wires the proxy's structured logger, grounded on
// chuimengdaoxizhou-go-redis's lib/logger (a logrus.TextFormatter setup)
// but configured straight from our own config.Config rather than a
// standalone Settings file-rotation struct, since this proxy logs to
// stdout/stderr like its teacher (Luit-rcp) rather than to a log file.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/config"
)

// successField is attached to Info-level entries emitted at the
// "success" verbosity, since logrus has no built-in Success level.
const successField = "success"

// Setup builds the root logger for the proxy process.
func Setup(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		DisableColors: cfg.DisableColors,
	})
	log.SetLevel(levelFor(cfg.LogLevel))
	return log
}

func levelFor(l config.LogLevel) logrus.Level {
	switch l {
	case config.LogDebug:
		return logrus.DebugLevel
	case config.LogInfo, config.LogSuccess:
		return logrus.InfoLevel
	case config.LogWarning:
		return logrus.WarnLevel
	case config.LogError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Component returns a child entry tagged for one of the proxy's
// subsystems, so log lines can be filtered by component the way the
// teacher's pack tags entries by package.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

// Success logs an Info-level entry flagged as a success-path event; used
// for the --log-level=success verbosity (bootstrap complete, listener up).
func Success(entry *logrus.Entry, args ...interface{}) {
	entry.WithField(successField, true).Info(args...)
}
