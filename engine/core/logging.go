package core

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	once.Do(
		func() {
			l := log.NewWithOptions(os.Stderr, log.Options{
				ReportCaller:    true,
				ReportTimestamp: true,
				TimeFormat:      time.RFC3339,
				Prefix:          "gfxbridge 🖼️ ",
			})
			l.SetLevel(log.InfoLevel)
			// helpers below add one frame
			l.SetCallerOffset(1)
			singleton = &logger{l}
		})
	return singleton
}

// LoggerOptions are the knobs exposed through the [log] config section.
type LoggerOptions struct {
	Level        string
	Prefix       string
	ReportCaller bool
	Output       io.Writer
}

// ConfigureLogger applies opts to the shared logger. Empty fields are left untouched.
func ConfigureLogger(opts LoggerOptions) error {
	l := getLogger()
	if opts.Level != "" {
		if err := SetLogLevel(opts.Level); err != nil {
			return err
		}
	}
	if opts.Prefix != "" {
		l.SetPrefix(opts.Prefix)
	}
	if opts.Output != nil {
		l.SetOutput(opts.Output)
	}
	l.SetReportCaller(opts.ReportCaller)
	return nil
}

// SetLogLevel parses level ("debug", "info", "warn", "error") and applies it.
func SetLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	getLogger().SetLevel(lvl)
	return nil
}

func GetLogLevel() log.Level {
	return getLogger().GetLevel()
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
