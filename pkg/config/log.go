package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NamedLogger creates a component logger writing to stderr.
func NamedLogger(name string, level logrus.Level) *logrus.Entry {
	return NamedLoggerTo(os.Stderr, name, level)
}

// NamedLoggerTo creates a component logger writing to out.
func NamedLoggerTo(out io.Writer, name string, level logrus.Level) *logrus.Entry {
	logger := &logrus.Logger{
		Out: out,
		Formatter: &CustomTextFormatter{
			TextFormatter: logrus.TextFormatter{DisableTimestamp: true},
			component:     name,
		},
		Hooks: make(logrus.LevelHooks),
		Level: level,
	}
	return logger.WithField("component", name)
}

// CustomTextFormatter prefixes each message with its component name.
type CustomTextFormatter struct {
	logrus.TextFormatter
	component string
}

// Format renders a single log entry
func (f *CustomTextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	entry.Message = fmt.Sprintf("[%-8s] %s", f.component, entry.Message)
	return f.TextFormatter.Format(entry)
}
