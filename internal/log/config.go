package log

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPattern = "%time [%level] %field %msg\n"
	DefaultTime    = "2006-01-02 15:04:05.000"

	AppenderConsole = "console"
	AppenderFile    = "file"
)

type LoggerConfig struct {
	Pattern   string           `mapstructure:"pattern" yaml:"pattern"`
	Time      string           `mapstructure:"time" yaml:"time"`
	Level     string           `mapstructure:"level" yaml:"level"`
	Appenders []AppenderConfig `mapstructure:"appenders" yaml:"appenders"`
}

type AppenderConfig struct {
	Type string          `mapstructure:"type" yaml:"type"`
	File FileAppenderOpt `mapstructure:"file" yaml:"file,omitempty"`
}

// DefaultConfig logs at info level to stdout.
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Pattern:   DefaultPattern,
		Time:      DefaultTime,
		Level:     "info",
		Appenders: []AppenderConfig{{Type: AppenderConsole}},
	}
}

// Validate checks the level name and every appender.
func (c *LoggerConfig) Validate() error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	for i, a := range c.Appenders {
		switch strings.ToLower(a.Type) {
		case AppenderConsole:
		case AppenderFile:
			if a.File.Filename == "" {
				return fmt.Errorf("appender %d: %w", i, errors.New("file appender requires filename"))
			}
		default:
			return fmt.Errorf("appender %d: unsupported type %q", i, a.Type)
		}
	}
	return nil
}
