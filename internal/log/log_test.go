package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLoggerBeforeInit(t *testing.T) {
	require.NotNil(t, GetLogger())
	assert.True(t, GetLogger().IsInfoEnabled())
}

func TestFormatterPattern(t *testing.T) {
	f := &formatter{pattern: "%time [%level] %field %msg", time: "15:04:05"}
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	entry.Level = logrus.WarnLevel
	entry.Message = "hello"
	entry.Data = logrus.Fields{"iface": "eth0", "count": 3, "error": errors.New("boom")}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "03:04:05 [WARNING] count=3,error=boom,iface=eth0 hello\n", string(out))
}

func TestAdapterLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := newLogrusAdapterWithOutput(&LoggerConfig{Pattern: "%level %field %msg", Level: "warn"}, &buf)

	l.Info("dropped")
	l.WithField("k", "v").Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Equal(t, "WARNING k=v kept\n", buf.String())
	assert.False(t, l.IsDebugEnabled())
}

func TestAdapterCallerPattern(t *testing.T) {
	var buf bytes.Buffer
	l := newLogrusAdapterWithOutput(&LoggerConfig{Pattern: "%func %msg", Level: "info"}, &buf)
	l.Info("x")
	assert.True(t, strings.HasSuffix(buf.String(), " x\n"))
	assert.NotContains(t, buf.String(), "unknown")
}

func TestFileAppender(t *testing.T) {
	file := filepath.Join(t.TempDir(), "xsocket.log")
	cfg := &LoggerConfig{
		Level:     "debug",
		Pattern:   "%msg",
		Appenders: []AppenderConfig{{Type: AppenderFile, File: FileAppenderOpt{Filename: file, MaxSize: 1}}},
	}
	require.NoError(t, cfg.Validate())

	l, err := newLogrusAdapter(cfg)
	require.NoError(t, err)
	l.Debug("to file")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "to file\n", string(data))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, (&LoggerConfig{Level: "loud"}).Validate())
	assert.Error(t, (&LoggerConfig{Level: "info", Appenders: []AppenderConfig{{Type: "file"}}}).Validate())
	assert.Error(t, (&LoggerConfig{Level: "info", Appenders: []AppenderConfig{{Type: "kafka"}}}).Validate())
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, errors.New("nope") }

func TestMultiWriterContinuesPastFailure(t *testing.T) {
	var buf bytes.Buffer
	w := NewMultiWriter().Add(failWriter{}).Add(&buf)
	n, err := w.Write([]byte("abc"))
	assert.Equal(t, 3, n)
	assert.Error(t, err)
	assert.Equal(t, "abc", buf.String())
}
