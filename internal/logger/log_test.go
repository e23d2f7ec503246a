package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_FileAndTerminal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var term bytes.Buffer

	log, err := newLogger(Config{Level: "debug", Dir: dir, Terminal: true}, &term)
	require.NoError(t, err)
	require.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("run", "abc").Infof("wrote %d tiles", 3)

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02.log")))
	require.NoError(t, err)
	require.Contains(t, string(data), "wrote 3 tiles")
	require.Contains(t, string(data), "INFO")
	require.Contains(t, string(data), "abc")
	require.Contains(t, term.String(), "wrote 3 tiles")
}

func TestNewLogger_Level(t *testing.T) {
	var term bytes.Buffer

	log, err := newLogger(Config{Level: "nonsense", Terminal: true}, &term)
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, log.GetLevel())

	log, err = newLogger(Config{Level: "warn", Terminal: true}, &term)
	require.NoError(t, err)
	log.Info("hidden")
	log.Warn("shown")
	require.NotContains(t, term.String(), "hidden")
	require.Contains(t, term.String(), "shown")
}

func TestNewLogger_Quiet(t *testing.T) {
	var term bytes.Buffer

	log, err := newLogger(Config{Level: "info"}, &term)
	require.NoError(t, err)
	log.Info("nowhere")
	require.Empty(t, term.String())
}
