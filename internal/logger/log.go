// Package logger builds the run logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/pkg/errors"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"
)

// Config selects where the log goes.
type Config struct {
	Level    string
	Dir      string
	Terminal bool
}

// New 初始化日志. With Dir set the log is appended to a dated file in it;
// with Terminal set it is also written to stdout. An unknown level falls back
// to info.
func New(c Config) (*logrus.Logger, error) {
	return newLogger(c, os.Stdout)
}

func newLogger(c Config, terminal io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	logIO := make([]io.Writer, 0, 2)
	if c.Dir != "" {
		if err := os.MkdirAll(c.Dir, os.ModePerm); err != nil {
			return nil, errors.Wrapf(err, "create log dir %s", c.Dir)
		}
		filename := filepath.Join(c.Dir, time.Now().Format("2006-01-02.log"))
		file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrapf(err, "open log file %s", filename)
		}
		logIO = append(logIO, file)
	}
	if c.Terminal {
		logIO = append(logIO, terminal)
	}

	// 融合日志输出
	log.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(logIO...)))

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log, nil
}
