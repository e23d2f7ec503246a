package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"clustertiler/internal/conf"
	"clustertiler/internal/logger"
	"clustertiler/internal/source"
	"clustertiler/internal/tiler"
)

func main() {
	// 初始化控制台
	flags := InitFlag()
	// 开始安全退出任务
	ctx, _ := InitSafeExit(context.Background())

	// 初始化配置
	c, err := conf.Load(configPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// 初始化日志
	log, err := logger.New(logger.Config{
		Level:    logLevel,
		Dir:      c.Output.LogDir,
		Terminal: c.Output.OutputTerminal,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(ctx, c, log); err != nil {
		log.Errorf("%s failed: %v", c.App.Title, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *conf.Conf, log *logrus.Logger) error {
	start := time.Now()

	opts, err := c.Options()
	if err != nil {
		return err
	}
	if c.Input.Path == "" {
		return errors.New("input path is required")
	}

	res, err := source.Load(c.Input.Path, c.Input.ReadByLine)
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		log.Infof("%d of %d lines of %s could not be parsed and were skipped", res.Skipped, res.Lines, c.Input.Path)
	}
	log.Infof("loaded %d features from %s", len(res.Features), c.Input.Path)

	report, err := tiler.Run(ctx, res.Features, opts, log)
	if err != nil {
		return err
	}

	if c.Output.MetricsFile != "" {
		if err := report.WriteMetrics(c.Output.MetricsFile); err != nil {
			log.Warnf("metrics not written: %v", err)
		}
	}

	log.Infof("%s: %d tiles, %s, %d oversized, %.3fs", opts.Output, report.Tiles,
		humanize.Bytes(uint64(report.Bytes)), report.Oversized, time.Since(start).Seconds())
	return nil
}
