package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

var (
	hf         bool
	configPath string
	logLevel   string
)

// InitFlag 初始化命令行参数. -i and -o override input.path and output.path.
func InitFlag() *flag.FlagSet {
	fs := flag.NewFlagSet("clustertiler", flag.ExitOnError)
	fs.BoolVarP(&hf, "help", "h", false, "this help")
	fs.StringVarP(&configPath, "config", "c", "./conf/conf.toml", "set config `file`")
	fs.StringVarP(&logLevel, "level", "l", "info", "set log level")
	fs.StringP("input", "i", "", "GeoJSON point collection, overrides input.path")
	fs.StringP("output", "o", "", "MBTiles file to create, overrides output.path")
	fs.Usage = func() { usage(fs) }
	_ = fs.Parse(os.Args[1:])

	if hf {
		fs.Usage()
		os.Exit(0)
	}
	return fs
}

func usage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `clustertiler version: clustertiler/v0.1.0
Usage: clustertiler [-h] [-c filename] [-l logLevel] [-i input] [-o output]
`)
	fs.PrintDefaults()
}
