// Package conf reads the TOML configuration of a run.
package conf

import (
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"clustertiler/internal/cluster"
	"clustertiler/internal/source"
	"clustertiler/internal/tiler"
)

// Conf mirrors the configuration file.
type Conf struct {
	App struct {
		Version string `mapstructure:"version"`
		Title   string `mapstructure:"title"`
	} `mapstructure:"app"`
	Input struct {
		Path       string `mapstructure:"path"`
		ReadByLine bool   `mapstructure:"readByLine"`
		PointsOnly bool   `mapstructure:"pointsOnly"`
	} `mapstructure:"input"`
	Output struct {
		Path           string `mapstructure:"path"`
		LogDir         string `mapstructure:"logDir"`
		OutputTerminal bool   `mapstructure:"outputTerminal"`
		Progress       bool   `mapstructure:"progress"`
		MetricsFile    string `mapstructure:"metricsFile"`
	} `mapstructure:"output"`
	Cluster struct {
		MinZoom                   int      `mapstructure:"minZoom"`
		MaxZoom                   int      `mapstructure:"maxZoom"`
		Radius                    float64  `mapstructure:"radius"`
		Extent                    int      `mapstructure:"extent"`
		NodeSize                  int      `mapstructure:"nodeSize"`
		MinPoints                 int      `mapstructure:"minPoints"`
		SumProperties             []string `mapstructure:"sumProperties"`
		StoreClusterExpansionZoom bool     `mapstructure:"storeClusterExpansionZoom"`
		IncludeUnclustered        bool     `mapstructure:"includeUnclustered"`
	} `mapstructure:"cluster"`
	Tiles struct {
		Name              string   `mapstructure:"name"`
		Layer             string   `mapstructure:"layer"`
		Bounds            string   `mapstructure:"bounds"`
		Center            string   `mapstructure:"center"`
		Version           int      `mapstructure:"version"`
		Attribution       string   `mapstructure:"attribution"`
		Description       string   `mapstructure:"description"`
		GzipSynchronously bool     `mapstructure:"gzipSynchronously"`
		Concurrency       int      `mapstructure:"concurrency"`
		MaxTileBytes      int      `mapstructure:"maxTileBytes"`
		StrictTileSize    bool     `mapstructure:"strictTileSize"`
		Where             []string `mapstructure:"where"`
	} `mapstructure:"tiles"`
}

// FlagKeys maps configuration keys to the command line flags overriding them.
var FlagKeys = map[string]string{
	"input.path":  "input",
	"output.path": "output",
}

func setDefaults(v *viper.Viper) {
	d := tiler.DefaultOptions()

	v.SetDefault("app.version", "v0.1.0")
	v.SetDefault("app.title", "Cluster Tiler")

	v.SetDefault("input.path", "")
	v.SetDefault("input.readByLine", false)
	v.SetDefault("input.pointsOnly", true)

	v.SetDefault("output.path", "")
	v.SetDefault("output.logDir", "")
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("output.progress", false)
	v.SetDefault("output.metricsFile", "")

	v.SetDefault("cluster.minZoom", d.MinZoom)
	v.SetDefault("cluster.maxZoom", d.MaxZoom)
	v.SetDefault("cluster.radius", d.Radius)
	v.SetDefault("cluster.extent", d.Extent)
	v.SetDefault("cluster.nodeSize", d.NodeSize)
	v.SetDefault("cluster.minPoints", d.MinPoints)
	v.SetDefault("cluster.sumProperties", []string{})
	v.SetDefault("cluster.storeClusterExpansionZoom", false)
	v.SetDefault("cluster.includeUnclustered", false)

	v.SetDefault("tiles.name", "")
	v.SetDefault("tiles.layer", d.Layer)
	v.SetDefault("tiles.bounds", d.Bounds)
	v.SetDefault("tiles.center", d.Center)
	v.SetDefault("tiles.version", d.Version)
	v.SetDefault("tiles.attribution", "")
	v.SetDefault("tiles.description", "")
	v.SetDefault("tiles.gzipSynchronously", false)
	v.SetDefault("tiles.concurrency", 0)
	v.SetDefault("tiles.maxTileBytes", d.MaxTileBytes)
	v.SetDefault("tiles.strictTileSize", false)
	v.SetDefault("tiles.where", []string{})
}

// Load reads cfgFile, when given, over the defaults. Flags in flags named in
// FlagKeys override the file, and CLUSTERTILER_* environment variables
// override both.
func Load(cfgFile string, flags *pflag.FlagSet) (*Conf, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, errors.Wrapf(err, "config file(%s) not exist", cfgFile)
		}
		v.SetConfigType("toml")
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file(%s)", cfgFile)
		}
	}

	if flags != nil {
		for key, name := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "bind flag %s", name)
			}
		}
	}

	v.SetEnvPrefix("CLUSTERTILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	c := &Conf{}
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return c, nil
}

// Options converts the configuration into run options.
func (c *Conf) Options() (tiler.Options, error) {
	o := tiler.DefaultOptions()

	o.MinZoom = c.Cluster.MinZoom
	o.MaxZoom = c.Cluster.MaxZoom
	o.Radius = c.Cluster.Radius
	o.Extent = c.Cluster.Extent
	o.NodeSize = c.Cluster.NodeSize
	o.MinPoints = c.Cluster.MinPoints
	o.StoreClusterExpansionZoom = c.Cluster.StoreClusterExpansionZoom
	o.IncludeUnclustered = c.Cluster.IncludeUnclustered
	if len(c.Cluster.SumProperties) > 0 {
		o.Map, o.Reduce = cluster.SumProperties(c.Cluster.SumProperties...)
	}

	o.Output = c.Output.Path
	o.Progress = c.Output.Progress

	o.Name = c.Tiles.Name
	o.Layer = c.Tiles.Layer
	o.Bounds = c.Tiles.Bounds
	o.Center = c.Tiles.Center
	o.Version = c.Tiles.Version
	o.Attribution = c.Tiles.Attribution
	o.Description = c.Tiles.Description
	o.GzipSynchronously = c.Tiles.GzipSynchronously
	o.Concurrency = c.Tiles.Concurrency
	o.MaxTileBytes = c.Tiles.MaxTileBytes
	o.StrictTileSize = c.Tiles.StrictTileSize

	o.InputFilter = nil
	if c.Input.PointsOnly {
		o.InputFilter = source.PointsOnly
	}

	filter, err := Where(c.Tiles.Where)
	if err != nil {
		return o, err
	}
	o.Filter = filter

	return o, o.Validate()
}

// Where builds a tag filter from "key=value" terms. A feature is kept when
// every term matches, comparing the printed tag value. No terms keep all.
func Where(terms []string) (tiler.TagFilter, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	type term struct{ key, value string }
	parsed := make([]term, 0, len(terms))
	for _, t := range terms {
		kv := strings.SplitN(t, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, errors.Errorf("invalid where term %q, want key=value", t)
		}
		parsed = append(parsed, term{strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])})
	}

	return func(tags geojson.Properties) bool {
		for _, t := range parsed {
			v, ok := tags[t.key]
			if !ok || fmt.Sprint(v) != t.value {
				return false
			}
		}
		return true
	}, nil
}
