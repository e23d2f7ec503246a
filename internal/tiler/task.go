package tiler

import (
	"context"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"

	"clustertiler/internal/cluster"
	"clustertiler/internal/mbtiles"
	"clustertiler/internal/source"
)

// Task 生成任务, one run from an index into a container
type Task struct {
	ID      string
	TileMap TileMap

	index Index
	input []*geojson.Feature
	sink  Sink
	opts  Options
	log   logrus.FieldLogger
}

// NewTask 创建生成任务
func NewTask(index Index, input []*geojson.Feature, sink Sink, opts Options, log logrus.FieldLogger) (*Task, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	id, err := shortid.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "generate task id")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Task{
		ID:      id,
		TileMap: opts.TileMap(),
		index:   index,
		input:   input,
		sink:    sink,
		opts:    opts,
		log:     log.WithField("run", id),
	}, nil
}

// Run writes the fixed metadata, every tile of the pyramid and finally the
// layer descriptor. It returns the first failure of any of them.
func (task *Task) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := newReport(task.ID)
	defer func() {
		report.Duration = time.Since(start)
	}()

	for _, row := range task.TileMap.Rows() {
		if err := task.sink.PutMetadata(ctx, row[0], row[1]); err != nil {
			return report, err
		}
	}

	coord := newCoordinator(ctx, task.sink, task.opts, report, task.log)
	b := newBuilder(task.index, task.input, task.opts, report, task.log)

	task.log.Infof("Task %s starting, zoom %d-%d", task.ID, task.opts.MinZoom, task.opts.EffectiveMaxZoom())
	walkErr := b.Walk(coord.Context(), coord.Submit)

	if walkErr == nil {
		// 遍历结束, the schema is complete
		desc, err := task.TileMap.LayerJSON(task.opts.Layer, b.Schema)
		if err != nil {
			walkErr = err
		} else {
			coord.Go(func(ctx context.Context) error {
				return task.sink.PutMetadata(ctx, "json", desc)
			})
		}
	}

	if err := coord.Wait(); err != nil {
		return report, err
	}
	if walkErr != nil {
		return report, walkErr
	}

	task.log.Infof("Task %s finished, %d tiles, %d fields", task.ID, report.Tiles, len(b.Schema))
	return report, nil
}

// Run clusters features and writes the pyramid into a fresh container at
// opts.Output. The input filter narrows what is clustered, the augmenter
// still sees every feature.
func Run(ctx context.Context, features []*geojson.Feature, opts Options, log logrus.FieldLogger) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	input := features
	if opts.InputFilter != nil {
		input = source.Filter(features, opts.InputFilter)
	}
	log.Infof("clustering %d of %d features", len(input), len(features))
	index := cluster.New(opts.ClusterOptions()).Load(input)

	db, err := mbtiles.Create(ctx, opts.Output)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	task, err := NewTask(index, features, db, opts, log)
	if err != nil {
		return nil, err
	}
	return task.Run(ctx)
}
