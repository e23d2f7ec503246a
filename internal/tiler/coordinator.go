package tiler

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrTileTooLarge is returned for an oversized tile when StrictTileSize is set.
var ErrTileTooLarge = errors.New("tile too large")

// Coordinator encodes, compresses and stores entries. With a limit of one
// every Submit waits for the previous write, so rows land in traversal order.
type Coordinator struct {
	g    *errgroup.Group
	gctx context.Context

	sink     Sink
	layer    string
	enc      Encoder
	comp     Compressor
	maxBytes int
	strict   bool
	report   *Report
	log      logrus.FieldLogger
}

func newCoordinator(ctx context.Context, sink Sink, opts Options, report *Report, log logrus.FieldLogger) *Coordinator {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.limit())
	return &Coordinator{
		g:        g,
		gctx:     gctx,
		sink:     sink,
		layer:    opts.Layer,
		enc:      opts.encoder(),
		comp:     opts.compressor(),
		maxBytes: opts.MaxTileBytes,
		strict:   opts.StrictTileSize,
		report:   report,
		log:      log,
	}
}

// Context is cancelled once any unit has failed.
func (c *Coordinator) Context() context.Context {
	return c.gctx
}

// Submit schedules the write of e. It blocks while the limit is reached and
// returns the first failure once one has been observed.
func (c *Coordinator) Submit(e Entry) error {
	if err := c.gctx.Err(); err != nil {
		if werr := c.Wait(); werr != nil {
			return werr
		}
		return err
	}
	c.g.Go(func() error {
		return c.write(e)
	})
	return nil
}

// Go schedules an arbitrary unit in the same wait group as the tile rows.
func (c *Coordinator) Go(fn func(ctx context.Context) error) {
	c.g.Go(func() error {
		return fn(c.gctx)
	})
}

// Wait joins every scheduled unit and returns the first failure.
func (c *Coordinator) Wait() error {
	return c.g.Wait()
}

func (c *Coordinator) write(e Entry) error {
	t := e.T
	raw, err := c.enc.Encode(c.layer, e.Data)
	if err != nil {
		return errors.Wrapf(err, "encode tile %d/%d/%d", t.Z, t.X, t.Y)
	}
	data, err := c.comp.Compress(raw)
	if err != nil {
		return errors.Wrapf(err, "compress tile %d/%d/%d", t.Z, t.X, t.Y)
	}

	if c.maxBytes > 0 && len(data) > c.maxBytes {
		if c.strict {
			return errors.Wrapf(ErrTileTooLarge, "tile %d/%d/%d is %s", t.Z, t.X, t.Y, humanize.Bytes(uint64(len(data))))
		}
		c.log.Warnf("tile %d/%d/%d is %s, above %s", t.Z, t.X, t.Y,
			humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(c.maxBytes)))
		c.report.addOversized()
	}

	if err := c.sink.PutTile(c.gctx, uint32(t.Z), t.X, e.Row(), data); err != nil {
		return errors.Wrapf(err, "store tile %d/%d/%d", t.Z, t.X, t.Y)
	}
	c.report.addTile(int(t.Z), len(data))
	c.log.Debugf("tile %d/%d/%d, %d features, %s", t.Z, t.X, t.Y, len(e.Data.Features), humanize.Bytes(uint64(len(data))))
	return nil
}
