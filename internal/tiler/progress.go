package tiler

import (
	"fmt"
	"time"

	pb "gopkg.in/cheggaaa/pb.v1"
)

// progress is one bar per zoom level; a nil progress prints nothing.
type progress struct {
	bar  *pb.ProgressBar
	zoom int
}

func newProgress(enabled bool, zoom int, total int64) *progress {
	if !enabled {
		return nil
	}
	bar := pb.New64(total).Prefix(fmt.Sprintf("Zoom %d : ", zoom)).Postfix("\n")
	bar.SetRefreshRate(time.Second)
	bar.Start()
	return &progress{bar: bar, zoom: zoom}
}

func (p *progress) Increment() {
	if p == nil {
		return
	}
	p.bar.Increment()
}

func (p *progress) Finish(id string) {
	if p == nil {
		return
	}
	p.bar.FinishPrint(fmt.Sprintf("Task %s Zoom %d finished ~", id, p.zoom))
}
