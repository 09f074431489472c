package demux

import (
	"context"
	"io"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/seqtools/cbcldemux/bcl"
)

// ReaderPool is a fixed-size pool of workers, each owning one reusable
// bcl.CBclReader per lane it has seen, that drains a queue of CBCLTasks
// into a queue of DemuxUnits. This mirrors the channel-plus-WaitGroup worker pool the
// teacher's mark_duplicates.go uses for its BAM/PAM shard workers, with the
// queue here sized by the caller instead of pre-loaded with every task
// up front, so it can be fed incrementally under backpressure.
type ReaderPool struct {
	NumWorkers int
	// FilterProviders supplies the per-lane filter cache the readers apply
	// when a CBCL's non_pf_excluded flag is false.
	FilterProviders map[uint8]bcl.FilterProvider
	// OnError receives every non-fatal per-CBCL error (IO, parse, format).
	// It must not block.
	OnError func(task CBCLTask, err error)
}

// Run drains tasks into out until tasks is closed, then closes out and
// returns. It blocks sending to out, propagating backpressure from
// downstream consumers all the way back to whatever feeds tasks.
func (p *ReaderPool) Run(ctx context.Context, tasks <-chan CBCLTask, out chan<- DemuxUnit) {
	var wg sync.WaitGroup
	for i := 0; i < p.NumWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.runWorker(ctx, worker, tasks, out)
		}(i)
	}
	wg.Wait()
	close(out)
}

func (p *ReaderPool) runWorker(ctx context.Context, worker int, tasks <-chan CBCLTask, out chan<- DemuxUnit) {
	readers := map[uint8]*bcl.CBclReader{}

	for task := range tasks {
		if bcl.IsLegacyFilename(task.Path) {
			p.reportError(task, bcl.NewUnsupportedFormatError(task.Path))
			continue
		}

		r, ok := readers[task.Lane]
		if !ok {
			r = bcl.NewReader(p.FilterProviders[task.Lane], task.Lane)
			readers[task.Lane] = r
		}

		var err error
		if r.IsOpen() {
			err = r.ResetWith(ctx, task.Path, false)
		} else {
			err = r.Open(ctx, task.Path)
		}
		if err != nil {
			log.Error.Printf("reader worker %d: open %s: %v", worker, task.Path, err)
			p.reportError(task, err)
			continue
		}

		for {
			tb, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				log.Error.Printf("reader worker %d: %s: %v", worker, task.Path, err)
				p.reportError(task, err)
				break
			}
			tb.Lane = task.Lane
			out <- DemuxUnit{TileData: bcl.TileRow{TileNumber: tb.TileNumber}, Tile: tb, Cycle: task.Cycle, Lane: task.Lane}
		}
	}
}

func (p *ReaderPool) reportError(task CBCLTask, err error) {
	if p.OnError != nil {
		p.OnError(task, err)
	}
}
