// Package pipeline implements the orchestrator (spec §4.H) that wires the
// CBCL reader pool, the demux worker pool, and the write router into one
// bounded, backpressured run, the way markduplicates.MarkDuplicates wires
// its own shard workers and PAM/BAM writers in the teacher repo.
package pipeline

import (
	"context"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/seqtools/cbcldemux/bcl"
	"github.com/seqtools/cbcldemux/demux"
	"github.com/seqtools/cbcldemux/fastqsink"
	"github.com/seqtools/cbcldemux/samplesheet"
)

// Config sizes the pipeline's worker pools and bounded queues.
type Config struct {
	ReaderWorkers int // reader pool size (component D); typically 2-8
	DemuxWorkers  int // demux pool size (component E); typically NumCPU
	DemuxCap      int // bound on the DemuxUnit queue between D and E
	WriteCap      int // bound on the WriteRecord queue between E and F

	UndeterminedDestination string

	// ErrorThreshold is the number of non-fatal errors of a single kind
	// the pipeline tolerates; the next error of that kind escalates to an
	// orchestrator-level fatal shutdown (spec §7). Zero disables escalation
	// entirely.
	ErrorThreshold int
}

// DefaultConfig returns reasonable pool sizes and queue bounds for a
// single-host run.
func DefaultConfig() Config {
	return Config{
		ReaderWorkers:  4,
		DemuxWorkers:   8,
		DemuxCap:       256,
		WriteCap:       256,
		ErrorThreshold: 50,
	}
}

// Orchestrator wires components A-G (bcl, demux, fastqsink) into one run
// per spec §4.H.
type Orchestrator struct {
	Config

	Settings *samplesheet.Settings
	// Filters maps lane number to that lane's filter cache.
	Filters map[uint8]bcl.FilterProvider
	// Barcodes maps lane number to that lane's barcode -> sample ID table.
	Barcodes map[uint8]map[string]string
	Sinks    fastqsink.SinkFactory
}

// Run feeds tasks through the reader pool, demux pool, and write router in
// that order, and returns the first fatal error encountered (nil on a
// clean run). Individual per-CBCL, per-tile, and per-destination errors
// are non-fatal and only reach Run's return value once ErrorThreshold is
// exceeded for one error class.
func (o *Orchestrator) Run(ctx context.Context, tasks []demux.CBCLTask) error {
	tasksCh := make(chan demux.CBCLTask)
	demuxCh := make(chan demux.DemuxUnit, o.DemuxCap)
	writeCh := make(chan demux.WriteRecord, o.WriteCap)
	stopCh := make(chan struct{})

	var fatal errors.Once
	var stopOnce sync.Once
	triggerShutdown := func(err error) {
		fatal.Set(err)
		stopOnce.Do(func() { close(stopCh) })
	}

	esc := newEscalator(o.ErrorThreshold)

	reader := &demux.ReaderPool{
		NumWorkers:      o.ReaderWorkers,
		FilterProviders: o.Filters,
		OnError: func(task demux.CBCLTask, err error) {
			log.Error.Printf("pipeline: reader: %s (lane %d, cycle %d): %v", task.Path, task.Lane, task.Cycle, err)
			if esc.record(kindOf(err)) {
				triggerShutdown(err)
			}
		},
	}

	demuxPool := &demux.Pool{
		NumWorkers:              o.DemuxWorkers,
		Settings:                o.Settings,
		Barcodes:                o.Barcodes,
		UndeterminedDestination: o.UndeterminedDestination,
		OnError: func(lane uint8, tileNumber uint32, err error) {
			log.Error.Printf("pipeline: demux: lane %d tile %d: %v", lane, tileNumber, err)
			if esc.record(kindOf(err)) {
				triggerShutdown(err)
			}
		},
	}

	router := &fastqsink.Router{
		Factory: o.Sinks,
		OnError: func(destination string, err error) {
			log.Error.Printf("pipeline: router: %s: %v", destination, err)
			if esc.record(kindOf(err)) {
				triggerShutdown(err)
			}
		},
		DroppedAfterShutdown: func(rec demux.WriteRecord) {
			log.Error.Printf("pipeline: dropped_after_shutdown: %s/%s", rec.Destination, rec.ID)
		},
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		reader.Run(ctx, tasksCh, demuxCh)
	}()
	go func() {
		defer wg.Done()
		demuxPool.Run(demuxCh, writeCh)
	}()
	go func() {
		defer wg.Done()
		router.Run(ctx, writeCh, stopCh)
	}()

	// Feed tasks until exhausted or a fatal shutdown closes stopCh; closing
	// tasksCh afterward lets the reader pool drain and exit, which in turn
	// closes demuxCh and then writeCh, draining the rest of the pipeline.
	go func() {
		defer close(tasksCh)
		for _, t := range tasks {
			select {
			case tasksCh <- t:
			case <-stopCh:
				return
			}
		}
	}()

	wg.Wait()
	return fatal.Err()
}

// kindOf buckets an error into the taxonomy class the escalator counts
// against ErrorThreshold: a bcl.Kind name for *bcl.Error, "other"
// otherwise.
func kindOf(err error) string {
	for k := bcl.KindIO; k <= bcl.KindCancelled; k++ {
		if bcl.IsKind(err, k) {
			return k.String()
		}
	}
	return "other"
}
