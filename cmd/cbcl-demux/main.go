/*
cbcl-demux reads an Illumina sequencing run directory, applies a
SampleSheet.csv's demultiplexing configuration, and writes one gzip FASTQ
per sample/read/lane destination.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/seqtools/cbcldemux/fastqsink"
	"github.com/seqtools/cbcldemux/pipeline"
	"github.com/seqtools/cbcldemux/samplesheet"
	"github.com/seqtools/cbcldemux/seqdir"
)

var (
	input         = flag.String("input", "", "Path to the Illumina sequencing run directory (required)")
	sampleSheet   = flag.String("samplesheet", "", "Path to SampleSheet.csv; defaults to <input>/SampleSheet.csv")
	outDir        = flag.String("out", ".", "Directory to write per-destination FASTQ files into")
	verbose       = flag.Int("verbose", 0, "Verbosity level: 0, 1, or 2")
	readerWorkers = flag.Int("reader-workers", 4, "Number of CBCL reader pool workers")
	demuxWorkers  = flag.Int("demux-workers", 0, "Number of demux worker pool threads; 0 = runtime.NumCPU()")
	demuxCap      = flag.Int("demux-queue-cap", 256, "Bound on the DemuxUnit queue between the reader pool and the demux pool")
	writeCap      = flag.Int("write-queue-cap", 256, "Bound on the WriteRecord queue between the demux pool and the write router")
	undetermined  = flag.String("undetermined", "Undetermined", "Destination name for clusters with no barcode match; empty discards them")
	errThreshold  = flag.Int("error-threshold", 50, "Non-fatal errors of one kind before the pipeline aborts")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s --input <seqdir> [flags]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	shutdown := grail.Init()
	defer shutdown()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "cbcl-demux: --input is required")
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cbcl-demux: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := vcontext.Background()

	sheetPath := *sampleSheet
	if sheetPath == "" {
		sheetPath = *input + "/SampleSheet.csv"
	}
	sheet, err := samplesheet.ParseFile(ctx, sheetPath)
	if err != nil {
		return fmt.Errorf("parse samplesheet: %w", err)
	}

	lanes, err := seqdir.Discover(ctx, *input)
	if err != nil {
		return fmt.Errorf("discover sequencing directory: %w", err)
	}

	cfg := pipeline.DefaultConfig()
	cfg.ReaderWorkers = *readerWorkers
	if *demuxWorkers > 0 {
		cfg.DemuxWorkers = *demuxWorkers
	} else {
		cfg.DemuxWorkers = runtime.NumCPU()
	}
	cfg.DemuxCap = *demuxCap
	cfg.WriteCap = *writeCap
	cfg.UndeterminedDestination = *undetermined
	cfg.ErrorThreshold = *errThreshold

	orch := &pipeline.Orchestrator{
		Config:   cfg,
		Settings: &sheet.Settings,
		Filters:  pipeline.BuildFilterProviders(ctx, lanes),
		Barcodes: pipeline.BuildBarcodeTables(sheet),
		Sinks: &fastqsink.DirFactory{
			Dir:    *outDir,
			Format: sheet.Settings.FastqCompressionFormat,
		},
	}

	tasks := pipeline.BuildTasks(lanes)
	log.Printf("cbcl-demux: %d lanes, %d CBCL files, writing to %s", len(lanes), len(tasks), *outDir)
	if *verbose > 0 {
		log.Debug.Printf("cbcl-demux: override_cycles=%v reader_workers=%d demux_workers=%d", sheet.Settings.OverrideCycles, cfg.ReaderWorkers, cfg.DemuxWorkers)
	}

	return orch.Run(ctx, tasks)
}
