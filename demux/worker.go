package demux

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/seqtools/cbcldemux/samplesheet"
)

// Pool is the demux worker pool (component E): it consumes DemuxUnits,
// assembles full-cycle reads per tile via tileAccumulator, and emits
// WriteRecords per cluster/read segment.
type Pool struct {
	NumWorkers int
	Settings   *samplesheet.Settings
	// Barcodes maps a lane to its barcode -> sample ID table.
	Barcodes map[uint8]map[string]string
	// UndeterminedDestination names the sink clusters with no barcode match
	// route to; if empty, unmatched clusters are discarded.
	UndeterminedDestination string
	OnError                 func(lane uint8, tileNumber uint32, err error)

	plans    []planSegment
	planOnce sync.Once
}

// Run consumes units until the channel is closed, emitting WriteRecords
// into out and closing out once every worker has drained. It blocks
// sending to out — the worker must never drop a record because the write
// queue is full.
func (p *Pool) Run(units <-chan DemuxUnit, out chan<- WriteRecord) {
	defer close(out)
	p.planOnce.Do(p.buildPlans)

	var wg sync.WaitGroup
	shardedUnits := make([]chan DemuxUnit, p.NumWorkers)
	for i := range shardedUnits {
		shardedUnits[i] = make(chan DemuxUnit, 1)
	}

	// Route by (lane, tile) so every cycle of a given tile lands on the same
	// worker, letting each worker own its accumulators without locking.
	go func() {
		defer func() {
			for _, ch := range shardedUnits {
				close(ch)
			}
		}()
		for u := range units {
			idx := int(u.Lane)*31 + int(u.Tile.TileNumber)
			if idx < 0 {
				idx = -idx
			}
			shardedUnits[idx%p.NumWorkers] <- u
		}
	}()

	for i := 0; i < p.NumWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.runWorker(shardedUnits[worker], out)
		}(i)
	}
	wg.Wait()
}

// runWorker never recovers from a panic: per §4.E, a panic in any demux
// worker terminates the whole pool rather than being treated as a
// per-tile error. Only expected configuration problems (e.g. an empty
// override_cycles plan) go through OnError and skip just the one tile.
func (p *Pool) runWorker(units <-chan DemuxUnit, out chan<- WriteRecord) {
	accs := map[tileKey]*tileAccumulator{}
	total := p.Settings.OverrideCycles.TotalCycles()

	for u := range units {
		key := tileKey{lane: u.Lane, tileNumber: u.Tile.TileNumber}
		acc, ok := accs[key]
		if !ok {
			acc = newTileAccumulator(total)
			accs[key] = acc
		}
		if !acc.add(u) {
			continue
		}
		delete(accs, key)

		if len(p.plans) == 0 {
			if p.OnError != nil {
				p.OnError(u.Lane, u.Tile.TileNumber, errEmptyOverrideCycles)
			}
			continue
		}
		p.emitTile(u.Lane, acc, out)
	}
}

var errEmptyOverrideCycles = errConfig("override_cycles produced no read or index segments")

func (p *Pool) emitTile(lane uint8, acc *tileAccumulator, out chan<- WriteRecord) {
	bases, quals := acc.assemble()
	barcodes := p.Barcodes[lane]

	for cluster := range bases {
		segs := splitSegments(bases[cluster], quals[cluster], p.plans, p.Settings.TrimUMI)

		sampleID, matched := classifyBarcode(segs, barcodes)
		dest := sampleID
		if !matched {
			if p.UndeterminedDestination == "" {
				continue
			}
			dest = p.UndeterminedDestination
		}

		id := strconv.Itoa(cluster)
		if p.Settings.TrimUMI {
			if umi := firstUMI(segs); len(umi) > 0 {
				id += ":" + string(umi)
			}
		}
		destBase := dest
		if !p.Settings.NoLaneSplitting {
			destBase = fmt.Sprintf("%s_L%03d", dest, lane)
		}
		for _, seg := range segs {
			if seg.kind == outIndex && !p.Settings.CreateFastqForIndexReads {
				continue
			}
			readBases, readQuals := seg.bases, seg.quals
			if seg.kind == outRead {
				readBases, readQuals = applyAdapterTrim(readBases, readQuals, seg.readNum, p.Settings)
			}
			destName := destBase + "_" + interleaveLabel(seg, p.Settings.FastqCompressionFormat)
			out <- WriteRecord{Destination: destName, ID: id, Reads: readBases, Quals: readQuals}
		}
	}
}

// interleaveLabel returns the destination-name suffix for one output
// segment, collapsing R1/R2 onto a shared "R" label under
// fastq_compression_format=dragen-interleaved so both land in the same
// sink. Ordering within a cluster's segment list (R1 before R2) plus the
// router's single-writer-per-destination guarantee (§4.F) is what makes
// the resulting file actually interleaved, with no buffering required
// here.
func interleaveLabel(seg outputSegment, format samplesheet.CompressionFormat) string {
	if format == samplesheet.CompressionDragenInterleaved && seg.kind == outRead {
		return "R"
	}
	return seg.label
}

// firstUMI returns the first non-empty trimmed UMI sequence across a
// cluster's segments, appended to the read ID the way bcl2fastq-compatible
// demultiplexers tag reads for downstream UMI-aware deduplication.
func firstUMI(segs []outputSegment) []byte {
	for _, s := range segs {
		if len(s.umiBases) > 0 {
			return s.umiBases
		}
	}
	return nil
}

func (p *Pool) buildPlans() {
	p.plans = planSegments(p.Settings.OverrideCycles)
}
