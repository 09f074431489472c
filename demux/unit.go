// Package demux implements the reader pool and demux worker pool that turn
// decoded CBCL tiles into per-sample FASTQ write records.
package demux

import "github.com/seqtools/cbcldemux/bcl"

// DemuxUnit is one CBCL tile's decoded output for a single cycle, as
// emitted by the reader pool. It is exclusively owned by whichever demux
// worker receives it.
type DemuxUnit struct {
	TileData bcl.TileRow
	Tile     bcl.TileBuffer
	Cycle    uint16
	Lane     uint8
}

// WriteRecord is one (cluster, read segment) output unit routed to the
// write router by Destination.
type WriteRecord struct {
	Destination string
	ID          string
	Reads       []byte
	Quals       []byte
}

// CBCLTask names one CBCL file for the reader pool to drain, tagged with
// the lane and cycle it belongs to (the reader itself only knows tile
// numbers; lane/cycle come from the directory structure that produced the
// path).
type CBCLTask struct {
	Path  string
	Lane  uint8
	Cycle uint16
}
