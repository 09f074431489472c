package pipeline

import (
	"context"

	"github.com/seqtools/cbcldemux/bcl"
	"github.com/seqtools/cbcldemux/demux"
	"github.com/seqtools/cbcldemux/samplesheet"
	"github.com/seqtools/cbcldemux/seqdir"
)

// BuildTasks flattens a run's discovered lanes into the CBCLTask list the
// orchestrator feeds into the reader pool, one task per CBCL file.
func BuildTasks(lanes []seqdir.Lane) []demux.CBCLTask {
	var tasks []demux.CBCLTask
	for _, lane := range lanes {
		for _, cd := range lane.Cycles {
			for _, path := range cd.CBCLs {
				tasks = append(tasks, demux.CBCLTask{Path: path, Lane: lane.Number, Cycle: cd.Cycle})
			}
		}
	}
	return tasks
}

// BuildFilterProviders constructs a per-lane bcl.Cache from each lane's
// discovered *.filter files, keyed by tile number per
// Lane.FilterPathsByTile.
func BuildFilterProviders(ctx context.Context, lanes []seqdir.Lane) map[uint8]bcl.FilterProvider {
	out := make(map[uint8]bcl.FilterProvider, len(lanes))
	for _, lane := range lanes {
		out[lane.Number] = bcl.NewCache(ctx, lane.FilterPathsByTile())
	}
	return out
}

// BuildBarcodeTables groups a parsed SampleSheet's [Data] rows into a
// per-lane barcode -> sample ID table, the lookup the demux worker pool
// classifies index reads against (spec §4.E step 2).
func BuildBarcodeTables(sheet *samplesheet.SampleSheet) map[uint8]map[string]string {
	out := map[uint8]map[string]string{}
	for _, row := range sheet.Data {
		table, ok := out[row.Lane]
		if !ok {
			table = map[string]string{}
			out[row.Lane] = table
		}
		table[row.BarcodeKey()] = row.SampleID
	}
	return out
}
