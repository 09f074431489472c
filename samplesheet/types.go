// Package samplesheet parses an Illumina SampleSheet.csv into the typed,
// read-only configuration record the demux worker pool consumes.
package samplesheet

// CycleKind classifies one run of an override_cycles segment.
type CycleKind byte

const (
	// KindIndex marks an index (barcode) run.
	KindIndex CycleKind = 'I'
	// KindRead marks a sequencing read run.
	KindRead CycleKind = 'Y'
	// KindUMI marks a unique-molecular-identifier run.
	KindUMI CycleKind = 'U'
	// KindTrim marks cycles dropped entirely.
	KindTrim CycleKind = 'N'
)

// CycleRun is one letter+count run within a single read segment, e.g. the
// "I8" in "I8N2".
type CycleRun struct {
	Kind   CycleKind
	Length int
}

// OverrideCycles is the full override_cycles directive: one segment per
// sequencer read (in the order reads are produced — typically R1, I1, I2,
// R2), each segment a list of runs. Every segment must contain exactly one
// Read or Index run.
type OverrideCycles [][]CycleRun

// TotalCycles returns the number of raw sequencer cycles the directive
// accounts for, summed across every run of every segment.
func (o OverrideCycles) TotalCycles() int {
	n := 0
	for _, seg := range o {
		for _, r := range seg {
			n += r.Length
		}
	}
	return n
}

// AdapterBehavior selects whether a detected adapter is trimmed away or
// masked to Ns in place.
type AdapterBehavior string

const (
	AdapterMask AdapterBehavior = "mask"
	AdapterTrim AdapterBehavior = "trim"
)

// CompressionFormat is the fastq_compression_format setting. The FASTQ sink
// writes gzip for every value; dragen-interleaved additionally makes the
// demux pool route R1 and R2 of a cluster to one shared destination.
type CompressionFormat string

const (
	CompressionGzip              CompressionFormat = "gzip"
	CompressionDragen            CompressionFormat = "dragen"
	CompressionDragenInterleaved CompressionFormat = "dragen-interleaved"
)

// Settings is the immutable, shared-by-reference configuration record the
// demux worker pool applies to every cluster.
type Settings struct {
	SoftwareVersion          string
	OverrideCycles           OverrideCycles
	AdapterRead1             []string
	AdapterRead2             []string
	AdapterBehavior          AdapterBehavior
	AdapterStringency        float64
	MinimumAdapterOverlap    int
	CreateFastqForIndexReads bool
	TrimUMI                  bool
	MaskShortReads           uint16
	NoLaneSplitting          bool
	FastqCompressionFormat   CompressionFormat
}

// DefaultSettings returns the documented defaults for every optional
// SampleSheet setting; ParseFile starts from this and overrides whatever
// the [Settings] section specifies.
func DefaultSettings() Settings {
	return Settings{
		AdapterBehavior:        AdapterTrim,
		AdapterStringency:      0.9,
		MinimumAdapterOverlap:  1,
		TrimUMI:                true,
		MaskShortReads:         22,
		FastqCompressionFormat: CompressionGzip,
	}
}

// DataRow is one row of the [Data] section: a single lane/sample/barcode
// assignment.
type DataRow struct {
	Lane     uint8
	SampleID string
	Index    string
	Index2   string
}

// SampleSheet is the fully parsed SampleSheet.csv.
type SampleSheet struct {
	RunName             string
	InstrumentPlatform  string
	Read1Cycles         uint16
	Read2Cycles         uint16
	Index1Cycles        uint16
	Index2Cycles        uint16
	Settings            Settings
	Data                []DataRow
}

// BarcodeKey returns the map key a demux worker uses to classify an index
// read against this row: index (+ index2 when paired).
func (d DataRow) BarcodeKey() string {
	if d.Index2 == "" {
		return d.Index
	}
	return d.Index + "+" + d.Index2
}
