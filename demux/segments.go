package demux

import (
	"fmt"

	"github.com/seqtools/cbcldemux/samplesheet"
)

type outputKind int

const (
	outRead outputKind = iota
	outIndex
)

// planSegment is one override_cycles segment reduced to the cycle offset
// range it occupies in a cluster's full per-cycle byte array.
type planSegment struct {
	kind   outputKind
	num    int // 1-based Read or Index ordinal
	offset int
	runs   []samplesheet.CycleRun
}

// planSegments precomputes the cycle offsets for every segment of oc so
// splitSegments doesn't need to recompute cumulative offsets per cluster.
func planSegments(oc samplesheet.OverrideCycles) []planSegment {
	var out []planSegment
	offset := 0
	readNum, indexNum := 0, 0
	for _, seg := range oc {
		kind := outRead
		for _, r := range seg {
			if r.Kind == samplesheet.KindIndex {
				kind = outIndex
			}
		}
		var num int
		if kind == outRead {
			readNum++
			num = readNum
		} else {
			indexNum++
			num = indexNum
		}
		out = append(out, planSegment{kind: kind, num: num, offset: offset, runs: seg})
		for _, r := range seg {
			offset += r.Length
		}
	}
	return out
}

// outputSegment is one segment's extracted bases/quals for a single
// cluster, with its UMI run (if any) carried alongside for optional
// trimming.
type outputSegment struct {
	label    string
	kind     outputKind
	readNum  int
	bases    []byte
	quals    []byte
	umiBases []byte
}

// splitSegments applies plans to one cluster's full-cycle bases/quals,
// dropping N runs. U runs are pulled out of the emitted read when trimUMI
// is set (trim_umi, default true); otherwise they stay in place in the
// read's base/qual slices, matching their original cycle order.
func splitSegments(bases, quals []byte, plans []planSegment, trimUMI bool) []outputSegment {
	out := make([]outputSegment, 0, len(plans))
	for _, p := range plans {
		pos := p.offset
		var segBases, segQuals, umi []byte
		for _, r := range p.runs {
			switch r.Kind {
			case samplesheet.KindTrim:
			case samplesheet.KindUMI:
				umi = append(umi, bases[pos:pos+r.Length]...)
				if !trimUMI {
					segBases = append(segBases, bases[pos:pos+r.Length]...)
					segQuals = append(segQuals, quals[pos:pos+r.Length]...)
				}
			default:
				segBases = append(segBases, bases[pos:pos+r.Length]...)
				segQuals = append(segQuals, quals[pos:pos+r.Length]...)
			}
			pos += r.Length
		}
		out = append(out, outputSegment{
			label:    segmentLabel(p),
			kind:     p.kind,
			readNum:  p.num,
			bases:    segBases,
			quals:    segQuals,
			umiBases: umi,
		})
	}
	return out
}

func segmentLabel(p planSegment) string {
	if p.kind == outIndex {
		return fmt.Sprintf("I%d", p.num)
	}
	return fmt.Sprintf("R%d", p.num)
}

// classifyBarcode concatenates every index segment's bases (joined by "+"
// for dual-indexed runs) and looks the result up in the lane's barcode
// table.
func classifyBarcode(segs []outputSegment, barcodes map[string]string) (sampleID string, matched bool) {
	key := ""
	for _, s := range segs {
		if s.kind != outIndex {
			continue
		}
		if key != "" {
			key += "+"
		}
		key += string(s.bases)
	}
	sampleID, matched = barcodes[key]
	return sampleID, matched
}
