package demux

import (
	"strings"

	"github.com/seqtools/cbcldemux/internal/util"
	"github.com/seqtools/cbcldemux/samplesheet"
)

// adaptersFor returns the configured adapter sequence list for readNum (1
// or 2), splitting the SampleSheet's "+"-separated adapter_read_N field.
func adaptersFor(readNum int, s *samplesheet.Settings) []string {
	var field string
	switch readNum {
	case 1:
		field = strings.Join(s.AdapterRead1, "+")
	case 2:
		field = strings.Join(s.AdapterRead2, "+")
	default:
		return nil
	}
	if field == "" {
		return nil
	}
	return strings.Split(field, "+")
}

// applyAdapterTrim scans the trailing window of bases for a match against
// every configured adapter for this read number, using a bounded
// Levenshtein distance as the scoring model (SPEC_FULL.md open question
// (c)): a window of the adapter's length is accepted when
// 1 - distance/len(adapter) >= adapter_stringency and the overlap is at
// least minimum_adapter_overlap. On a match, adapter_behavior selects
// trimming (shortening the read) or masking (replacing the matched tail
// with Ns, preserving length). Reads shorter than mask_short_reads after
// trimming are masked to Ns of their original length.
func applyAdapterTrim(bases, quals []byte, readNum int, s *samplesheet.Settings) ([]byte, []byte) {
	adapters := adaptersFor(readNum, s)
	if len(adapters) == 0 {
		return bases, quals
	}

	matchStart := -1
	for _, adapter := range adapters {
		if start, ok := findAdapterMatch(bases, adapter, s.AdapterStringency, s.MinimumAdapterOverlap); ok {
			if matchStart == -1 || start < matchStart {
				matchStart = start
			}
		}
	}
	if matchStart == -1 {
		return bases, quals
	}

	switch s.AdapterBehavior {
	case samplesheet.AdapterMask:
		for i := matchStart; i < len(bases); i++ {
			bases[i] = 'N'
		}
		return maskIfShort(bases, quals, bases, quals, s.MaskShortReads)
	default: // AdapterTrim
		trimmedBases, trimmedQuals := bases[:matchStart], quals[:matchStart]
		return maskIfShort(trimmedBases, trimmedQuals, bases, quals, s.MaskShortReads)
	}
}

// maskIfShort masks a read to all-Ns when result (the read after adapter
// trimming or masking) falls below mask_short_reads bases. Per spec §4.E
// step 3, a short result is masked to Ns of the read's original
// (pre-trim) length, not the shortened trimmed length: origBases/origQuals
// are the full pre-trim read, result/resultQuals the post-trim/mask read
// whose length gates the check.
func maskIfShort(result, resultQuals, origBases, origQuals []byte, minLen uint16) ([]byte, []byte) {
	if len(result) >= int(minLen) {
		return result, resultQuals
	}
	masked := make([]byte, len(origBases))
	for i := range masked {
		masked[i] = 'N'
	}
	return masked, origQuals
}

// findAdapterMatch scans windows of up to len(adapter) in bases from the
// start of the read onward and stops at the first window whose score meets
// stringency; later windows, even better-scoring ones, are not examined.
// It returns the read offset the adapter was found to start at.
func findAdapterMatch(bases []byte, adapter string, stringency float64, minOverlap int) (int, bool) {
	if adapter == "" || len(bases) == 0 {
		return 0, false
	}
	n := len(adapter)
	best := -1
	for start := 0; start < len(bases); start++ {
		overlap := len(bases) - start
		if overlap > n {
			overlap = n
		}
		if overlap < minOverlap {
			break
		}
		window := string(bases[start:])
		if len(window) > n {
			window = window[:n]
		}
		a := adapter
		if len(a) > len(window) {
			a = a[:len(window)]
		}
		dist := util.Levenshtein(window, a, "", "")
		score := 1 - float64(dist)/float64(len(a))
		if score >= stringency {
			best = start
			break
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}
