package bcl

// IlluminaMinQual is the minimum quality value used both as the value of
// QualLookup[0] and as the forced value of the first quality bin, mirroring
// the on-instrument convention that the zero bin is the no-call placeholder.
const IlluminaMinQual byte = 2

const noCallBase byte = 'N'

var bases = [4]byte{'A', 'C', 'G', 'T'}

// BaseLookup maps a raw 4-bit nibble value (widened to a byte) to the base
// call it represents. BaseLookup[0] is always 'N'; entries 1 through 254
// cycle through A/C/G/T on the low two bits, and entry 255 is zero. It is
// computed once at package
// initialization and never touched on the decode hot path.
var BaseLookup [256]byte

// QualLookup maps a raw 4-bit nibble value to its decoded quality when the
// CBCL has no quality-bin table. QualLookup[0] is IlluminaMinQual; entries
// 1 through 254 are max(IlluminaMinQual, nibble>>2), and entry 255 is zero.
var QualLookup [256]byte

func init() {
	BaseLookup[0] = noCallBase
	QualLookup[0] = IlluminaMinQual
	for i := 1; i < 255; i++ {
		BaseLookup[i] = bases[byte(i)&0x03]
		q := byte(i) >> 2
		if q < IlluminaMinQual {
			q = IlluminaMinQual
		}
		QualLookup[i] = q
	}
	// Index 255 is left at its zero value, matching the source table's
	// half-open construction loop (i in 1..254 inclusive).
}

// binsFromPairs materializes a CBCL quality-bin table into a flat lookup
// keyed by bin index (nibble >> 2). Per spec, the first entry is always
// forced to IlluminaMinQual regardless of what the file encodes, since the
// zero bin is the on-instrument no-call placeholder.
func binsFromPairs(pairs []binPair) []byte {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]byte, len(pairs))
	for i, p := range pairs {
		out[i] = byte(p.toQual)
	}
	out[0] = IlluminaMinQual
	return out
}
