package bcl

import (
	"encoding/binary"
	"strings"
)

// IsLegacyFilename reports whether path names a legacy uncompressed BCL
// file (*.bcl or *.bcl.gz) rather than a CBCL (*.cbcl or *.cbcl.gz). The
// reader pool uses this to reject legacy inputs per-file instead of
// attempting to parse them as CBCL headers (spec §4.D, non-goal "No
// support for legacy uncompressed BCL").
func IsLegacyFilename(path string) bool {
	base := path
	base = strings.TrimSuffix(base, ".gz")
	return strings.HasSuffix(base, ".bcl")
}

// binPair is one (from_qual, to_qual) entry of a CBCL's quality-bin table.
// Only toQual survives into the materialized lookup; fromQual is retained
// here only because the on-disk record carries it.
type binPair struct {
	fromQual uint32
	toQual   uint32
}

// TileRow is one 16-byte entry of a CBCL's tile table.
type TileRow struct {
	TileNumber       uint32
	NClusters        uint32
	UncompressedSize uint32
	CompressedSize   uint32
}

// Header is the parsed CBCL header, excluding the tile payload blocks that
// follow it in the file.
type Header struct {
	Version         uint16
	HeaderSize      uint32
	BitsPerBaseCall uint8
	BitsPerQual     uint8
	NBins           uint32
	Bins            []byte // materialized lookup, nil if NBins == 0
	Tiles           []TileRow
	NonPFExcluded   bool
}

const preheaderSize = 6

// parsePreheader decodes the first 6 bytes of a CBCL file.
func parsePreheader(path string, b []byte) (version uint16, headerSize uint32, err error) {
	if len(b) < preheaderSize {
		return 0, 0, errEOF(path)
	}
	version = binary.LittleEndian.Uint16(b[0:2])
	headerSize = binary.LittleEndian.Uint32(b[2:6])
	return version, headerSize, nil
}

// parseRestOfHeader decodes everything between the preheader and the first
// tile payload: bits-per-call, the bin table, the tile table, and the
// non_pf_excluded flag. b must hold exactly headerSize-6 bytes.
func parseRestOfHeader(path string, b []byte) (h Header, err error) {
	if len(b) < 2 {
		return Header{}, errParse(path, StageHeader, errShortField("bits_per_basecall/bits_per_qual"))
	}
	h.BitsPerBaseCall = b[0]
	h.BitsPerQual = b[1]
	b = b[2:]

	if len(b) < 4 {
		return Header{}, errParse(path, StageHeader, errShortField("n_bins"))
	}
	h.NBins = binary.LittleEndian.Uint32(b[0:4])
	b = b[4:]

	if h.NBins > 0 {
		need := int(h.NBins) * 8
		if len(b) < need {
			return Header{}, errParse(path, StageHeader, errShortField("bin_table"))
		}
		pairs := make([]binPair, h.NBins)
		for i := range pairs {
			off := i * 8
			pairs[i] = binPair{
				fromQual: binary.LittleEndian.Uint32(b[off : off+4]),
				toQual:   binary.LittleEndian.Uint32(b[off+4 : off+8]),
			}
		}
		h.Bins = binsFromPairs(pairs)
		b = b[need:]
	}

	if len(b) < 4 {
		return Header{}, errParse(path, StageHeader, errShortField("n_tiles"))
	}
	nTiles := binary.LittleEndian.Uint32(b[0:4])
	b = b[4:]

	need := int(nTiles) * 16
	if len(b) < need {
		return Header{}, errParse(path, StageTileRow, errShortField("tile_table"))
	}
	h.Tiles = make([]TileRow, nTiles)
	for i := range h.Tiles {
		row, rest, rerr := parseTileRow(path, b)
		if rerr != nil {
			return Header{}, rerr
		}
		h.Tiles[i] = row
		b = rest
	}

	if len(b) < 1 {
		return Header{}, errParse(path, StageHeader, errShortField("non_pf_excluded"))
	}
	h.NonPFExcluded = b[0] == 1

	return h, nil
}

// parseTileRow decodes one fixed 16-byte tile-table record and returns the
// unconsumed remainder of b.
func parseTileRow(path string, b []byte) (TileRow, []byte, error) {
	if len(b) < 16 {
		return TileRow{}, nil, errParse(path, StageTileRow, errShortField("tile_row"))
	}
	row := TileRow{
		TileNumber:       binary.LittleEndian.Uint32(b[0:4]),
		NClusters:        binary.LittleEndian.Uint32(b[4:8]),
		UncompressedSize: binary.LittleEndian.Uint32(b[8:12]),
		CompressedSize:   binary.LittleEndian.Uint32(b[12:16]),
	}
	return row, b[16:], nil
}

// decodeTilePayload expands one decompressed tile block's nibble stream
// into base calls and qualities. input holds the raw decompressed bytes
// (each byte two nibbles, low nibble first); outBases and outQuals must
// each have length 2*len(input). bins is the materialized quality-bin
// table, or nil if the CBCL carries no binning.
func decodeTilePayload(input, outBases, outQuals []byte, bins []byte) {
	for k, b := range input {
		lo := b & 0x0F
		hi := (b >> 4) & 0x0F

		outBases[2*k] = BaseLookup[lo]
		outBases[2*k+1] = BaseLookup[hi]

		if len(bins) > 0 {
			outQuals[2*k] = bins[lo>>2]
			outQuals[2*k+1] = bins[hi>>2]
		} else {
			outQuals[2*k] = QualLookup[lo]
			outQuals[2*k+1] = QualLookup[hi]
		}
	}
}

type shortFieldError struct{ field string }

func (e *shortFieldError) Error() string { return "truncated field: " + e.field }

func errShortField(field string) error { return &shortFieldError{field: field} }
