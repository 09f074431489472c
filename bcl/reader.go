package bcl

import (
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// TileBuffer is one tile's worth of decoded clusters: bases and quals are
// always the same length.
type TileBuffer struct {
	Bases []byte
	Quals []byte

	TileNumber uint32
	Lane       uint8
	Cycle      uint16
}

type readerState int

const (
	stateHeader readerState = iota
	stateTile
	stateComplete
)

// CBclReader is a streaming, single-owner reader over one CBCL file. It
// reuses its compressed and decompressed scratch buffers across tiles and
// across files via ResetWith, and must never be shared between goroutines.
type CBclReader struct {
	ctx  context.Context
	path string
	f    file.File
	r    io.Reader

	state readerState
	hdr   Header
	nRead int

	compBuf   []byte
	decompBuf []byte
	gz        *gzip.Reader

	filters FilterProvider
	lane    uint8
}

// NewReader constructs an unopened reader; call Open before Next.
func NewReader(filters FilterProvider, lane uint8) *CBclReader {
	return &CBclReader{filters: filters, lane: lane, state: stateComplete}
}

// Open points the reader at path, reading nothing yet. The first Next call
// parses the header.
func (r *CBclReader) Open(ctx context.Context, path string) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errIO(path, err)
	}
	r.ctx = ctx
	r.path = path
	r.f = f
	return r.resetState(path)
}

// ResetWith repoints the reader at a new path, reusing both scratch
// buffers without reallocation. If clearTileCache is true the previously
// parsed header/tile table is discarded even before the next header read
// overwrites it (useful when a caller wants to free the old table's memory
// promptly rather than let it be GC'd alongside the new one).
func (r *CBclReader) ResetWith(ctx context.Context, path string, clearTileCache bool) error {
	if r.f != nil {
		_ = r.f.Close(r.ctx)
	}
	f, err := file.Open(ctx, path)
	if err != nil {
		return errIO(path, err)
	}
	r.ctx = ctx
	r.path = path
	r.f = f
	if clearTileCache {
		r.hdr = Header{}
	}
	return r.resetState(path)
}

func (r *CBclReader) resetState(path string) error {
	r.state = stateHeader
	r.nRead = 0
	r.r = r.f.Reader(r.ctx)
	return nil
}

// IsOpen reports whether Open has previously succeeded on this reader,
// letting a pool worker decide between Open and ResetWith for a
// lazily-initialized reader.
func (r *CBclReader) IsOpen() bool {
	return r.f != nil || r.path != ""
}

// ShrinkBuffer releases the compressed scratch buffer down to capacity to,
// if it currently exceeds it. It is a hint; callers should call it between
// CBCLs of very different tile sizes to avoid pinning a large allocation.
func (r *CBclReader) ShrinkBuffer(to int) {
	if cap(r.compBuf) > to {
		r.compBuf = make([]byte, 0, to)
	}
}

// ShrinkDecompBuffer is the decompressed-buffer analogue of ShrinkBuffer.
func (r *CBclReader) ShrinkDecompBuffer(to int) {
	if cap(r.decompBuf) > to {
		r.decompBuf = make([]byte, 0, to)
	}
}

// Close releases the underlying file handle. Safe to call multiple times.
func (r *CBclReader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close(r.ctx)
	r.f = nil
	return err
}

// Next advances the state machine and returns the next tile, io.EOF once
// the file is exhausted, or a *Error describing a parse/IO/decompress
// failure. Once a non-EOF error is returned the reader transitions to
// Complete permanently; subsequent Next calls keep returning io.EOF.
func (r *CBclReader) Next() (TileBuffer, error) {
	switch r.state {
	case stateComplete:
		return TileBuffer{}, io.EOF
	case stateHeader:
		if err := r.readHeader(); err != nil {
			r.state = stateComplete
			return TileBuffer{}, err
		}
		r.state = stateTile
		fallthrough
	case stateTile:
		return r.readTile()
	}
	return TileBuffer{}, io.EOF
}

func (r *CBclReader) readHeader() error {
	pre := make([]byte, preheaderSize)
	if _, err := io.ReadFull(r.r, pre); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errEOF(r.path)
		}
		return errIO(r.path, err)
	}
	version, headerSize, err := parsePreheader(r.path, pre)
	if err != nil {
		return err
	}
	if headerSize < preheaderSize {
		return errParse(r.path, StagePreheader, errShortField("header_size"))
	}
	rest := make([]byte, headerSize-preheaderSize)
	if _, err := io.ReadFull(r.r, rest); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return errEOF(r.path)
		}
		return errIO(r.path, err)
	}
	hdr, err := parseRestOfHeader(r.path, rest)
	if err != nil {
		return err
	}
	hdr.Version = version
	hdr.HeaderSize = headerSize
	r.hdr = hdr

	if r.filters != nil {
		for _, row := range hdr.Tiles {
			if c, ok := r.filters.(*Cache); ok {
				c.SetExpectedClusters(row.TileNumber, row.NClusters)
			}
		}
	}
	return nil
}

func (r *CBclReader) readTile() (TileBuffer, error) {
	if r.nRead == len(r.hdr.Tiles) {
		r.state = stateComplete
		return TileBuffer{}, io.EOF
	}
	row := r.hdr.Tiles[r.nRead]

	if cap(r.compBuf) < int(row.CompressedSize) {
		r.compBuf = make([]byte, row.CompressedSize)
	} else {
		r.compBuf = r.compBuf[:row.CompressedSize]
	}
	n, err := io.ReadFull(r.r, r.compBuf)
	if err != nil {
		r.state = stateComplete
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return TileBuffer{}, errCompSizeMismatch(r.path, row.CompressedSize, uint32(n))
		}
		return TileBuffer{}, errIO(r.path, err)
	}

	if cap(r.decompBuf) < int(row.UncompressedSize) {
		r.decompBuf = make([]byte, row.UncompressedSize)
	} else {
		r.decompBuf = r.decompBuf[:row.UncompressedSize]
	}

	if err := r.decompress(row); err != nil {
		r.state = stateComplete
		return TileBuffer{}, err
	}

	n2 := 2 * len(r.decompBuf)
	bases := make([]byte, n2)
	quals := make([]byte, n2)
	decodeTilePayload(r.decompBuf, bases, quals, r.hdr.Bins)

	if !r.hdr.NonPFExcluded {
		bases, quals, err = r.applyFilter(row.TileNumber, bases, quals)
		if err != nil {
			r.state = stateComplete
			return TileBuffer{}, err
		}
	}

	r.compBuf = r.compBuf[:0]
	r.decompBuf = r.decompBuf[:0]
	r.nRead++

	return TileBuffer{Bases: bases, Quals: quals, TileNumber: row.TileNumber, Lane: r.lane}, nil
}

func (r *CBclReader) decompress(row TileRow) error {
	if r.gz == nil {
		gz, err := gzip.NewReader(newByteReader(r.compBuf))
		if err != nil {
			return errDecompress(r.path, err)
		}
		r.gz = gz
	} else if err := r.gz.Reset(newByteReader(r.compBuf)); err != nil {
		return errDecompress(r.path, err)
	}
	got, err := io.ReadFull(r.gz, r.decompBuf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return errDecompress(r.path, err)
	}
	if uint32(got) != row.UncompressedSize {
		return errDecompSizeMismatch(r.path)
	}

	// io.ReadFull above only confirms the buffer was filled; it cannot see
	// whether the gzip stream had more left to give. Probe for one trailing
	// byte so a block that decompresses to more than uncompressedSize is
	// also caught, not just the too-short case.
	var extra [1]byte
	n, err := r.gz.Read(extra[:])
	if err != nil && err != io.EOF {
		return errDecompress(r.path, err)
	}
	if n > 0 {
		return errDecompSizeMismatch(r.path)
	}
	return nil
}

// applyFilter compacts bases/quals in place using a two-pointer walk over
// (bases, quals, filter) triples, retaining only positions whose filter
// byte is 1. This must never be simplified to re-checking a single filter
// element for every cluster.
func (r *CBclReader) applyFilter(tileNumber uint32, bases, quals []byte) ([]byte, []byte, error) {
	if r.filters == nil {
		return nil, nil, errConfig(r.path, errMissingFilter(tileNumber))
	}
	filterBytes, found, err := r.filters.Filter(tileNumber)
	if err != nil {
		return nil, nil, errConfig(r.path, err)
	}
	if !found {
		return nil, nil, errConfig(r.path, errMissingFilter(tileNumber))
	}
	if len(filterBytes) != len(bases) {
		return nil, nil, errFilterSizeMismatch(r.path)
	}

	w := 0
	for i := 0; i < len(bases); i++ {
		if filterBytes[i] == 1 {
			bases[w] = bases[i]
			quals[w] = quals[i]
			w++
		}
	}
	return bases[:w], quals[:w], nil
}

type missingFilterError struct{ tileNumber uint32 }

func (e *missingFilterError) Error() string {
	return "no filter registered for required tile"
}

func errMissingFilter(tileNumber uint32) error {
	return &missingFilterError{tileNumber: tileNumber}
}

// byteReader adapts a []byte into an io.Reader without copying, reusable
// across Reset calls by constructing a fresh view each time (the
// underlying array is not mutated during decompression).
type byteReader struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.b) {
		return 0, io.EOF
	}
	n := copy(p, b.b[b.pos:])
	b.pos += n
	return n, nil
}
