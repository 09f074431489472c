package bcl

import (
	"context"
	"encoding/binary"
	"io/ioutil"
	"sync"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

const filterHeaderSize = 12

// parseFilterPayload validates and strips the header from a whole filter
// file's contents, returning the per-cluster pass/fail byte vector.
func parseFilterPayload(path string, b []byte, nClusters uint32) ([]byte, error) {
	if len(b) < filterHeaderSize {
		return nil, errParse(path, StageFilterHeader, errShortField("filter_header"))
	}
	payload := b[filterHeaderSize:]
	if uint32(len(payload)) != nClusters {
		return nil, errFilterSizeMismatch(path)
	}
	return payload, nil
}

// filterVersion returns the filter file's format version, mostly useful for
// diagnostics; current CBCL filter files are version 3.
func filterVersion(b []byte) uint32 {
	if len(b) < filterHeaderSize {
		return 0
	}
	return binary.LittleEndian.Uint32(b[4:8])
}

// FilterProvider answers, for a tile number, whether a filter is registered
// for it and what its pass/fail bytes are. found=false means the tile has
// no filter registered for this lane (e.g. a PhiX-only tile) and is not an
// error; found=true with a non-nil error means the filter was expected but
// could not be read, which callers must treat as a configuration error.
type FilterProvider interface {
	Filter(tileNumber uint32) (data []byte, found bool, err error)
}

type filterEntry struct {
	once sync.Once
	data []byte
	err  error
}

// Cache is a per-lane filter cache keyed by tile number. Filters are read
// lazily on first request and cached by reference; concurrent callers
// requesting the same tile block on a single shared read via sync.Once,
// then see the cached result without re-reading the file.
type Cache struct {
	ctx      context.Context
	paths    map[uint32]string // tile_number -> filter file path
	mu       sync.Mutex
	entries  map[uint32]*filterEntry
	clusters map[uint32]uint32 // tile_number -> expected n_clusters, set via Register
}

// NewCache builds a filter cache over the given tile-number-to-path
// registration, typically derived from listing a lane's *.filter files via
// seqdir.
func NewCache(ctx context.Context, paths map[uint32]string) *Cache {
	return &Cache{
		ctx:      ctx,
		paths:    paths,
		entries:  make(map[uint32]*filterEntry),
		clusters: make(map[uint32]uint32),
	}
}

// SetExpectedClusters records the cluster count a tile's filter must match,
// as read from that tile's CBCL tile-table row. Filter always checks the
// payload length against this count, and a tile with no recorded count is
// checked against zero, so it must be called before Filter for that tile.
func (c *Cache) SetExpectedClusters(tileNumber, nClusters uint32) {
	c.mu.Lock()
	c.clusters[tileNumber] = nClusters
	c.mu.Unlock()
}

func (c *Cache) entryFor(tileNumber uint32) (*filterEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.paths[tileNumber]
	if !ok {
		return nil, false
	}
	e, ok := c.entries[tileNumber]
	if !ok {
		e = &filterEntry{}
		c.entries[tileNumber] = e
	}
	_ = path
	return e, true
}

// Filter implements FilterProvider.
func (c *Cache) Filter(tileNumber uint32) ([]byte, bool, error) {
	e, found := c.entryFor(tileNumber)
	if !found {
		return nil, false, nil
	}
	e.once.Do(func() {
		c.mu.Lock()
		path := c.paths[tileNumber]
		nClusters := c.clusters[tileNumber]
		c.mu.Unlock()
		e.data, e.err = c.readFilter(path, nClusters)
	})
	return e.data, true, e.err
}

func (c *Cache) readFilter(path string, nClusters uint32) ([]byte, error) {
	f, err := file.Open(c.ctx, path)
	if err != nil {
		return nil, errIO(path, err)
	}
	defer func() { _ = f.Close(c.ctx) }()

	raw, err := ioutil.ReadAll(f.Reader(c.ctx))
	if err != nil {
		return nil, errIO(path, err)
	}
	log.Debug.Printf("bcl: read filter %s (version %d)", path, filterVersion(raw))
	return parseFilterPayload(path, raw, nClusters)
}
