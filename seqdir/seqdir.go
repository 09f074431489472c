// Package seqdir discovers and classifies an Illumina sequencing run
// directory, enumerating per-lane cycle directories and filter files for
// the CBCL ingestion pipeline.
package seqdir

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
)

var laneNames = [4]string{"L001", "L002", "L003", "L004"}

const filterExt = ".filter"

var cycleDirRE = regexp.MustCompile(`^C(\d+)\.(\d+)$`)

// Lane is one lane's enumerated CBCL cycle directories and filter files.
type Lane struct {
	Number  uint8
	Dir     string
	Cycles  []CycleDir
	Filters []string // absolute paths to *.filter files, one per tile group
}

// CycleDir is one C<cycle>.<chunk> directory within a lane.
type CycleDir struct {
	Cycle uint16
	Chunk uint16
	Dir   string
	CBCLs []string
}

// Discover enumerates a run's lane directories under
// <root>/Data/Intensities/BaseCalls and returns one Lane per populated
// L00{1..4} directory. Exactly 2 or 4 complete lanes are accepted; any
// other count is an error, matching the on-instrument convention that a
// run always has either a half or a full flow cell's worth of lanes.
func Discover(ctx context.Context, root string) ([]Lane, error) {
	baseCallsDir := filepath.Join(root, "Data", "Intensities", "BaseCalls")

	var lanes []Lane
	for i, name := range laneNames {
		dir := filepath.Join(baseCallsDir, name)
		if _, err := file.Stat(ctx, dir); err != nil {
			continue
		}
		lister := file.List(ctx, dir, true /*recursive*/)
		lane, err := laneFromEntries(uint8(i+1), dir, lister)
		if err != nil {
			return nil, errors.E(err, "lane", name)
		}
		lanes = append(lanes, lane)
	}

	switch len(lanes) {
	case 2, 4:
		return lanes, nil
	default:
		return nil, errors.E("incorrect number of lanes found, expected 2 or 4", strconv.Itoa(len(lanes)))
	}
}

// lister is the subset of file.List's return value laneFromEntries needs;
// declared locally so the function can be exercised with a fake in tests.
type lister interface {
	Scan() bool
	Path() string
	Err() error
}

func laneFromEntries(number uint8, dir string, entries lister) (Lane, error) {
	lane := Lane{Number: number, Dir: dir}
	cyclesByKey := map[string]*CycleDir{}

	for entries.Scan() {
		path := entries.Path()
		base := filepath.Base(path)
		parentBase := filepath.Base(filepath.Dir(path))

		switch {
		case strings.HasSuffix(base, filterExt):
			lane.Filters = append(lane.Filters, path)
		case strings.HasSuffix(base, ".cbcl") || strings.HasSuffix(base, ".cbcl.gz"):
			m := cycleDirRE.FindStringSubmatch(parentBase)
			if m == nil {
				continue
			}
			key := parentBase
			cd, ok := cyclesByKey[key]
			if !ok {
				cycle, _ := strconv.ParseUint(m[1], 10, 16)
				chunk, _ := strconv.ParseUint(m[2], 10, 16)
				cd = &CycleDir{Cycle: uint16(cycle), Chunk: uint16(chunk), Dir: filepath.Dir(path)}
				cyclesByKey[key] = cd
			}
			cd.CBCLs = append(cd.CBCLs, path)
		}
	}
	if err := entries.Err(); err != nil {
		return Lane{}, err
	}

	for _, cd := range cyclesByKey {
		sort.Strings(cd.CBCLs)
		lane.Cycles = append(lane.Cycles, *cd)
	}
	sort.Slice(lane.Cycles, func(i, j int) bool {
		if lane.Cycles[i].Cycle != lane.Cycles[j].Cycle {
			return lane.Cycles[i].Cycle < lane.Cycles[j].Cycle
		}
		return lane.Cycles[i].Chunk < lane.Cycles[j].Chunk
	})
	sort.Strings(lane.Filters)

	return lane, nil
}

// FilterPathsByTile derives a tile-number-to-filter-path registration for
// bcl.NewCache from a lane's filter file list, assuming the on-instrument
// naming convention "s_<lane>_<tile>.filter".
var tileFromFilterNameRE = regexp.MustCompile(`_(\d+)\.filter$`)

func (l Lane) FilterPathsByTile() map[uint32]string {
	out := make(map[uint32]string, len(l.Filters))
	for _, path := range l.Filters {
		m := tileFromFilterNameRE.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			continue
		}
		tile, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			continue
		}
		out[uint32(tile)] = path
	}
	return out
}
