package seqdir

import "testing"

type fakeLister struct {
	paths []string
	i     int
}

func (f *fakeLister) Scan() bool {
	if f.i >= len(f.paths) {
		return false
	}
	f.i++
	return true
}
func (f *fakeLister) Path() string { return f.paths[f.i-1] }
func (f *fakeLister) Err() error   { return nil }

func TestLaneFromEntries(t *testing.T) {
	l := &fakeLister{paths: []string{
		"/run/L001/C1.1/s_1_1101.cbcl",
		"/run/L001/C1.1/s_1_1102.cbcl",
		"/run/L001/C2.1/s_1_1101.cbcl",
		"/run/L001/s_1_1101.filter",
		"/run/L001/s_1_1102.filter",
		"/run/L001/not_a_cycle_dir/ignored.txt",
	}}
	lane, err := laneFromEntries(1, "/run/L001", l)
	if err != nil {
		t.Fatal(err)
	}
	if len(lane.Filters) != 2 {
		t.Errorf("got %d filters, want 2", len(lane.Filters))
	}
	if len(lane.Cycles) != 2 {
		t.Fatalf("got %d cycle dirs, want 2", len(lane.Cycles))
	}
	if lane.Cycles[0].Cycle != 1 || lane.Cycles[1].Cycle != 2 {
		t.Errorf("cycles not ordered: %+v", lane.Cycles)
	}
	if len(lane.Cycles[0].CBCLs) != 2 {
		t.Errorf("cycle 1 should have 2 cbcl files, got %d", len(lane.Cycles[0].CBCLs))
	}
}

func TestFilterPathsByTile(t *testing.T) {
	lane := Lane{Filters: []string{
		"/run/L001/s_1_1101.filter",
		"/run/L001/s_1_1102.filter",
	}}
	m := lane.FilterPathsByTile()
	if m[1101] != "/run/L001/s_1_1101.filter" {
		t.Errorf("tile 1101 = %s", m[1101])
	}
	if m[1102] != "/run/L001/s_1_1102.filter" {
		t.Errorf("tile 1102 = %s", m[1102])
	}
}
