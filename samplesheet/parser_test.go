package samplesheet

import "testing"

func TestParseOverrideCycles(t *testing.T) {
	oc, err := ParseOverrideCycles("Y151;I8;I8;Y151")
	if err != nil {
		t.Fatal(err)
	}
	if len(oc) != 4 {
		t.Fatalf("got %d segments, want 4", len(oc))
	}
	if oc[0][0].Kind != KindRead || oc[0][0].Length != 151 {
		t.Errorf("segment 0 = %+v", oc[0])
	}
	if oc[1][0].Kind != KindIndex || oc[1][0].Length != 8 {
		t.Errorf("segment 1 = %+v", oc[1])
	}
	if got, want := oc.TotalCycles(), 151+8+8+151; got != want {
		t.Errorf("TotalCycles() = %d, want %d", got, want)
	}
}

func TestParseOverrideCyclesWithTrim(t *testing.T) {
	oc, err := ParseOverrideCycles("Y151;I8N2")
	if err != nil {
		t.Fatal(err)
	}
	if len(oc[1]) != 2 {
		t.Fatalf("segment 1 = %+v, want 2 runs", oc[1])
	}
	if oc[1][1].Kind != KindTrim || oc[1][1].Length != 2 {
		t.Errorf("trim run = %+v", oc[1][1])
	}
}

func TestParseOverrideCyclesRejectsMultipleReadRuns(t *testing.T) {
	if _, err := ParseOverrideCycles("Y100Y51"); err == nil {
		t.Error("expected error for two Y runs in one segment")
	}
}

func TestParseOverrideCyclesRejectsUnknownKind(t *testing.T) {
	if _, err := ParseOverrideCycles("Z100"); err == nil {
		t.Error("expected error for unknown cycle kind")
	}
}

func TestDataRowBarcodeKey(t *testing.T) {
	single := DataRow{Index: "ATCACG"}
	if got, want := single.BarcodeKey(), "ATCACG"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	dual := DataRow{Index: "ATCACG", Index2: "GGTCAA"}
	if got, want := dual.BarcodeKey(), "ATCACG+GGTCAA"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if s.AdapterBehavior != AdapterTrim {
		t.Errorf("default AdapterBehavior = %v, want trim", s.AdapterBehavior)
	}
	if s.AdapterStringency != 0.9 {
		t.Errorf("default AdapterStringency = %v, want 0.9", s.AdapterStringency)
	}
	if s.MinimumAdapterOverlap != 1 {
		t.Errorf("default MinimumAdapterOverlap = %v, want 1", s.MinimumAdapterOverlap)
	}
	if !s.TrimUMI {
		t.Error("default TrimUMI should be true")
	}
	if s.MaskShortReads != 22 {
		t.Errorf("default MaskShortReads = %v, want 22", s.MaskShortReads)
	}
}

func TestParseDataSection(t *testing.T) {
	lines := []string{
		"Lane,Sample_ID,index,index2",
		"1,S01,ATCACG,GGTCAA",
		"1,S02,CGATGT,",
	}
	rows, err := parseDataSection(lines)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Lane != 1 || rows[0].SampleID != "S01" || rows[0].Index != "ATCACG" || rows[0].Index2 != "GGTCAA" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Index2 != "" {
		t.Errorf("row 1 index2 = %q, want empty", rows[1].Index2)
	}
}
