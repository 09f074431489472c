package bcl

import "testing"

func TestBaseLookupInvariants(t *testing.T) {
	if got, want := BaseLookup[0], byte('N'); got != want {
		t.Errorf("BaseLookup[0] = %c, want %c", got, want)
	}
	acgt := "ACGT"
	for i := 1; i <= 254; i++ {
		want := acgt[byte(i)&0x03]
		if got := BaseLookup[i]; got != want {
			t.Errorf("BaseLookup[%d] = %c, want %c", i, got, want)
		}
	}
}

func TestQualLookupInvariants(t *testing.T) {
	if got, want := QualLookup[0], IlluminaMinQual; got != want {
		t.Errorf("QualLookup[0] = %d, want %d", got, want)
	}
	for i := 1; i <= 254; i++ {
		want := byte(i) >> 2
		if want < IlluminaMinQual {
			want = IlluminaMinQual
		}
		if got := QualLookup[i]; got != want {
			t.Errorf("QualLookup[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestBinsFromPairsForcesFirstEntry(t *testing.T) {
	pairs := []binPair{
		{fromQual: 0, toQual: 0},
		{fromQual: 1, toQual: 14},
		{fromQual: 2, toQual: 25},
		{fromQual: 3, toQual: 37},
	}
	bins := binsFromPairs(pairs)
	if got, want := bins[0], IlluminaMinQual; got != want {
		t.Errorf("bins[0] = %d, want %d", got, want)
	}
	if got, want := bins[1], byte(14); got != want {
		t.Errorf("bins[1] = %d, want %d", got, want)
	}
	if got, want := bins[3], byte(37); got != want {
		t.Errorf("bins[3] = %d, want %d", got, want)
	}
}

func TestBinsFromPairsEmpty(t *testing.T) {
	if got := binsFromPairs(nil); got != nil {
		t.Errorf("binsFromPairs(nil) = %v, want nil", got)
	}
}
