package internaldefs

import (
	"strings"
	"testing"
)

func TestCounterNamesUniqueAndPrefixed(t *testing.T) {
	seen := make(map[string]bool, len(CounterDefs))
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "kindauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		if seen[def.Name] {
			t.Fatalf("duplicate counter name %q", def.Name)
		}
		seen[def.Name] = true
		if def.Help == "" {
			t.Fatalf("counter %q has no help", def.Name)
		}
	}
}

func TestBucketHelpers(t *testing.T) {
	if len(HistogramBoundSuffix) != len(HistogramBounds)+1 {
		t.Fatalf("suffixes must cover every finite bound plus +Inf")
	}
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 0, 3}))
	want := [8]uint64{1, 3, 3, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("cumulative = %v, want %v", got, want)
	}
}
