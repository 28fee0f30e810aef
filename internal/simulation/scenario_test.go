package simulation

import (
	"context"
	"errors"
	"testing"

	"github.com/nvandessel/epigraph/internal/epidemic"
)

func TestAllVariants(t *testing.T) {
	variants := AllVariants()
	if len(variants) != 12 {
		t.Fatalf("AllVariants() returned %d, want 12", len(variants))
	}
	seen := map[string]bool{}
	for _, v := range variants {
		if seen[v.Name()] {
			t.Errorf("duplicate variant %s", v.Name())
		}
		seen[v.Name()] = true
	}
	if !seen["timely/severity"] || !seen["none/none"] {
		t.Errorf("missing expected variants: %v", seen)
	}
	if got := (Variant{}).Name(); got != "none/none" {
		t.Errorf("zero Variant name = %q", got)
	}
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		isolation, admission string
		wantErr              bool
	}{
		{"partial", "sequential", false},
		{"none", "", false},
		{"quarantine", "none", true},
		{"none", "lottery", true},
	}
	for _, tt := range tests {
		_, err := ParseVariant(tt.isolation, tt.admission)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVariant(%q, %q) error = %v, wantErr %v", tt.isolation, tt.admission, err, tt.wantErr)
		}
	}
}

func TestDeriveSeed(t *testing.T) {
	seen := map[uint64]bool{}
	for i := 0; i < 100; i++ {
		s := DeriveSeed(7, i)
		if seen[s] {
			t.Fatalf("DeriveSeed(7, %d) repeated %d", i, s)
		}
		seen[s] = true
	}
	if DeriveSeed(7, 3) != DeriveSeed(7, 3) {
		t.Error("DeriveSeed is not deterministic")
	}
	if DeriveSeed(7, 0) == DeriveSeed(8, 0) {
		t.Error("different bases produced the same seed")
	}
}

func TestCompare(t *testing.T) {
	cfg := epidemic.DefaultConfig()
	cfg.Population.Size = 100
	opts := CompareOptions{Seed: 31, MaxDays: 30, Concurrency: 4}

	variants := AllVariants()
	a, err := Compare(context.Background(), cfg, variants, opts)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(a) != len(variants) {
		t.Fatalf("got %d outcomes for %d variants", len(a), len(variants))
	}
	for i, o := range a {
		if o.Variant.Name() != variants[i].Name() {
			t.Errorf("outcome %d is %s, want %s", i, o.Variant.Name(), variants[i].Name())
		}
		if o.Seed != DeriveSeed(31, i) {
			t.Errorf("outcome %d seed = %d", i, o.Seed)
		}
		if o.Result.Final.Isolation+"/"+o.Result.Final.Admission != o.Variant.Name() {
			t.Errorf("outcome %d ran %s/%s", i, o.Result.Final.Isolation, o.Result.Final.Admission)
		}
		AssertCountersConserved(t, o.Result, 100)
	}

	// Concurrency does not change any variant's trajectory.
	opts.Concurrency = 1
	b, err := Compare(context.Background(), cfg, variants, opts)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	for i := range a {
		if a[i].Result.Summary() != b[i].Result.Summary() {
			t.Errorf("%s: %+v vs %+v", a[i].Variant.Name(), a[i].Result.Summary(), b[i].Result.Summary())
		}
	}
}

func TestCompare_SameSeedSharesDayZero(t *testing.T) {
	cfg := epidemic.DefaultConfig()
	cfg.Population.Size = 80
	variants := []Variant{{}, {Isolation: epidemic.PartialIsolation{}}}

	out, err := Compare(context.Background(), cfg, variants, CompareOptions{Seed: 4, MaxDays: 1, SameSeed: true})
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if out[0].Result.Trajectory[0].Counters != out[1].Result.Trajectory[0].Counters {
		t.Error("variants with the same seed started from different populations")
	}
}

func TestCompare_InvalidConfig(t *testing.T) {
	cfg := epidemic.DefaultConfig()
	cfg.BedRate = 3

	_, err := Compare(context.Background(), cfg, AllVariants(), CompareOptions{MaxDays: 5})
	if !errors.Is(err, epidemic.ErrInvalidConfig) {
		t.Errorf("Compare() error = %v, want ErrInvalidConfig", err)
	}
}

func TestCompare_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compare(ctx, epidemic.DefaultConfig(), AllVariants(), CompareOptions{MaxDays: 50})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Compare() error = %v, want context.Canceled", err)
	}
}
