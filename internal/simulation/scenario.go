package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/epigraph/internal/epidemic"
)

// Variant is one policy combination in a comparison.
type Variant struct {
	Isolation epidemic.IsolationPolicy
	Admission epidemic.AdmissionPolicy
}

// Name returns "isolation/admission".
func (v Variant) Name() string {
	return policyName(v.Isolation, epidemic.IsolationNone) + "/" + policyName(v.Admission, epidemic.AdmissionNone)
}

func policyName(p interface{ Name() string }, fallback string) string {
	if p == nil {
		return fallback
	}
	return p.Name()
}

// ParseVariant resolves isolation and admission names.
func ParseVariant(isolation, admission string) (Variant, error) {
	iso, err := epidemic.ParseIsolation(isolation)
	if err != nil {
		return Variant{}, err
	}
	adm, err := epidemic.ParseAdmission(admission)
	if err != nil {
		return Variant{}, err
	}
	return Variant{Isolation: iso, Admission: adm}, nil
}

// AllVariants returns every isolation and admission combination.
func AllVariants() []Variant {
	variants := make([]Variant, 0, len(epidemic.IsolationNames)*len(epidemic.AdmissionNames))
	for _, iso := range epidemic.IsolationNames {
		for _, adm := range epidemic.AdmissionNames {
			v, err := ParseVariant(iso, adm)
			if err != nil {
				panic(err)
			}
			variants = append(variants, v)
		}
	}
	return variants
}

// CompareOptions controls a comparison.
type CompareOptions struct {
	// Seed is the base seed; variant i runs with DeriveSeed(Seed, i).
	Seed uint64

	MaxDays       int
	StopWhenClear bool

	// Concurrency caps parallel runs. Zero means GOMAXPROCS.
	Concurrency int

	// SameSeed gives every variant the base seed, so all variants start
	// from the same population and contact draws.
	SameSeed bool

	Logger *slog.Logger
}

// Outcome is the result of one variant.
type Outcome struct {
	Variant Variant
	Seed    uint64
	Result  *Result
}

// DeriveSeed mixes the variant index into base (splitmix64 finalizer) so
// neighbouring indices get unrelated streams.
func DeriveSeed(base uint64, index int) uint64 {
	z := base + uint64(index+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Compare runs every variant of cfg concurrently. Outcomes are returned in
// variant order. The first failing run cancels the rest.
func Compare(ctx context.Context, cfg epidemic.Config, variants []Variant, opts CompareOptions) ([]Outcome, error) {
	outcomes := make([]Outcome, len(variants))

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, v := range variants {
		seed := opts.Seed
		if !opts.SameSeed {
			seed = DeriveSeed(opts.Seed, i)
		}
		g.Go(func() error {
			vcfg := cfg
			vcfg.Isolation = v.Isolation
			vcfg.Admission = v.Admission
			engine, err := epidemic.NewEngine(vcfg, epidemic.NewSeededRand(seed))
			if err != nil {
				return fmt.Errorf("%s: %w", v.Name(), err)
			}

			runner := NewRunner()
			if opts.Logger != nil {
				runner.SetLogger(opts.Logger.With("variant", v.Name()))
			}
			res, err := runner.Run(gctx, engine, RunOptions{
				MaxDays:       opts.MaxDays,
				StopWhenClear: opts.StopWhenClear,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", v.Name(), err)
			}
			outcomes[i] = Outcome{Variant: v, Seed: seed, Result: res}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
