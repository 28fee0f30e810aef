// Package simulation drives epidemic runs and compares intervention policies.
//
// A Runner initializes an engine, hands every settled day to its observers
// and stops at the day limit, when the population is clear of infection, or
// when the context is cancelled. Observers see epidemic.Snapshot copies,
// never the live state, so renderers, recorders and metrics can run without
// coordinating with the engine.
//
// Compare runs several policy variants concurrently. Each variant gets its
// own engine and random source, seeded from the base seed, so a comparison
// is reproducible but the variants do not share a population.
//
// Usage:
//
//	engine, _ := epidemic.NewEngine(cfg, epidemic.NewSeededRand(42))
//	result, err := simulation.NewRunner().Run(ctx, engine, simulation.RunOptions{
//	    MaxDays:       200,
//	    StopWhenClear: true,
//	    Observers:     []simulation.Observer{recorder, metrics},
//	})
//	fmt.Println(result.DaysToClear)
package simulation
