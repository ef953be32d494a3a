// Package simulation provides a multi-run test harness for validating
// emergent dynamics of the rumor model.
//
// The harness exercises the real spreading.Simulation and SQLiteRunStore, no
// mocks. A Scenario names a configuration, a run length and a list of seeds;
// the Runner executes one run per seed, records every accepted pairing, and
// persists each outcome so assertions read back what the store returns.
//
// Each test gets an isolated SQLite database via t.TempDir() and a sandboxed
// HOME to prevent touching user data.
//
// Usage:
//
//	func TestVictimImmunity(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:   "victim-immunity",
//	        Config: cfg,
//	        Steps:  30,
//	        Seeds:  simulation.SeedRange(1, 20),
//	    })
//	    simulation.AssertVictimNeverStifler(t, result)
//	}
package simulation
