package devs

import "math/rand"

// RunResult is what a single simulator-tree run produces: the full,
// per-model-name, per-observer-name result map assembled from every
// observer.Finish that returned ok, plus the simulation time the run
// actually stopped at (which may be less than the configured finish time
// if the model reached StopSim early).
type RunResult struct {
	StoppedAt Time
	Models    map[string]map[string]any
}

// Run drives root, a fully Init'd simulator tree, from root.TNext() to
// finishTime, applying the three-phase tick (collect_outputs,
// process_y_messages, process_x_messages) and advancing sim_time to
// root.TNext() after each tick, exactly as described for the root driver.
// A root whose t_next is already >= finishTime (including a passive root
// whose t_next is Inf) steps zero transitions.
//
// A t_next of StopSim ends the run immediately, before finishTime is
// reached, as does sim_time reaching finishTime exactly; in both cases
// Finish is still called once on every node before Run returns.
//
// An observer that fails asynchronously (see Failer) — e.g. the reference
// Logger hitting a write error — aborts the run the same way a kernel error
// does: Run checks every observer in the tree after each tick and again
// after Finish, returning the first reported error instead of the
// RunResult.
func Run(root *Simulator, finishTime Time) (RunResult, error) {
	simTime := root.TNext()

	for simTime.Less(finishTime) && !simTime.IsStopSim() {
		if _, err := root.CollectOutputs(simTime); err != nil {
			return RunResult{}, err
		}
		root.ProcessYMessages(simTime)
		if err := root.ProcessXMessages(simTime, nil); err != nil {
			return RunResult{}, err
		}
		if err := root.ObserverError(); err != nil {
			return RunResult{}, err
		}

		simTime = root.TNext()
	}

	results := make(map[string]map[string]any)
	root.Finish(simTime, results)
	if err := root.ObserverError(); err != nil {
		return RunResult{}, err
	}

	return RunResult{StoppedAt: simTime, Models: results}, nil
}

// newRNG builds the per-run deterministic PRNG from the experiment's base
// seed and the run's iteration number: seed = random_seed + iteration. The
// variant index never enters the seed, so every iteration of every variant
// that shares an iteration number starts from the same random stream.
func newRNG(randomSeed int64, iteration uint64) *rand.Rand {
	return rand.New(rand.NewSource(randomSeed + int64(iteration)))
}
