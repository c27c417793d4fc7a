package devs

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TreeBuilder constructs a fresh, not-yet-Init'd simulator tree for one
// (variant, iteration) run. initValues holds the chosen init value for
// every model full path that declared a VariantSet; a tree builder is
// expected to fall back to each model's own default init value for any
// path absent from the map (a model with exactly one variant need not be
// listed). Each call must return an independent tree — trees are never
// shared across concurrent runs.
type TreeBuilder func(variantIndex, iteration uint64, initValues map[string]json.RawMessage) (*Simulator, error)

// RunOutcome is one (variant, iteration) run's result, or the error that
// aborted it. A failed run does not abort the rest of the experiment: the
// driver isolates it, wraps it in a RunError, and keeps going.
type RunOutcome struct {
	RunID     string
	Variant   uint64
	Iteration uint64
	Result    RunResult
	Err       error
}

// Experiment drives every (variant, iteration) pair an experiment
// configuration describes: it enumerates init variants, seeds a fresh
// *rand.Rand per run from RandomSeed+iteration, builds a fresh simulator
// tree via Build, and runs it from InitTime to FinishTime.
type Experiment struct {
	RandomSeed int64
	Iterations uint64
	InitTime   Time
	FinishTime Time
	Variants   *VariantEnumerator
	Build      TreeBuilder

	// Workers bounds the number of concurrent runs in RunMulti; 0 means
	// runtime.NumCPU(). RunSingle always runs one at a time regardless.
	Workers int

	// Metrics, if set, is fed active-run, tick, and run-duration
	// observations; nil disables all metrics recording.
	Metrics *Metrics
}

// ExperimentOption configures an Experiment at construction time.
type ExperimentOption func(*Experiment) error

// WithWorkers overrides the RunMulti concurrency cap.
func WithWorkers(n int) ExperimentOption {
	return func(e *Experiment) error {
		if n < 1 {
			return fmt.Errorf("devs: WithWorkers requires n >= 1, got %d", n)
		}
		e.Workers = n
		return nil
	}
}

// WithMetrics attaches a Metrics collector to the experiment.
func WithMetrics(m *Metrics) ExperimentOption {
	return func(e *Experiment) error {
		e.Metrics = m
		return nil
	}
}

// NewExperiment builds an Experiment ready to run.
func NewExperiment(randomSeed int64, iterations uint64, initTime, finishTime Time, variants *VariantEnumerator, build TreeBuilder, opts ...ExperimentOption) (*Experiment, error) {
	if finishTime.Compare(initTime) < 0 {
		return nil, &ConfigError{Msg: "finish_time cannot be earlier than init_time"}
	}
	e := &Experiment{
		RandomSeed: randomSeed,
		Iterations: iterations,
		InitTime:   initTime,
		FinishTime: finishTime,
		Variants:   variants,
		Build:      build,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Experiment) runOne(variantIndex, iteration uint64, initValues map[string]json.RawMessage) RunOutcome {
	started := time.Now()
	outcome := RunOutcome{RunID: uuid.NewString(), Variant: variantIndex, Iteration: iteration}

	root, err := e.Build(variantIndex, iteration, initValues)
	if err != nil {
		outcome.Err = &RunError{Variant: variantIndex, Iteration: iteration, Err: err}
		e.Metrics.ObserveRun(time.Since(started).Seconds(), false)
		return outcome
	}
	if e.Metrics != nil {
		root.observers = append(root.observers, TickObserver{Metrics: e.Metrics, Variant: variantIndex})
	}

	rng := newRNG(e.RandomSeed, iteration)
	root.Init(e.InitTime, rng)

	result, err := Run(root, e.FinishTime)
	if err != nil {
		outcome.Err = &RunError{Variant: variantIndex, Iteration: iteration, Err: err}
		e.Metrics.ObserveRun(time.Since(started).Seconds(), false)
		return outcome
	}
	outcome.Result = result
	e.Metrics.ObserveRun(time.Since(started).Seconds(), true)
	return outcome
}

// RunSingle runs every (variant, iteration) pair sequentially, in variant
// order and iteration order within each variant, and returns every
// outcome — including failed ones — in that same order.
func (e *Experiment) RunSingle() []RunOutcome {
	var outcomes []RunOutcome
	for {
		variantIndex, values, ok := e.Variants.Next()
		if !ok {
			break
		}
		for iter := uint64(0); iter < e.Iterations; iter++ {
			outcomes = append(outcomes, e.runOne(variantIndex, iter, values))
		}
	}
	return outcomes
}

// RunMulti runs every variant's iterations concurrently across a bounded
// worker pool, but never starts a variant's runs until the previous
// variant's runs have all completed — matching the reference driver's
// variant-at-a-time pool lifecycle. Outcomes are returned grouped by
// variant in enumeration order; within a variant, order follows
// completion, not iteration number.
func (e *Experiment) RunMulti() []RunOutcome {
	workers := e.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	var all []RunOutcome
	for {
		variantIndex, values, ok := e.Variants.Next()
		if !ok {
			break
		}

		sem := make(chan struct{}, workers)
		results := make(chan RunOutcome, e.Iterations)
		var wg sync.WaitGroup
		var inflight int
		var inflightMu sync.Mutex

		for iter := uint64(0); iter < e.Iterations; iter++ {
			wg.Add(1)
			sem <- struct{}{}
			inflightMu.Lock()
			inflight++
			e.Metrics.SetActiveRuns(inflight)
			inflightMu.Unlock()
			go func(iter uint64) {
				defer wg.Done()
				defer func() { <-sem }()
				defer func() {
					inflightMu.Lock()
					inflight--
					e.Metrics.SetActiveRuns(inflight)
					inflightMu.Unlock()
				}()
				results <- e.runOne(variantIndex, iter, values)
			}(iter)
		}

		wg.Wait()
		close(results)
		for outcome := range results {
			all = append(all, outcome)
		}
	}
	return all
}
