// Command devsim runs a DEVS experiment described by a JSON configuration
// file: `devsim single experiment.json` runs every (variant, iteration)
// pair sequentially; `devsim multi experiment.json` runs them across a
// bounded worker pool, one variant's iterations at a time.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quaylabs/devsim/devs"
	"github.com/quaylabs/devsim/devs/config"
	"github.com/quaylabs/devsim/devs/logger"
	"github.com/quaylabs/devsim/devs/registry"
	"github.com/quaylabs/devsim/devs/resultstore"
	"github.com/quaylabs/devsim/examples/pingpong"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s {single|multi} <experiment.json>\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	mode := os.Args[1]
	if mode != "single" && mode != "multi" {
		fmt.Fprintf(os.Stderr, "unknown mode %q: must be single or multi\n", mode)
		os.Exit(2)
	}

	if err := run(mode, os.Args[2]); err != nil {
		log.Printf("devsim: %v", err)
		os.Exit(1)
	}
}

func run(mode, experimentPath string) error {
	cfg, err := config.LoadExperimentConfig(experimentPath)
	if err != nil {
		return err
	}

	globalResources, err := cfg.LoadGlobalResources()
	if err != nil {
		return err
	}

	reg := registry.New()
	pingpong.Register(reg)
	reg.RegisterObserver("logger", func(ctx registry.ObserverContext) (devs.Observer, error) {
		return logger.New(ctx.SimDir, ctx.ModelFullName)
	})

	factory, err := config.NewModelFactory(cfg.ModelDirectoryPath(), reg, globalResources)
	if err != nil {
		return err
	}

	classes, err := config.LoadModelDirectory(cfg.ModelDirectoryPath())
	if err != nil {
		return err
	}
	variantSets, err := config.VariantSets(classes, cfg.RootModelClass)
	if err != nil {
		return err
	}
	enumerator := devs.NewVariantEnumerator(variantSets)

	initTime, err := cfg.InitTimeValue()
	if err != nil {
		return err
	}
	finishTime, err := cfg.FinishTimeValue()
	if err != nil {
		return err
	}

	resultsDir := cfg.ResultsDirectoryPath()

	registryPrometheus := prometheus.NewRegistry()
	metrics := devs.NewMetrics(registryPrometheus, cfg.Name)
	go serveMetrics(registryPrometheus)

	store, err := resultstore.NewSQLiteStore(filepath.Join(resultsDir, "results.db"))
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	build := func(variantIndex, iteration uint64, initValues map[string]json.RawMessage) (*devs.Simulator, error) {
		simDir := filepath.Join(resultsDir, "var_"+strconv.FormatUint(variantIndex, 10), "iter_"+strconv.FormatUint(iteration, 10))
		if err := os.MkdirAll(simDir, 0o755); err != nil {
			return nil, err
		}
		return factory.Build(cfg.RootModelClass, simDir, initValues)
	}

	experiment, err := devs.NewExperiment(cfg.RandomSeed, cfg.Iterations, initTime, finishTime, enumerator, build, devs.WithMetrics(metrics))
	if err != nil {
		return err
	}

	var outcomes []devs.RunOutcome
	if mode == "single" {
		outcomes = experiment.RunSingle()
	} else {
		outcomes = experiment.RunMulti()
	}

	failures := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failures++
			log.Printf("run %s failed: %v", outcome.RunID, outcome.Err)
			continue
		}
		if err := store.SaveOutcome(context.Background(), outcome); err != nil {
			log.Printf("run %s: failed to persist results: %v", outcome.RunID, err)
		}
	}

	log.Printf("devsim: %d runs completed, %d failed", len(outcomes), failures)
	if failures > 0 {
		return fmt.Errorf("%d of %d runs failed", failures, len(outcomes))
	}
	return nil
}

func serveMetrics(promRegistry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe("127.0.0.1:9090", mux); err != nil {
		log.Printf("devsim: metrics server: %v", err)
	}
}
