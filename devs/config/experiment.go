package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/quaylabs/devsim/devs"
)

// ExperimentConfig is the JSON shape of an experiment file: where its
// model classes and results live, which model class to root the tree at,
// the simulated time window, the run count, and the paths to any shared
// global resource files.
type ExperimentConfig struct {
	Name              string            `json:"name"`
	ResultsDirectory  string            `json:"results_directory"`
	ModelDirectory    string            `json:"model_directory"`
	RootModelClass    string            `json:"root_model_class"`
	InitTime          string            `json:"init_time"`
	FinishTime        string            `json:"finish_time"`
	RandomSeed        int64             `json:"random_seed"`
	Iterations        uint64            `json:"iterations"`
	GlobalResources   map[string]string `json:"global_resources"`

	dir string
}

// LoadExperimentConfig reads and parses an experiment JSON file.
// ModelDirectory and ResultsDirectory, and every global_resources path,
// are resolved relative to the experiment file's own directory when not
// already absolute.
func LoadExperimentConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &devs.ConfigError{Msg: "reading experiment file " + path, Err: err}
	}
	var cfg ExperimentConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &devs.ConfigError{Msg: "parsing experiment file " + path, Err: err}
	}
	cfg.dir = filepath.Dir(path)

	initTime, err := parseTime(cfg.InitTime)
	if err != nil {
		return nil, &devs.ConfigError{Msg: "init_time", Err: err}
	}
	finishTime, err := parseTime(cfg.FinishTime)
	if err != nil {
		return nil, &devs.ConfigError{Msg: "finish_time", Err: err}
	}
	if finishTime.Compare(initTime) < 0 {
		return nil, &devs.ConfigError{Msg: "finish_time cannot be earlier than init_time"}
	}

	return &cfg, nil
}

func parseTime(s string) (devs.Time, error) {
	switch s {
	case "Infinity":
		return devs.Inf, nil
	case "StopSim":
		return devs.StopSim, nil
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return devs.Time{}, fmt.Errorf("cannot parse %q as a time value: %w", s, err)
		}
		return devs.ValueTime(n), nil
	}
}

// ModelDirectoryPath resolves ModelDirectory against the experiment file's
// own directory.
func (c *ExperimentConfig) ModelDirectoryPath() string {
	return resolvePath(c.dir, c.ModelDirectory)
}

// ResultsDirectoryPath resolves ResultsDirectory against the experiment
// file's own directory.
func (c *ExperimentConfig) ResultsDirectoryPath() string {
	return resolvePath(c.dir, c.ResultsDirectory)
}

// InitTimeValue parses InitTime.
func (c *ExperimentConfig) InitTimeValue() (devs.Time, error) { return parseTime(c.InitTime) }

// FinishTimeValue parses FinishTime.
func (c *ExperimentConfig) FinishTimeValue() (devs.Time, error) { return parseTime(c.FinishTime) }

// LoadGlobalResources reads every global_resources path (resolved
// relative to the experiment file's directory) as a JSON value, keyed by
// the resource name declared in the experiment config.
func (c *ExperimentConfig) LoadGlobalResources() (map[string]json.RawMessage, error) {
	resources := make(map[string]json.RawMessage, len(c.GlobalResources))
	for name, relPath := range c.GlobalResources {
		path := resolvePath(c.dir, relPath)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &devs.ConfigError{Msg: "reading global resource " + name, Err: err}
		}
		var v json.RawMessage
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, &devs.ConfigError{Msg: "parsing global resource " + name, Err: err}
		}
		resources[name] = v
	}
	return resources, nil
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
