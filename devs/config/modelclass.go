// Package config loads JSON experiment and model-class configuration and
// turns it into a runnable devs.Experiment: it walks a model directory for
// *.json model classes, resolves a root model class into a full simulator
// tree via a registry.Registry, and builds per-(variant, iteration) trees
// for the experiment driver.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quaylabs/devsim/devs"
)

// ModelClass is the JSON shape of one model-class file: its ports, its
// submodels (each naming another model class), its three coupling tables,
// its default and root-level init variants, its local resources, and the
// observers attached to every instance of this class.
type ModelClass struct {
	Class                   string                    `json:"model_class"`
	InputPorts              []string                  `json:"input_ports"`
	OutputPorts             []string                  `json:"output_ports"`
	DynamicType             string                    `json:"dynamic_type"`
	Submodels               map[string]Submodel       `json:"submodels"`
	ExternalInputCouplings  []classExtInCoupl         `json:"external_input_couplings"`
	InternalCouplings       []classIntCoupl           `json:"internal_couplings"`
	ExternalOutputCouplings []classExtOutCoupl        `json:"external_output_couplings"`
	DefaultInit             json.RawMessage           `json:"default_init"`
	RootInitVariants        map[string]json.RawMessage `json:"root_init_variants,omitempty"`
	LocalResources          json.RawMessage           `json:"local_resources"`
	Observers               []ObserverClass           `json:"observers"`
}

// Submodel names another model class to instantiate as a child, and
// optionally the named init variants available for that child.
type Submodel struct {
	ModelClass   string                     `json:"model_class"`
	InitVariants map[string]json.RawMessage `json:"init_variants,omitempty"`
}

// ObserverClass names an observer to attach to every instance of a model
// class, plus that observer's own JSON configuration block.
type ObserverClass struct {
	ObserverClass  string          `json:"observer_class"`
	ObserverConfig json.RawMessage `json:"observer_config"`
}

type classExtInCoupl struct {
	SrcPort string `json:"src_port"`
	DstModel string `json:"dst_model"`
	DstPort string `json:"dst_port"`
}

type classIntCoupl struct {
	SrcModel string `json:"src_model"`
	SrcPort  string `json:"src_port"`
	DstModel string `json:"dst_model"`
	DstPort  string `json:"dst_port"`
}

type classExtOutCoupl struct {
	SrcModel string `json:"src_model"`
	SrcPort  string `json:"src_port"`
	DstPort  string `json:"dst_port"`
}

// LoadModelDirectory recursively walks dir for *.json files, parses each
// as a ModelClass, and returns them keyed by their own declared
// model_class name (not by file path — a class may live at any path).
func LoadModelDirectory(dir string) (map[string]*ModelClass, error) {
	classes := make(map[string]*ModelClass)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading model class file %s: %w", path, err)
		}
		var class ModelClass
		if err := json.Unmarshal(data, &class); err != nil {
			return fmt.Errorf("parsing model class file %s: %w", path, err)
		}
		classes[class.Class] = &class
		return nil
	})
	if err != nil {
		return nil, &devs.ConfigError{Msg: "loading model directory " + dir, Err: err}
	}
	return classes, nil
}

// VariantSets collects every model full path's declared variant set,
// walking the tree breadth-first from rootClassName, for use by
// devs.NewVariantEnumerator. Root-level variants come from the root
// class's root_init_variants; every other model's variants come from the
// Submodel entry that names it.
func VariantSets(classes map[string]*ModelClass, rootClassName string) (map[string]devs.VariantSet, error) {
	sets := make(map[string]devs.VariantSet)

	rootClass, ok := classes[rootClassName]
	if !ok {
		return nil, &devs.ConfigError{Msg: "root model class not found: " + rootClassName}
	}
	if len(rootClass.RootInitVariants) == 0 {
		// A model with zero declared variants still contributes a length-1
		// digit carrying its default (spec §4.5), the root included.
		sets["root"] = devs.VariantSet{"default": rootClass.DefaultInit}
	} else {
		sets["root"] = devs.VariantSet(rootClass.RootInitVariants)
	}

	type queued struct {
		fullName  string
		className string
	}
	queue := []queued{{fullName: "root", className: rootClassName}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		class, ok := classes[cur.className]
		if !ok {
			return nil, &devs.ConfigError{Msg: "model class not found: " + cur.className}
		}
		for name, sub := range class.Submodels {
			fullName := cur.fullName + "/" + name
			if len(sub.InitVariants) > 0 {
				sets[fullName] = devs.VariantSet(sub.InitVariants)
			}
			queue = append(queue, queued{fullName: fullName, className: sub.ModelClass})
		}
	}

	return sets, nil
}
