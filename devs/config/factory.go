package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/quaylabs/devsim/devs"
	"github.com/quaylabs/devsim/devs/registry"
)

// ModelFactory builds simulator trees from parsed model classes, a
// behavior/observer Registry, and the experiment's global resources.
type ModelFactory struct {
	classes         map[string]*ModelClass
	registry        *registry.Registry
	globalResources map[string]json.RawMessage
}

// NewModelFactory loads every *.json model class under modelDir.
func NewModelFactory(modelDir string, reg *registry.Registry, globalResources map[string]json.RawMessage) (*ModelFactory, error) {
	classes, err := LoadModelDirectory(modelDir)
	if err != nil {
		return nil, err
	}
	return &ModelFactory{classes: classes, registry: reg, globalResources: globalResources}, nil
}

// Build constructs a full, not-yet-Init'd simulator tree rooted at
// rootClassName named "root", applying any per-full-path init value
// override present in initValues (falling back to each model class's own
// default_init), and attaching simDir-scoped observers from every model
// class's observers list.
func (f *ModelFactory) Build(rootClassName string, simDir string, initValues map[string]json.RawMessage) (*devs.Simulator, error) {
	return f.build(rootClassName, "root", simDir, initValues)
}

func (f *ModelFactory) build(className, fullName, simDir string, initValues map[string]json.RawMessage) (*devs.Simulator, error) {
	class, ok := f.classes[className]
	if !ok {
		return nil, &devs.ConfigError{Msg: "model class not found: " + className}
	}

	// A pure coupled model class declares no dynamic_type: it has no
	// behavior of its own, only structure. A class that does declare one
	// may be a hybrid node (its behavior implements MailBehavior) or a
	// plain atomic model.
	var behavior devs.Behavior
	var err error
	if class.DynamicType != "" {
		behavior, err = f.registry.Behavior(class.DynamicType)
		if err != nil {
			return nil, err
		}
	}

	initValue, ok := initValues[fullName]
	if !ok {
		initValue = class.DefaultInit
	}
	resources := devs.Resources{Local: class.LocalResources, Global: f.globalResources}

	observers, err := f.buildObservers(class, fullName, simDir)
	if err != nil {
		return nil, err
	}

	if len(class.Submodels) == 0 {
		if behavior == nil {
			return nil, &devs.ConfigError{Msg: "atomic model class " + className + " declares no dynamic_type"}
		}
		return devs.NewAtomic(fullName, behavior, initValue, resources, observers...), nil
	}

	structure := &devs.Structure{
		InputPorts:  class.InputPorts,
		OutputPorts: class.OutputPorts,
		Children:    make(map[string]*devs.Simulator, len(class.Submodels)),
	}
	for name, sub := range class.Submodels {
		childFullName := fullName + "/" + name
		child, err := f.build(sub.ModelClass, childFullName, simDir, initValues)
		if err != nil {
			return nil, err
		}
		structure.Children[name] = child
		structure.ChildOrder = append(structure.ChildOrder, name)
	}
	sort.Strings(structure.ChildOrder)

	for _, c := range class.ExternalInputCouplings {
		structure.EIC = append(structure.EIC, devs.ExternalInputCoupling{SrcPort: c.SrcPort, DstChild: c.DstModel, DstPort: c.DstPort})
	}
	for _, c := range class.InternalCouplings {
		structure.IC = append(structure.IC, devs.InternalCoupling{SrcChild: c.SrcModel, SrcPort: c.SrcPort, DstChild: c.DstModel, DstPort: c.DstPort})
	}
	for _, c := range class.ExternalOutputCouplings {
		structure.EOC = append(structure.EOC, devs.ExternalOutputCoupling{SrcChild: c.SrcModel, SrcPort: c.SrcPort, DstPort: c.DstPort})
	}

	var mailHook devs.MailBehavior
	if mh, ok := behavior.(devs.MailBehavior); ok {
		mailHook = mh
	}
	node, err := devs.NewCoupled(fullName, structure, mailHook, observers...)
	if err != nil {
		return nil, fmt.Errorf("building coupled model %s (%s): %w", fullName, className, err)
	}
	return node, nil
}

func (f *ModelFactory) buildObservers(class *ModelClass, fullName, simDir string) ([]devs.Observer, error) {
	observers := make([]devs.Observer, 0, len(class.Observers))
	for _, oc := range class.Observers {
		obs, err := f.registry.Observer(oc.ObserverClass, registry.ObserverContext{
			ModelFullName: fullName,
			SimDir:        simDir,
			Config:        oc.ObserverConfig,
		})
		if err != nil {
			return nil, err
		}
		observers = append(observers, obs)
	}
	return observers, nil
}
