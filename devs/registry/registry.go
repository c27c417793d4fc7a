// Package registry provides the name -> constructor factories the config
// loader uses to turn a model class's declared dynamic_type and an
// observer class's declared observer_class into live devs.Behavior and
// devs.Observer instances.
package registry

import (
	"encoding/json"
	"fmt"

	"github.com/quaylabs/devsim/devs"
)

// BehaviorFactory builds a fresh, not-yet-initialized Behavior instance.
// Called once per model instantiation — every node in a simulator tree
// gets its own Behavior, even when several nodes share a model class.
type BehaviorFactory func() devs.Behavior

// ObserverContext is the configuration context an ObserverFactory
// receives: the model it is being attached to, the per-run result
// directory, and the observer's own JSON config block from the model
// class.
type ObserverContext struct {
	ModelFullName string
	SimDir        string
	Config        json.RawMessage
}

// ObserverFactory builds a fresh Observer instance for one model node in
// one run; it may open files or other per-run resources using ctx.
type ObserverFactory func(ctx ObserverContext) (devs.Observer, error)

// Registry holds every known behavior and observer constructor, keyed by
// the name a model-class JSON file references.
type Registry struct {
	behaviors map[string]BehaviorFactory
	observers map[string]ObserverFactory
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		behaviors: make(map[string]BehaviorFactory),
		observers: make(map[string]ObserverFactory),
	}
}

// RegisterBehavior associates a dynamic_type name with a constructor.
// Registering the same name twice replaces the earlier constructor.
func (r *Registry) RegisterBehavior(name string, factory BehaviorFactory) {
	r.behaviors[name] = factory
}

// RegisterObserver associates an observer_class name with a constructor.
func (r *Registry) RegisterObserver(name string, factory ObserverFactory) {
	r.observers[name] = factory
}

// Behavior builds a Behavior for the named dynamic_type.
func (r *Registry) Behavior(name string) (devs.Behavior, error) {
	factory, ok := r.behaviors[name]
	if !ok {
		return nil, &devs.ConfigError{Msg: fmt.Sprintf("behavior %q was not registered", name)}
	}
	return factory(), nil
}

// Observer builds an Observer for the named observer_class.
func (r *Registry) Observer(name string, ctx ObserverContext) (devs.Observer, error) {
	factory, ok := r.observers[name]
	if !ok {
		return nil, &devs.ConfigError{Msg: fmt.Sprintf("observer %q was not registered", name)}
	}
	obs, err := factory(ctx)
	if err != nil {
		return nil, &devs.ConfigError{Msg: fmt.Sprintf("observer %q: config failed", name), Err: err}
	}
	return obs, nil
}
