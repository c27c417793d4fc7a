package devs

import (
	"encoding/json"
	"math/rand"
)

// Resources carries the read-only JSON data an atomic behavior may consult
// during init: its own model class's local_resources, plus the
// experiment-wide global_resources map shared read-only across every
// simulator tree in the run.
type Resources struct {
	Local  json.RawMessage
	Global map[string]json.RawMessage
}

// Behavior is the contract an atomic model implements against its own
// private state. All methods except Init, TimeAdvance, and State are
// optional; the zero-value embedding NopBehavior supplies passive defaults
// so a concrete behavior need only override what it uses.
//
// Every method receives the shared per-run *rand.Rand; behaviors that draw
// randomness must use it rather than the global math/rand functions so that
// a run with a fixed seed reproduces byte-identical results.
type Behavior interface {
	// Init sets the model's initial state. Called exactly once, before any
	// transition, with the JSON init value chosen for this model by the
	// experiment driver's variant enumeration.
	Init(initTime Time, initValue json.RawMessage, resources Resources, rng *rand.Rand)

	// TimeAdvance returns the time until this model's next internal event.
	// Must be non-negative; Inf means passive. Called after Init and after
	// every transition.
	TimeAdvance(rng *rand.Rand) Time

	// InternalTransition fires when simTime == t_next_self and no external
	// input arrived this tick.
	InternalTransition(simTime Time, rng *rand.Rand)

	// ExternalTransition fires when simTime < t_next_self and xBag is
	// non-empty. elapsed = simTime - t_last.
	ExternalTransition(simTime, elapsed Time, xBag Bag, rng *rand.Rand)

	// ConfluentTransition fires when simTime == t_next_self and xBag is
	// non-empty simultaneously. The kernel calls it only when the behavior
	// also implements ConfluentBehavior and HasConfluent returns true;
	// otherwise a confluent event is fatal (see ErrUnimplementedConfluent)
	// rather than silently picking an ordering.
	ConfluentTransition(simTime Time, xBag Bag, rng *rand.Rand)

	// Output is called only when this atomic is imminent, immediately
	// before its transition for the same tick.
	Output(simTime Time) Bag

	// Finish is called exactly once at the end of the run.
	Finish(simTime Time)

	// State returns a JSON snapshot of private state for observers.
	State() json.RawMessage
}

// ConfluentBehavior is how a behavior declares that its ConfluentTransition
// is meaningfully implemented. The kernel calls ConfluentTransition only for
// a behavior that implements this interface with HasConfluent returning
// true; a behavior that does not implement it, or whose HasConfluent returns
// false (NopBehavior's does), makes a confluent event fatal.
type ConfluentBehavior interface {
	Behavior
	// HasConfluent reports whether ConfluentTransition is meaningfully
	// implemented. If false, the simulator raises ErrUnimplementedConfluent
	// instead of calling it.
	HasConfluent() bool
}

// MailBehavior is an optional extension for a behavior that also owns
// coupled structure (a hybrid node): it lets a coupled model inspect its
// children's collected outputs at a tick, before downward routing. Pure
// coupled models never implement this; the kernel treats its absence as a
// no-op, matching the non-standard extension noted in the design's open
// questions.
type MailBehavior interface {
	// ExternalMailTransition is invoked once per tick on the root node's
	// behavior (if it has one) with the mail collected from its children
	// this tick, before the router projects inputs downward. A non-root
	// coupled node's hook is not invoked by the root driver.
	ExternalMailTransition(simTime, elapsed Time, mail Mail, rng *rand.Rand)
}

// NopBehavior supplies passive defaults for every Behavior method so a
// concrete type can embed it and override only what it needs.
type NopBehavior struct{}

func (NopBehavior) Init(Time, json.RawMessage, Resources, *rand.Rand)         {}
func (NopBehavior) TimeAdvance(*rand.Rand) Time                               { return Inf }
func (NopBehavior) InternalTransition(Time, *rand.Rand)                       {}
func (NopBehavior) ExternalTransition(Time, Time, Bag, *rand.Rand)            {}
func (NopBehavior) ConfluentTransition(Time, Bag, *rand.Rand)                 {}
func (NopBehavior) Output(Time) Bag                                          { return nil }
func (NopBehavior) Finish(Time)                                              {}
func (NopBehavior) State() json.RawMessage                                   { return json.RawMessage("null") }
func (NopBehavior) HasConfluent() bool                                       { return false }
