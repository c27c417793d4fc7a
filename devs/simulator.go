package devs

import (
	"encoding/json"
	"math/rand"
)

// Simulator is a node in a simulator tree: either atomic (behavior != nil,
// structure == nil), coupled (behavior == nil, structure != nil), or a
// hybrid coupled node whose behavior implements only MailBehavior (both
// non-nil) — see the note on MailBehavior. It owns the three DEVS time marks
// (t_last, t_next_self, t_next), the imminent-children set for the current
// tick, and the mail collected from children this tick.
type Simulator struct {
	FullName string

	behavior  Behavior
	structure *Structure

	initValue json.RawMessage
	resources Resources

	observers []Observer
	rng       *rand.Rand

	tLast, tNextSelf, tNext Time

	imminent          map[string]bool
	lastImminentCount int
	mail              Mail
}

// NewAtomic builds a leaf simulator node around a Behavior.
func NewAtomic(fullName string, behavior Behavior, initValue json.RawMessage, resources Resources, observers ...Observer) *Simulator {
	return &Simulator{
		FullName:  fullName,
		behavior:  behavior,
		initValue: initValue,
		resources: resources,
		observers: observers,
	}
}

// NewCoupled builds a coupled simulator node around a Structure. mailHook,
// if non-nil, is invoked once per tick during the root's process_y_messages
// phase with the mail this node's children produced (see MailBehavior); it
// is only meaningful when this node is the root of its tree.
func NewCoupled(fullName string, structure *Structure, mailHook MailBehavior, observers ...Observer) (*Simulator, error) {
	if err := structure.validate(structure.InputPorts, structure.OutputPorts); err != nil {
		return nil, err
	}
	s := &Simulator{
		FullName:  fullName,
		structure: structure,
		observers: observers,
	}
	if mailHook != nil {
		s.behavior = &mailHookBehavior{MailBehavior: mailHook}
	}
	return s, nil
}

// mailHookBehavior adapts a bare MailBehavior into the Behavior interface so
// a coupled Simulator can store it in the same `behavior` field an atomic
// node uses, passive on every method MailBehavior itself doesn't cover.
type mailHookBehavior struct {
	NopBehavior
	MailBehavior
}

func (s *Simulator) IsAtomic() bool  { return s.structure == nil }
func (s *Simulator) IsCoupled() bool { return s.structure != nil }

func (s *Simulator) TLast() Time     { return s.tLast }
func (s *Simulator) TNextSelf() Time { return s.tNextSelf }
func (s *Simulator) TNext() Time     { return s.tNext }

// scheduleNext computes a behavior's next t_next_self from the time it just
// transitioned at and its freshly-returned time advance. A StopSim ta is a
// direct request to end the run, not a delta to add: Time's arithmetic laws
// treat Value(v) + StopSim as Value(v) (StopSim is additive identity, see
// Time.Add), which would otherwise make ta()==StopSim silently vanish
// instead of propagating to t_next_self as the design's StopSim-propagation
// scenario requires.
func scheduleNext(simTime, ta Time) Time {
	if ta.IsStopSim() {
		return StopSim
	}
	return simTime.Add(ta)
}

func (s *Simulator) stateBytes() json.RawMessage {
	if s.behavior == nil {
		return json.RawMessage("null")
	}
	return s.behavior.State()
}

// StateJSON returns this node's current state as a JSON snapshot, for
// observers that want to record it outside the Before/After hook
// arguments (e.g. a coupled node's state at AfterSubmodelsTransition).
func (s *Simulator) StateJSON() json.RawMessage { return s.stateBytes() }

// Init sets up this node and, recursively, its children: assigns t_last,
// runs Behavior.Init for atomics, computes the initial t_next_self and
// t_next, and fires OnInit on every attached observer, depth-first
// (children before their parent, matching the order a parent's own t_next
// depends on its children's).
func (s *Simulator) Init(initTime Time, rng *rand.Rand) {
	s.rng = rng

	if s.behavior != nil {
		s.behavior.Init(initTime, s.initValue, s.resources, rng)
	}
	s.tLast = initTime

	childMin := Inf
	if s.structure != nil {
		for _, name := range s.structure.ChildOrder {
			child := s.structure.Children[name]
			child.Init(initTime, rng)
			childMin = childMin.Min(child.tNext)
		}
	}

	if s.structure == nil && s.behavior != nil {
		s.tNextSelf = scheduleNext(s.tLast, s.behavior.TimeAdvance(rng))
	} else {
		s.tNextSelf = Inf
	}
	s.tNext = s.tNextSelf.Min(childMin)

	for _, obs := range s.observers {
		obs.OnInit(s, initTime, s.initValue, s.stateBytes(), s.tNext)
	}
}

// CollectOutputs is Phase A of a tick: it asks every imminent part of this
// subtree for its output bag. For an atomic node this is Behavior.Output,
// called only when simTime == t_next_self. For a coupled node it recurses
// into every child whose own t_next == simTime, records their bags in
// s.mail (cleared from the previous tick), and projects them up through EOC.
func (s *Simulator) CollectOutputs(simTime Time) (Bag, error) {
	if s.structure == nil {
		if !simTime.Equal(s.tNextSelf) {
			return nil, &SynchronizationError{Node: s.FullName, Msg: "collect_outputs called at a time that is not t_next_self"}
		}
		bag := s.behavior.Output(simTime)
		for _, obs := range s.observers {
			obs.OnOutputs(s, simTime, bag)
		}
		return bag, nil
	}

	if !simTime.Equal(s.tNext) {
		return nil, &SynchronizationError{Node: s.FullName, Msg: "collect_outputs called at a time that is not t_next"}
	}

	s.mail = s.mail[:0]
	s.imminent = make(map[string]bool)
	for _, name := range s.structure.ChildOrder {
		child := s.structure.Children[name]
		if !child.tNext.Equal(simTime) {
			continue
		}
		s.imminent[name] = true
		yBag, err := child.CollectOutputs(simTime)
		if err != nil {
			return nil, err
		}
		s.mail = append(s.mail, MailItem{ChildName: name, YBag: yBag})
	}
	s.lastImminentCount = len(s.imminent)

	bag := routeOutputs(s.structure, s.mail)
	for _, obs := range s.observers {
		obs.OnOutputs(s, simTime, bag)
	}
	return bag, nil
}

// ProcessYMessages is Phase B of a tick. Per the root driver (see root.go)
// it is invoked only on the root node, once per tick, right after
// CollectOutputs and before ProcessXMessages: it gives this node's optional
// MailBehavior hook a look at the mail its children produced this tick,
// before the router projects anything downward. For a node with no mail
// hook this only fires the Before/After observer pair with an empty
// transition.
func (s *Simulator) ProcessYMessages(simTime Time) {
	elapsed := simTime.Sub(s.tLast)

	for _, obs := range s.observers {
		obs.BeforeExternalMailTransition(s, simTime, elapsed, s.mail)
	}
	if hook, ok := s.behavior.(MailBehavior); ok {
		hook.ExternalMailTransition(simTime, elapsed, s.mail, s.rng)
	}
	for _, obs := range s.observers {
		obs.AfterExternalMailTransition(s, simTime, s.tNext)
	}
}

// ProcessXMessages is Phase C of a tick: it applies simTime as the new
// present, classifies this node's transition kind (internal / confluent /
// external / no-op) from whether simTime == t_next_self and whether xBag is
// non-empty, fires it (recursing into children for a coupled node first),
// and recomputes t_next_self and t_next.
//
// Precondition: t_last <= simTime <= t_next_self, enforced as a
// SynchronizationError rather than silently clamped, since violating it
// means either a kernel bug or a behavior that returned a negative ta.
func (s *Simulator) ProcessXMessages(simTime Time, xBag Bag) error {
	if s.tLast.Compare(simTime) > 0 || simTime.Compare(s.tNextSelf) > 0 {
		return &SynchronizationError{Node: s.FullName, Msg: "process_x_messages called with sim_time outside [t_last, t_next_self]"}
	}

	elapsed := simTime.Sub(s.tLast)
	s.tLast = simTime

	atSelf := simTime.Equal(s.tNextSelf)
	hasInput := len(xBag) > 0

	if s.structure == nil {
		return s.processAtomic(simTime, elapsed, xBag, atSelf, hasInput)
	}
	return s.processCoupled(simTime, elapsed, xBag, atSelf, hasInput)
}

func (s *Simulator) processAtomic(simTime, elapsed Time, xBag Bag, atSelf, hasInput bool) error {
	fromState := s.stateBytes()

	switch {
	case atSelf && !hasInput:
		for _, obs := range s.observers {
			obs.BeforeInternalTransition(s, simTime)
		}
		s.behavior.InternalTransition(simTime, s.rng)
		toState := s.stateBytes()
		s.tNextSelf = scheduleNext(simTime, s.behavior.TimeAdvance(s.rng))
		for _, obs := range s.observers {
			obs.AfterInternalTransition(s, simTime, fromState, toState, s.tNextSelf)
		}

	case atSelf && hasInput:
		cb, ok := s.behavior.(ConfluentBehavior)
		if !ok || !cb.HasConfluent() {
			return &ErrUnimplementedConfluent{Node: s.FullName}
		}
		for _, obs := range s.observers {
			obs.BeforeConfluentTransition(s, simTime, xBag)
		}
		s.behavior.ConfluentTransition(simTime, xBag, s.rng)
		toState := s.stateBytes()
		s.tNextSelf = scheduleNext(simTime, s.behavior.TimeAdvance(s.rng))
		for _, obs := range s.observers {
			obs.AfterConfluentTransition(s, simTime, fromState, toState, s.tNextSelf)
		}

	case !atSelf && hasInput:
		for _, obs := range s.observers {
			obs.BeforeExternalTransition(s, simTime, elapsed, xBag)
		}
		s.behavior.ExternalTransition(simTime, elapsed, xBag, s.rng)
		toState := s.stateBytes()
		s.tNextSelf = scheduleNext(simTime, s.behavior.TimeAdvance(s.rng))
		for _, obs := range s.observers {
			obs.AfterExternalTransition(s, simTime, fromState, toState, s.tNextSelf)
		}

	default:
		// Neither imminent nor fed: nothing to transition, t_next_self is
		// unchanged.
	}

	s.tNext = s.tNextSelf
	return nil
}

func (s *Simulator) processCoupled(simTime, elapsed Time, xBag Bag, atSelf, hasInput bool) error {
	_ = atSelf // a coupled node's t_next_self is always Inf; it is never itself imminent

	routed, _ := routeInputs(s.structure, xBag, s.mail)

	for _, name := range s.structure.ChildOrder {
		child := s.structure.Children[name]
		childIsImminent := s.imminent[name]
		childBag := routed[name]

		if !childIsImminent && len(childBag) == 0 {
			continue
		}
		if err := child.ProcessXMessages(simTime, childBag); err != nil {
			return err
		}
	}

	childMin := Inf
	for _, name := range s.structure.ChildOrder {
		childMin = childMin.Min(s.structure.Children[name].tNext)
	}
	s.tNext = childMin

	s.mail = s.mail[:0]
	s.imminent = nil

	for _, obs := range s.observers {
		obs.AfterSubmodelsTransition(s, simTime, s.tNext)
	}
	return nil
}

// Failer is implemented by an Observer that can fail asynchronously to its
// own hook calls — e.g. the reference Logger discovering a write error only
// once it flushes. A failure reported this way is not visible at the call
// site of the hook that triggered it (Observer methods return nothing), so
// the root driver polls for it via ObserverError after every tick instead;
// see devs.Run.
type Failer interface {
	Err() error
}

// ObserverError walks this node and, for a coupled node, its children,
// looking for any attached observer implementing Failer with a non-nil
// error. It returns the first one found, depth-first, children before
// their parent's own observers.
func (s *Simulator) ObserverError() error {
	if s.structure != nil {
		for _, name := range s.structure.ChildOrder {
			if err := s.structure.Children[name].ObserverError(); err != nil {
				return err
			}
		}
	}
	for _, obs := range s.observers {
		if f, ok := obs.(Failer); ok {
			if err := f.Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Finish recurses depth-first through the tree, calling each atomic
// behavior's Finish and firing every node's observers' Finish hook,
// collecting whatever results they choose to report keyed by full model
// name and observer name.
func (s *Simulator) Finish(simTime Time, results map[string]map[string]any) {
	if s.structure != nil {
		for _, name := range s.structure.ChildOrder {
			s.structure.Children[name].Finish(simTime, results)
		}
	}
	if s.behavior != nil {
		s.behavior.Finish(simTime)
	}
	for _, obs := range s.observers {
		result, ok := obs.Finish(s, simTime)
		if !ok {
			continue
		}
		byObserver, exists := results[s.FullName]
		if !exists {
			byObserver = make(map[string]any)
			results[s.FullName] = byObserver
		}
		byObserver[observerName(obs)] = result
	}
}
