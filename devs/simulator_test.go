package devs

import (
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
)

type recordedEvent struct {
	name string
	kind string
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) add(name, kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: name, kind: kind})
}

func (r *recorder) count(name, kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.name == name && e.kind == kind {
			n++
		}
	}
	return n
}

type recordingObserver struct {
	NopObserver
	name string
	rec  *recorder
}

func (o recordingObserver) BeforeInternalTransition(node *Simulator, simTime Time) {
	o.rec.add(o.name, "internal")
}

func (o recordingObserver) BeforeExternalTransition(node *Simulator, simTime, elapsed Time, xBag Bag) {
	o.rec.add(o.name, "external")
}

func (o recordingObserver) BeforeConfluentTransition(node *Simulator, simTime Time, xBag Bag) {
	o.rec.add(o.name, "confluent")
}

func (o recordingObserver) Finish(node *Simulator, simTime Time) (any, bool) {
	o.rec.add(o.name, "finish")
	return nil, false
}

// passiveBehavior never has an internal event: ta is always Inf.
type passiveBehavior struct{ NopBehavior }

func (passiveBehavior) TimeAdvance(*rand.Rand) Time { return Inf }

// TestDegenerateInf matches spec scenario 2: an atomic whose ta is Inf from
// the start takes zero transitions; the root loop exits immediately and
// Finish fires exactly once.
func TestDegenerateInf(t *testing.T) {
	rec := &recorder{}
	root := NewAtomic("root", &passiveBehavior{}, nil, Resources{}, recordingObserver{name: "root", rec: rec})
	root.Init(ValueTime(0), rand.New(rand.NewSource(0)))

	if !root.TNext().IsInf() {
		t.Fatalf("t_next after init = %v, want Inf", root.TNext())
	}

	result, err := Run(root, ValueTime(100))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.StoppedAt.IsInf() {
		t.Errorf("StoppedAt = %v, want Inf", result.StoppedAt)
	}
	if n := rec.count("root", "internal"); n != 0 {
		t.Errorf("internal transitions = %d, want 0", n)
	}
	if n := rec.count("root", "finish"); n != 1 {
		t.Errorf("finish calls = %d, want 1", n)
	}
}

// fixedTickBehavior fires an internal transition on a fixed period and
// never produces output or accepts external input meaningfully; used to
// build the imminent-without-input and confluent-firing scenarios.
type fixedTickBehavior struct {
	NopBehavior
	period     Time
	out        string
	fired      int
	lastXBag   Bag
	confluent  bool
}

func (b *fixedTickBehavior) TimeAdvance(*rand.Rand) Time { return b.period }

func (b *fixedTickBehavior) Output(Time) Bag {
	if b.out == "" {
		return nil
	}
	return Bag{NewMessage(b.out, b.fired)}
}

func (b *fixedTickBehavior) InternalTransition(Time, *rand.Rand) { b.fired++ }

func (b *fixedTickBehavior) ExternalTransition(simTime, elapsed Time, xBag Bag, rng *rand.Rand) {
	b.lastXBag = xBag.Clone()
}

func (b *fixedTickBehavior) ConfluentTransition(simTime Time, xBag Bag, rng *rand.Rand) {
	b.fired++
	b.lastXBag = xBag.Clone()
}

func (b *fixedTickBehavior) HasConfluent() bool { return b.confluent }

// TestImminentWithoutInput matches spec scenario 3: two children imminent
// at the same tick with no coupling between them both receive
// InternalTransition, never ConfluentTransition.
func TestImminentWithoutInput(t *testing.T) {
	rec := &recorder{}
	c1 := NewAtomic("root/c1", &fixedTickBehavior{period: ValueTime(5)}, nil, Resources{}, recordingObserver{name: "c1", rec: rec})
	c2 := NewAtomic("root/c2", &fixedTickBehavior{period: ValueTime(5)}, nil, Resources{}, recordingObserver{name: "c2", rec: rec})

	structure := &Structure{
		Children:   map[string]*Simulator{"c1": c1, "c2": c2},
		ChildOrder: []string{"c1", "c2"},
	}
	root, err := NewCoupled("root", structure, nil)
	if err != nil {
		t.Fatalf("NewCoupled: %v", err)
	}
	root.Init(ValueTime(0), rand.New(rand.NewSource(0)))

	result, err := Run(root, ValueTime(6))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	_ = result

	for _, name := range []string{"c1", "c2"} {
		if n := rec.count(name, "internal"); n != 1 {
			t.Errorf("%s internal transitions = %d, want 1 (at t=5)", name, n)
		}
		if n := rec.count(name, "confluent"); n != 0 {
			t.Errorf("%s confluent transitions = %d, want 0", name, n)
		}
		if n := rec.count(name, "external"); n != 0 {
			t.Errorf("%s external transitions = %d, want 0", name, n)
		}
	}
}

// TestConfluentFiring matches spec scenario 4: producer P and consumer Q
// coupled P.out->Q.in, both imminent at the same tick; Q must receive
// ConfluentTransition carrying P's output bag, P receives InternalTransition.
func TestConfluentFiring(t *testing.T) {
	rec := &recorder{}
	p := &fixedTickBehavior{period: ValueTime(10), out: "out"}
	q := &fixedTickBehavior{period: ValueTime(10), confluent: true}
	pSim := NewAtomic("root/p", p, nil, Resources{}, recordingObserver{name: "p", rec: rec})
	qSim := NewAtomic("root/q", q, nil, Resources{}, recordingObserver{name: "q", rec: rec})

	structure := &Structure{
		Children:   map[string]*Simulator{"p": pSim, "q": qSim},
		ChildOrder: []string{"p", "q"},
		IC:         []InternalCoupling{{SrcChild: "p", SrcPort: "out", DstChild: "q", DstPort: "in"}},
	}
	root, err := NewCoupled("root", structure, nil)
	if err != nil {
		t.Fatalf("NewCoupled: %v", err)
	}
	root.Init(ValueTime(0), rand.New(rand.NewSource(0)))

	if _, err := Run(root, ValueTime(11)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := rec.count("p", "internal"); n != 1 {
		t.Errorf("p internal transitions = %d, want 1", n)
	}
	if n := rec.count("p", "confluent"); n != 0 {
		t.Errorf("p confluent transitions = %d, want 0", n)
	}
	if n := rec.count("q", "confluent"); n != 1 {
		t.Errorf("q confluent transitions = %d, want 1", n)
	}
	if n := rec.count("q", "internal"); n != 0 {
		t.Errorf("q internal transitions = %d, want 0", n)
	}
	if len(q.lastXBag) != 1 || q.lastXBag[0].Port != "in" {
		t.Errorf("q's confluent x_bag = %+v, want one message on port 'in'", q.lastXBag)
	}
}

// stopSimBehavior fires StopSim as its third time advance.
type stopSimBehavior struct {
	NopBehavior
	step int
}

func (b *stopSimBehavior) TimeAdvance(*rand.Rand) Time {
	switch b.step {
	case 0:
		return ValueTime(1)
	case 1:
		return ValueTime(1)
	default:
		return StopSim
	}
}

func (b *stopSimBehavior) InternalTransition(Time, *rand.Rand) { b.step++ }

// TestStopSimPropagation matches spec scenario 5: once a model's ta
// returns StopSim, the root driver finishes the run rather than looping
// forever (StopSim never compares >= any finish_time).
func TestStopSimPropagation(t *testing.T) {
	rec := &recorder{}
	root := NewAtomic("root", &stopSimBehavior{}, nil, Resources{}, recordingObserver{name: "root", rec: rec})
	root.Init(ValueTime(0), rand.New(rand.NewSource(0)))

	result, err := Run(root, ValueTime(100))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.StoppedAt.IsStopSim() {
		t.Errorf("StoppedAt = %v, want StopSim", result.StoppedAt)
	}
	if n := rec.count("root", "internal"); n != 2 {
		t.Errorf("internal transitions = %d, want 2 (t=1, t=2; the StopSim step never fires a transition)", n)
	}
	if n := rec.count("root", "finish"); n != 1 {
		t.Errorf("finish calls = %d, want 1", n)
	}
}

func TestUnimplementedConfluentIsFatal(t *testing.T) {
	p := &fixedTickBehavior{period: ValueTime(1), out: "out"}
	q := &fixedTickBehavior{period: ValueTime(1), confluent: false}
	pSim := NewAtomic("root/p", p, nil, Resources{})
	qSim := NewAtomic("root/q", q, nil, Resources{})

	structure := &Structure{
		Children:   map[string]*Simulator{"p": pSim, "q": qSim},
		ChildOrder: []string{"p", "q"},
		IC:         []InternalCoupling{{SrcChild: "p", SrcPort: "out", DstChild: "q", DstPort: "in"}},
	}
	root, err := NewCoupled("root", structure, nil)
	if err != nil {
		t.Fatalf("NewCoupled: %v", err)
	}
	root.Init(ValueTime(0), rand.New(rand.NewSource(0)))

	_, err = Run(root, ValueTime(2))
	if err == nil {
		t.Fatal("expected ErrUnimplementedConfluent, got nil")
	}
	if _, ok := err.(*ErrUnimplementedConfluent); !ok {
		t.Errorf("err = %T, want *ErrUnimplementedConfluent", err)
	}
}

func TestDeterministicReplay(t *testing.T) {
	build := func() *Simulator {
		return NewAtomic("root", &fixedTickBehavior{period: ValueTime(1), out: "out"}, nil, Resources{})
	}

	run := func() RunResult {
		root := build()
		root.Init(ValueTime(0), rand.New(rand.NewSource(42)))
		result, err := Run(root, ValueTime(10))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return result
	}

	a := run()
	b := run()
	aJSON, _ := json.Marshal(a)
	bJSON, _ := json.Marshal(b)
	if string(aJSON) != string(bJSON) {
		t.Errorf("two runs with the same seed diverged:\n%s\nvs\n%s", aJSON, bJSON)
	}
}
