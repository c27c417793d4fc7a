package devs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingObserver turns a node's internal/external/confluent transitions
// into OpenTelemetry spans: one span per transition, named after the
// transition kind, tagged with the model's full path and the simulation
// time it fired at. Spans are point-in-time (started and ended immediately)
// since a transition itself has no meaningful duration to trace — what
// matters for replay debugging is which model fired, when, and with what
// inbound bag size.
type TracingObserver struct {
	NopObserver
	Tracer trace.Tracer
}

func (o TracingObserver) Name() string { return "tracing" }

func (o TracingObserver) span(node *Simulator, name string, simTime Time, extra ...attribute.KeyValue) {
	_, span := o.Tracer.Start(context.Background(), name)
	defer span.End()
	attrs := append([]attribute.KeyValue{
		attribute.String("devsim.model", node.FullName),
		attribute.String("devsim.sim_time", simTime.String()),
	}, extra...)
	span.SetAttributes(attrs...)
}

func (o TracingObserver) BeforeInternalTransition(node *Simulator, simTime Time) {
	o.span(node, "internal_transition", simTime)
}

func (o TracingObserver) BeforeExternalTransition(node *Simulator, simTime, elapsed Time, xBag Bag) {
	o.span(node, "external_transition", simTime,
		attribute.Int("devsim.bag_size", len(xBag)),
		attribute.String("devsim.elapsed", elapsed.String()))
}

func (o TracingObserver) BeforeConfluentTransition(node *Simulator, simTime Time, xBag Bag) {
	o.span(node, "confluent_transition", simTime, attribute.Int("devsim.bag_size", len(xBag)))
}

func (o TracingObserver) Finish(node *Simulator, simTime Time) (any, bool) {
	_, span := o.Tracer.Start(context.Background(), "finish")
	span.SetAttributes(
		attribute.String("devsim.model", node.FullName),
		attribute.String("devsim.sim_time", simTime.String()),
	)
	span.SetStatus(codes.Ok, "")
	span.End()
	return nil, false
}
