package devs

import "fmt"

// ConfigError reports a malformed or inconsistent experiment/model-class
// configuration: bad JSON, a missing referenced file, finish_time <
// init_time, or an unknown behavior/observer/root class name.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("devs: config error: %s: %v", e.Msg, e.Err)
	}
	return "devs: config error: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StructuralError reports a coupling that references a non-existent port
// or model, or a duplicate child name. An unknown observer class is
// reported as a ConfigError.
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string { return "devs: structural error: " + e.Msg }

// SynchronizationError reports a kernel invariant violation: sim_time
// outside [t_last, t_next_self] on entry to process_x_messages, or sim_time
// neither t_next_self nor t_next on entry to collect_outputs. This
// indicates either a kernel bug or a behavior returning a negative ta.
type SynchronizationError struct {
	Node string
	Msg  string
}

func (e *SynchronizationError) Error() string {
	return fmt.Sprintf("devs: synchronization error in %q: %s", e.Node, e.Msg)
}

// ErrUnimplementedConfluent reports a confluent event reached on a behavior
// with no usable ConfluentTransition implementation.
type ErrUnimplementedConfluent struct {
	Node string
}

func (e *ErrUnimplementedConfluent) Error() string {
	return fmt.Sprintf("devs: %q reached a confluent event with no confluent_transition implementation", e.Node)
}

// IOError reports an observer's failure to persist a lifecycle event, e.g.
// the reference Logger's log-file write failing.
type IOError struct {
	Observer string
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("devs: observer %q: io error: %v", e.Observer, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// RunError wraps any of the above with the run that failed, as reported by
// the experiment driver when a worker's run terminates abnormally.
type RunError struct {
	Variant   uint64
	Iteration uint64
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("devs: run var=%d iter=%d failed: %v", e.Variant, e.Iteration, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
