// Package logger provides the reference Logger observer: a devs.Observer
// that writes one JSON-Lines log file per model per run, recording every
// lifecycle event a simulator node fires.
package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/quaylabs/devsim/devs"
)

// Logger is a devs.Observer that serializes every hook it receives into a
// JSONL record at <simDir>/<modelFullName>.log, one line per event.
//
// Its before/after hooks pair up the same way the reference implementation
// pairs them: a Before* hook only stashes the event's pre-transition details
// (its time, plus its input bag, mail or elapsed time where the event has
// them), and the matching After* hook is what actually writes the combined
// record. A
// Logger must not be shared between concurrent runs — each run's tree
// should build its own Logger per model, same as any other observer.
type Logger struct {
	modelFullName string
	w             *bufio.Writer
	f             *os.File

	pending pendingEvent
	err     error
}

type pendingEvent struct {
	kind      string
	simTime   devs.Time
	fromState json.RawMessage
	xBag      devs.Bag
	mail      devs.Mail
	elapsed   devs.Time
}

// New opens (creating any missing directories) the log file for modelFullName
// under simDir, named after the model's full path with slashes preserved as
// nested directories and a ".log" suffix.
func New(simDir, modelFullName string) (*Logger, error) {
	logPath := filepath.Join(simDir, modelFullName+".log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, &devs.IOError{Observer: "logger", Err: err}
	}
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &devs.IOError{Observer: "logger", Err: err}
	}
	return &Logger{
		modelFullName: modelFullName,
		f:             f,
		w:             bufio.NewWriter(f),
	}, nil
}

func (l *Logger) Name() string { return "logger" }

func (l *Logger) OnInit(node *devs.Simulator, initTime devs.Time, initValue, initState []byte, tNext devs.Time) {
	l.write(map[string]any{
		"TIME":       initTime,
		"EVENT":      "INIT",
		"INIT_VALUE": json.RawMessage(initValue),
		"INIT_STATE": json.RawMessage(initState),
		"TIME_NEXT":  tNext,
	})
}

func (l *Logger) OnOutputs(node *devs.Simulator, simTime devs.Time, bag devs.Bag) {
	l.write(map[string]any{
		"TIME":  simTime,
		"EVENT": "OUTPUTS",
		"BAG":   bag,
	})
}

func (l *Logger) BeforeInternalTransition(node *devs.Simulator, simTime devs.Time) {
	l.pending = pendingEvent{kind: "internal", simTime: simTime, fromState: node.StateJSON()}
}

func (l *Logger) AfterInternalTransition(node *devs.Simulator, simTime devs.Time, fromState, toState []byte, tNext devs.Time) {
	if l.pending.kind != "internal" {
		return
	}
	l.write(map[string]any{
		"TIME":      l.pending.simTime,
		"EVENT":     "INTERNAL_TRANSITION",
		"FROM":      json.RawMessage(fromState),
		"TO":        json.RawMessage(toState),
		"TIME_NEXT": tNext,
	})
	l.pending = pendingEvent{}
}

func (l *Logger) BeforeExternalTransition(node *devs.Simulator, simTime, elapsed devs.Time, xBag devs.Bag) {
	l.pending = pendingEvent{kind: "external", simTime: simTime, xBag: xBag, elapsed: elapsed}
}

func (l *Logger) AfterExternalTransition(node *devs.Simulator, simTime devs.Time, fromState, toState []byte, tNext devs.Time) {
	if l.pending.kind != "external" {
		return
	}
	l.write(map[string]any{
		"TIME":      l.pending.simTime,
		"EVENT":     "EXTERNAL_TRANSITION",
		"FROM":      json.RawMessage(fromState),
		"TO":        json.RawMessage(toState),
		"TIME_NEXT": tNext,
		"X_BAG":     l.pending.xBag,
		"ELAPSED":   l.pending.elapsed,
	})
	l.pending = pendingEvent{}
}

func (l *Logger) BeforeConfluentTransition(node *devs.Simulator, simTime devs.Time, xBag devs.Bag) {
	l.pending = pendingEvent{kind: "confluent", simTime: simTime, xBag: xBag}
}

func (l *Logger) AfterConfluentTransition(node *devs.Simulator, simTime devs.Time, fromState, toState []byte, tNext devs.Time) {
	if l.pending.kind != "confluent" {
		return
	}
	l.write(map[string]any{
		"TIME":      l.pending.simTime,
		"EVENT":     "CONFLUENT_TRANSITION",
		"FROM":      json.RawMessage(fromState),
		"TO":        json.RawMessage(toState),
		"TIME_NEXT": tNext,
		"X_BAG":     l.pending.xBag,
	})
	l.pending = pendingEvent{}
}

func (l *Logger) BeforeExternalMailTransition(node *devs.Simulator, simTime, elapsed devs.Time, mail devs.Mail) {
	l.pending = pendingEvent{kind: "mail", simTime: simTime, mail: mail, elapsed: elapsed}
}

func (l *Logger) AfterExternalMailTransition(node *devs.Simulator, simTime devs.Time, tNext devs.Time) {
	if l.pending.kind != "mail" {
		return
	}
	l.write(map[string]any{
		"TIME":      l.pending.simTime,
		"EVENT":     "EXTERNAL_MAIL_TRANSITION",
		"TIME_NEXT": tNext,
		"MAIL":      l.pending.mail,
		"ELAPSED":   l.pending.elapsed,
	})
	l.pending = pendingEvent{}
}

func (l *Logger) AfterSubmodelsTransition(node *devs.Simulator, simTime devs.Time, tNext devs.Time) {
	l.write(map[string]any{
		"TIME":      simTime,
		"EVENT":     "AFTER_SUBMODELS_TRANSITION",
		"STATE":     node.StateJSON(),
		"TIME_NEXT": tNext,
	})
}

// Finish flushes and closes the log file. It reports no result of its own;
// the log file itself is the artifact. A flush/close failure here is
// recorded the same way a mid-run write failure is, via Err.
func (l *Logger) Finish(node *devs.Simulator, simTime devs.Time) (any, bool) {
	if err := l.w.Flush(); err != nil && l.err == nil {
		l.err = &devs.IOError{Observer: "logger:" + l.modelFullName, Err: err}
	}
	if err := l.f.Close(); err != nil && l.err == nil {
		l.err = &devs.IOError{Observer: "logger:" + l.modelFullName, Err: err}
	}
	return nil, false
}

// Err reports the first write failure this Logger has hit, if any. The
// kernel's root driver polls this (see devs.Failer) after every tick and
// aborts the run on a non-nil result, matching the reference Logger's
// contract of aborting the run on an IOError rather than continuing with a
// silently incomplete log.
func (l *Logger) Err() error { return l.err }

func (l *Logger) write(record map[string]any) {
	if l.err != nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		l.err = &devs.IOError{Observer: "logger:" + l.modelFullName, Err: err}
		return
	}
	if _, err := l.w.Write(data); err != nil {
		l.err = &devs.IOError{Observer: "logger:" + l.modelFullName, Err: err}
		return
	}
	if err := l.w.WriteByte('\n'); err != nil {
		l.err = &devs.IOError{Observer: "logger:" + l.modelFullName, Err: err}
		return
	}
	if err := l.w.Flush(); err != nil {
		l.err = &devs.IOError{Observer: "logger:" + l.modelFullName, Err: err}
		return
	}
}

// SanitizePathSegment replaces path separators in a model name component so
// it cannot escape its intended directory when used to build a log path.
func SanitizePathSegment(name string) string {
	return strings.ReplaceAll(name, string(filepath.Separator), "_")
}
