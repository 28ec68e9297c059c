// Package analysis drives one analysis request through retries and provider
// fallback, and ties the pipeline together for callers.
package analysis

import (
	"fmt"
	"time"

	"umaai/internal/llm"
)

// State is a state of the request machine.
type State int

const (
	StateIdle State = iota
	StateSending
	StateRetryWait
	StateFallbackSwitch
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateRetryWait:
		return "retry_wait"
	case StateFallbackSwitch:
		return "fallback_switch"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// transitions lists the legal successors of each state.
var transitions = map[State][]State{
	StateIdle:           {StateSending, StateFailed},
	StateSending:        {StateSuccess, StateRetryWait, StateFailed},
	StateRetryWait:      {StateSending, StateFallbackSwitch, StateFailed},
	StateFallbackSwitch: {StateSending, StateFailed},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Event is one recorded transition.
type Event struct {
	From     State
	To       State
	Provider string
	Attempt  int           // attempt number against Provider, 1-based
	Delay    time.Duration // backoff, set on entering RetryWait
	Kind     llm.Kind      // failure that caused the transition, if any
}

// Trace records every transition of one run.
type Trace struct {
	Events []Event
}

// States returns the visited states starting with Idle.
func (t *Trace) States() []State {
	if len(t.Events) == 0 {
		return []State{StateIdle}
	}
	out := []State{t.Events[0].From}
	for _, e := range t.Events {
		out = append(out, e.To)
	}
	return out
}

// Backoffs returns the backoff delays taken against provider, in order.
func (t *Trace) Backoffs(provider string) []time.Duration {
	var out []time.Duration
	for _, e := range t.Events {
		if e.To == StateRetryWait && e.Provider == provider {
			out = append(out, e.Delay)
		}
	}
	return out
}

// Attempts returns how many requests were sent to provider.
func (t *Trace) Attempts(provider string) int {
	n := 0
	for _, e := range t.Events {
		if e.To == StateSending && e.Provider == provider {
			n++
		}
	}
	return n
}

// machine holds the current state and enforces the transition table.
type machine struct {
	state State
	trace *Trace
}

func newMachine() *machine {
	return &machine{state: StateIdle, trace: &Trace{}}
}

// to moves to next and records ev. An illegal transition is a programming
// error and panics.
func (m *machine) to(next State, ev Event) {
	if !CanTransition(m.state, next) {
		panic(fmt.Sprintf("analysis: illegal transition %s -> %s", m.state, next))
	}
	ev.From, ev.To = m.state, next
	m.trace.Events = append(m.trace.Events, ev)
	m.state = next
}
