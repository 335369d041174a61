package domain

import "time"

type RunState string

const (
	StateIdle         RunState = "idle"
	StateLoadingIndex RunState = "loading_index"
	StateRunning      RunState = "running"
	StateJoining      RunState = "joining"
	StateFusing       RunState = "fusing"
	StateSynthesizing RunState = "synthesizing"
	StateDone         RunState = "done"
	StateCancelled    RunState = "cancelled"
	StateFailed       RunState = "failed"
)

var runTransitions = map[RunState][]RunState{
	StateIdle:         {StateLoadingIndex},
	StateLoadingIndex: {StateRunning, StateFailed},
	StateRunning:      {StateJoining, StateFailed},
	StateJoining:      {StateFusing, StateFailed},
	StateFusing:       {StateSynthesizing},
	StateSynthesizing: {StateDone},
}

func (s RunState) IsTerminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}

// CanTransition reports whether the run state machine allows s -> to.
// Cancelled is reachable from every non-terminal state.
func (s RunState) CanTransition(to RunState) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateCancelled {
		return true
	}
	for _, next := range runTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type EventKind string

const (
	EventState    EventKind = "state"
	EventLog      EventKind = "log"
	EventResults  EventKind = "results"
	EventSummary  EventKind = "summary"
	EventFinished EventKind = "finished"
)

type Event struct {
	RunID   string        `json:"run_id"`
	Kind    EventKind     `json:"kind"`
	At      time.Time     `json:"at"`
	State   RunState      `json:"state,omitempty"`
	Level   string        `json:"level,omitempty"`
	Message string        `json:"message,omitempty"`
	Results []FusedResult `json:"results,omitempty"`
	Summary *Summary      `json:"summary,omitempty"`
	Success *bool         `json:"success,omitempty"`
}

type RunOutcome struct {
	RunID   string        `json:"run_id"`
	State   RunState      `json:"state"`
	Query   Query         `json:"query"`
	Results []FusedResult `json:"results,omitempty"`
	Summary *Summary      `json:"summary,omitempty"`
	Err     error         `json:"-"`
}
