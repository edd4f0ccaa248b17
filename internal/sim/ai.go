package sim

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// Entry is one prioritized rule: a conjunction of conditions and a sequence
// of actions. Entries are immutable once built and compared by identity.
type Entry struct {
	conditions []Condition
	actions    []*Action
}

// NewEntry links actions into a sequence. An entry needs at least one action.
func NewEntry(conditions []Condition, actions []*Action) (*Entry, error) {
	if len(actions) == 0 {
		return nil, fmt.Errorf("%w: entry has no actions", ErrInvalidParam)
	}
	linked := make([]*Action, len(actions))
	for i, a := range actions {
		if a == nil {
			return nil, fmt.Errorf("%w: entry action %d is nil", ErrInvalidParam, i)
		}
		cp := *a
		linked[i] = &cp
	}
	for i := 0; i+1 < len(linked); i++ {
		linked[i].next = linked[i+1]
	}
	return &Entry{
		conditions: append([]Condition(nil), conditions...),
		actions:    linked,
	}, nil
}

// CatchAll returns an always-true entry that idles.
func CatchAll() *Entry {
	return &Entry{
		conditions: []Condition{Always()},
		actions:    []*Action{{Kind: ActionIdle}},
	}
}

// IsCatchAll reports whether the entry always qualifies and is always performable.
func (e *Entry) IsCatchAll() bool {
	for _, c := range e.conditions {
		if c.Kind != ConditionAlways {
			return false
		}
	}
	return len(e.actions) > 0 && e.actions[0].Kind == ActionIdle
}

// Conditions returns a copy of the entry's conditions.
func (e *Entry) Conditions() []Condition {
	return append([]Condition(nil), e.conditions...)
}

// First returns the head of the action sequence.
func (e *Entry) First() *Action {
	return e.actions[0]
}

// Passes reports whether every condition holds.
func (e *Entry) Passes(w *World, u *Unit) bool {
	for _, c := range e.conditions {
		if !c.Check(w, u) {
			return false
		}
	}
	return true
}

// Performable returns the first action whose check passes, nil if none does.
func (e *Entry) Performable(w *World, u *Unit) *Action {
	for _, a := range e.actions {
		if a.Check(w, u) {
			return a
		}
	}
	return nil
}

// PreferredTarget asks every condition for a target; the last one named wins.
func (e *Entry) PreferredTarget(w *World, u *Unit) *Unit {
	var preferred *Unit
	for _, c := range e.conditions {
		if t := c.PreferredTarget(w, u); t != nil {
			preferred = t
		}
	}
	return preferred
}

// Algorithm is a unit's ordered rule list, evaluated first match wins.
type Algorithm struct {
	entries []*Entry
}

// NewAlgorithm builds an algorithm. The last entry must be a catch-all so that
// a decision always exists.
func NewAlgorithm(entries ...*Entry) (*Algorithm, error) {
	if len(entries) == 0 || !entries[len(entries)-1].IsCatchAll() {
		return nil, ErrMissingCatchAll
	}
	return &Algorithm{entries: append([]*Entry(nil), entries...)}, nil
}

// Entries returns the rules in priority order.
func (a *Algorithm) Entries() []*Entry {
	return append([]*Entry(nil), a.entries...)
}

// Best returns the first entry that passes and has a performable action.
// Running out of entries is a configuration defect and panics.
func (a *Algorithm) Best(w *World, u *Unit) *Entry {
	for _, e := range a.entries {
		if e.Passes(w, u) && e.Performable(w, u) != nil {
			return e
		}
	}
	panic(fmt.Sprintf("sim: no decision entry qualifies for unit %d", u.ID))
}

// Action lifecycle states and events.
const (
	statePending  = "pending"
	stateRunning  = "running"
	stateFinished = "finished"

	eventBegin  = "begin"
	eventFinish = "finish"
	eventCancel = "cancel"
)

// Suggestion is the entry a unit is executing plus its position in the
// sequence and the time spent in the current action.
type Suggestion struct {
	entry    *Entry
	action   *Action
	elapsed  float64
	targetID int

	lifecycle *fsm.FSM
}

func newSuggestion(entry *Entry, first *Action, targetID int) *Suggestion {
	s := &Suggestion{
		entry:    entry,
		action:   first,
		targetID: targetID,
	}
	s.lifecycle = fsm.NewFSM(
		statePending,
		fsm.Events{
			{Name: eventBegin, Src: []string{statePending}, Dst: stateRunning},
			{Name: eventFinish, Src: []string{stateRunning}, Dst: stateFinished},
			{Name: eventCancel, Src: []string{statePending, stateRunning}, Dst: stateFinished},
		},
		fsm.Callbacks{
			"before_" + eventCancel: func(_ context.Context, e *fsm.Event) {
				if !s.action.Cancelable() {
					e.Cancel(ErrNotCancelable)
				}
			},
			"enter_" + stateRunning: func(_ context.Context, e *fsm.Event) {
				w, u := lifecycleArgs(e)
				s.action.begin(w, u, s)
			},
			"enter_" + stateFinished: func(_ context.Context, e *fsm.Event) {
				// A pending step never ran begin. Calling end would emit a stop
				// event with no matching start.
				if e.Src != stateRunning {
					return
				}
				w, u := lifecycleArgs(e)
				s.action.end(w, u)
			},
		},
	)
	return s
}

func lifecycleArgs(e *fsm.Event) (*World, *Unit) {
	return e.Args[0].(*World), e.Args[1].(*Unit)
}

// Entry returns the rule being executed.
func (s *Suggestion) Entry() *Entry {
	return s.entry
}

// Action returns the current step, nil once the sequence is exhausted.
func (s *Suggestion) Action() *Action {
	return s.action
}

// Elapsed is the time spent in the current step.
func (s *Suggestion) Elapsed() float64 {
	return s.elapsed
}

// TargetID is the preferred target captured when the suggestion was adopted.
func (s *Suggestion) TargetID() int {
	return s.targetID
}

// State is the lifecycle state of the current step.
func (s *Suggestion) State() string {
	return s.lifecycle.Current()
}

func (s *Suggestion) started() bool {
	return !s.lifecycle.Is(statePending)
}

func (s *Suggestion) transition(event string, w *World, u *Unit) error {
	return s.lifecycle.Event(context.Background(), event, w, u)
}

// advance moves to the next step, skipping steps whose check fails.
func (s *Suggestion) advance(w *World, u *Unit) {
	next := s.action.next
	for next != nil && !next.Check(w, u) {
		next = next.next
	}
	s.action = next
	s.elapsed = 0
	s.lifecycle.SetState(statePending)
}
