// pkg/core/events.go
package core

import "strconv"

// Attribute is one key/value pair of an Event. Values are always strings.
type Attribute struct {
	Key   string `json:"key" msgpack:"key"`
	Value string `json:"value" msgpack:"value"`
}

// Event is a single state change raised by the simulation.
// Attribute order is insertion order; the first attribute is the subject id.
type Event struct {
	Seq        uint64      `json:"seq" msgpack:"seq"`
	Time       float64     `json:"time" msgpack:"time"`
	Title      string      `json:"title" msgpack:"title"`
	Attributes []Attribute `json:"attributes" msgpack:"attributes"`
}

// NewEvent starts an event with the given title.
func NewEvent(title string) Event {
	return Event{Title: title}
}

// Str appends a string attribute.
func (e Event) Str(key, value string) Event {
	e.Attributes = append(e.Attributes, Attribute{Key: key, Value: value})
	return e
}

// Int appends an integer attribute.
func (e Event) Int(key string, value int) Event {
	return e.Str(key, strconv.Itoa(value))
}

// Float appends a float attribute using the shortest exact representation.
func (e Event) Float(key string, value float64) Event {
	return e.Str(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// Get returns the value of the first attribute with the given key.
func (e Event) Get(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Keys returns attribute keys in order.
func (e Event) Keys() []string {
	keys := make([]string, len(e.Attributes))
	for i, a := range e.Attributes {
		keys[i] = a.Key
	}
	return keys
}

// Map flattens the attributes, losing order. Used by storage layers that index by key.
func (e Event) Map() map[string]string {
	m := make(map[string]string, len(e.Attributes))
	for _, a := range e.Attributes {
		m[a.Key] = a.Value
	}
	return m
}

// Event titles.
const (
	TitleCreatePlayer     = "createPlayer"
	TitleErasePlayer      = "erasePlayer"
	TitleModifyHp         = "modifyHp"
	TitleMovePlayer       = "movePlayer"
	TitleCreateObstacle   = "createObstacle"
	TitleCreateSentry     = "createSentry"
	TitleEraseSentry      = "eraseSentry"
	TitleCreateProjectile = "createProjectile"
	TitleMoveProjectile   = "moveProjectile"
	TitleEraseProjectile  = "eraseProjectile"
	TitleStartMoving      = "startMoving"
	TitleStopMoving       = "stopMoving"
	TitleStartDashing     = "startDashing"
	TitleStopDashing      = "stopDashing"
	TitleStartRotating    = "startRotating"
	TitleStopRotating     = "stopRotating"
	TitleStartAttacking   = "startAttacking"
	TitleStopAttacking    = "stopAttacking"
)

// Report is the result of a finished run.
type Report struct {
	TotalTime float64 `json:"totalTime" msgpack:"totalTime"`
	Events    []Event `json:"events" msgpack:"events"`
}

// Count returns the number of events with the given title.
func (r Report) Count(title string) int {
	n := 0
	for _, e := range r.Events {
		if e.Title == title {
			n++
		}
	}
	return n
}
