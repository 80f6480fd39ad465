package engine

import "sync/atomic"

// EventType names an entity lifecycle change.
type EventType string

const (
	EventCreate EventType = "create"
	EventUpdate EventType = "update"
	EventRemove EventType = "remove"
	EventClear  EventType = "clear"
)

// Event is delivered to Database and Schema subscribers.
//
// Create and update events carry Entity; remove events carry Keys. A schema
// clear event carries only Schema and is delivered to that schema's
// subscribers. Database.Clear delivers one clear event with an empty Schema
// to database subscribers.
type Event struct {
	// Seq orders events within one database. Strictly increasing.
	Seq    int64
	Type   EventType
	Schema string
	Entity *Entity
	Keys   []string
}

// clock stamps events with a monotonic sequence number.
type clock struct {
	seq atomic.Int64
}

func (c *clock) next() int64 { return c.seq.Add(1) }

func (c *clock) current() int64 { return c.seq.Load() }
