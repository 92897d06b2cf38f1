package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitterDeliversToTypedSubscribers(t *testing.T) {
	e := NewEmitter()

	var opened, closed int
	e.Subscribe(EventBarOpened, func(Event) { opened++ })
	e.Subscribe(EventBarClosed, func(Event) { closed++ })

	e.Emit(Event{Type: EventBarOpened})
	e.Emit(Event{Type: EventBarOpened})
	e.Emit(Event{Type: EventBeerOrdered})

	assert.Equal(t, 2, opened)
	assert.Zero(t, closed)
}

func TestEmitterSubscribeAll(t *testing.T) {
	e := NewEmitter()

	var got []EventType
	e.SubscribeAll(func(ev Event) { got = append(got, ev.Type) })

	e.Emit(Event{Type: EventBeerOrdered})
	e.Emit(Event{Type: EventPayout})

	assert.Equal(t, []EventType{EventBeerOrdered, EventPayout}, got)
}

// A panicking subscriber must not take down emission for the others.
func TestEmitterRecoversFromPanic(t *testing.T) {
	e := NewEmitter()

	var delivered bool
	e.Subscribe(EventBeerServed, func(Event) { panic("boom") })
	e.Subscribe(EventBeerServed, func(Event) { delivered = true })

	e.Emit(Event{Type: EventBeerServed})
	assert.True(t, delivered)
}
