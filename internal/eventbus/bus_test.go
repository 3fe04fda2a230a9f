package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversToAllSubscribersInOrder(t *testing.T) {
	b := New()
	var order []string

	b.Subscribe("spawned", func(ev Event) { order = append(order, "first:"+ev.Payload.(string)) })
	b.Subscribe("spawned", func(ev Event) { order = append(order, "second:"+ev.Payload.(string)) })

	b.Publish(Event{Topic: "spawned", Payload: "r1"})

	assert.Equal(t, []string{"first:r1", "second:r1"}, order)
}

func TestPublishIgnoresOtherTopics(t *testing.T) {
	b := New()
	called := false
	b.Subscribe("spawned", func(Event) { called = true })

	b.Publish(Event{Topic: "completed", Payload: "r1"})

	assert.False(t, called)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe("spawned", func(Event) { calls++ })

	b.Publish(Event{Topic: "spawned"})
	unsub()
	b.Publish(Event{Topic: "spawned"})

	assert.Equal(t, 1, calls)
}

func TestPublishWithNoSubscribersIsSafe(t *testing.T) {
	b := New()
	assert.NotPanics(t, func() { b.Publish(Event{Topic: "spawned"}) })
}
