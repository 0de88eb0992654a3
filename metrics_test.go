package pgsession

import (
	"errors"
	"testing"
	"time"
)

func TestEventMetrics_GaugeSetAndAdd(t *testing.T) {
	m := NewEventMetrics()
	m.GaugeSet(ActiveQueriesGauge, 0)
	m.GaugeAdd(ActiveQueriesGauge, 1)
	m.GaugeAdd(ActiveQueriesGauge, 1)
	m.GaugeAdd(ActiveQueriesGauge, -1)

	if got := m.Gauge(ActiveQueriesGauge); got != 1 {
		t.Errorf("Gauge(active_queries) = %v, want 1", got)
	}
}

func TestEventMetrics_ObservePublishesTimingEvent(t *testing.T) {
	m := NewEventMetrics()
	var received Event
	m.Bus().Subscribe(TopicQueryTiming, func(ev Event) {
		received = ev
	})

	m.Observe("postgres.query_raw", 5*time.Millisecond, nil)

	if received.Key != "postgres.query_raw" {
		t.Errorf("Key = %q, want %q", received.Key, "postgres.query_raw")
	}
	if received.Level != LevelInfo {
		t.Errorf("Level = %v, want %v", received.Level, LevelInfo)
	}

	m.Observe("postgres.query_raw", time.Millisecond, errors.New("boom"))
	if received.Level != LevelError {
		t.Errorf("Level = %v, want %v after an error observation", received.Level, LevelError)
	}
}

func TestEventBus_WildcardSubscription(t *testing.T) {
	bus := NewEventBus()
	count := 0
	bus.Subscribe("query.*", func(Event) { count++ })

	bus.Publish(Event{Topic: TopicQueryTiming})
	bus.Publish(Event{Topic: TopicGauge})

	if count != 1 {
		t.Errorf("count = %d, want 1 (only query.timing matches query.*)", count)
	}
}

func TestEventBus_TopicAllMatchesEverything(t *testing.T) {
	bus := NewEventBus()
	count := 0
	id := bus.Subscribe(TopicAll, func(Event) { count++ })

	bus.Publish(Event{Topic: TopicQueryTiming})
	bus.Publish(Event{Topic: TopicGauge})
	bus.Publish(Event{Topic: TopicCache})

	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}

	bus.Unsubscribe(TopicAll, id)
	bus.Publish(Event{Topic: TopicCache})
	if count != 3 {
		t.Errorf("count = %d after Unsubscribe, want unchanged at 3", count)
	}
}
