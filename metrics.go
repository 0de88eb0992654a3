package pgsession

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventTopic categorizes a metrics event, with the same wildcard
// matching ("query.*" matches "query.select") the teacher's event bus
// uses for datasource events.
type EventTopic string

const (
	TopicAll          EventTopic = "*"
	TopicQueryTiming  EventTopic = "query.timing"
	TopicGauge        EventTopic = "gauge"
	TopicCache        EventTopic = "cache"
)

// EventKey names the specific thing an Event reports on, e.g. the
// operation name passed to Observe, or the gauge name passed to GaugeSet.
type EventKey string

// EventLevel is the severity a subscriber may filter on.
type EventLevel int

const (
	LevelInfo EventLevel = iota
	LevelWarn
	LevelError
)

func (l EventLevel) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Event is one observation published on the metrics bus: a timing
// sample or a gauge change. Nothing in this package publishes on
// TopicCache.
type Event struct {
	Topic     EventTopic
	Key       EventKey
	Level     EventLevel
	Duration  time.Duration
	Err       error
	GaugeName string
	Value     float64
	Timestamp time.Time
}

// EventSubscriber receives events matching its subscription's topic.
type EventSubscriber func(Event)

// EventBus is a minimal topic-based pub/sub distributor, adapted from
// the teacher's EventBus down to what the Queryable operations actually
// need to publish: no async worker pool, since every publish here is
// already off the I/O path (it runs after performIO returns).
type EventBus struct {
	mu            sync.RWMutex
	subscriptions map[EventTopic]map[string]EventSubscriber
	nextID        uint64
}

// NewEventBus constructs an empty bus ready to publish and subscribe.
func NewEventBus() *EventBus {
	return &EventBus{subscriptions: make(map[EventTopic]map[string]EventSubscriber)}
}

// Subscribe registers fn against topic, returning an id Unsubscribe
// accepts. TopicAll matches every publish.
func (b *EventBus) Subscribe(topic EventTopic, fn EventSubscriber) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := fmt.Sprintf("sub-%d", b.nextID)
	if b.subscriptions[topic] == nil {
		b.subscriptions[topic] = make(map[string]EventSubscriber)
	}
	b.subscriptions[topic][id] = fn
	return id
}

// Unsubscribe removes a subscription previously returned by Subscribe.
func (b *EventBus) Unsubscribe(topic EventTopic, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscriptions[topic], id)
}

// Publish delivers ev synchronously to every subscriber whose topic
// matches, by exact match, wildcard suffix ("query.*"), or TopicAll.
func (b *EventBus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for topic, subs := range b.subscriptions {
		if !topicMatches(topic, ev.Topic) {
			continue
		}
		for _, fn := range subs {
			fn(ev)
		}
	}
}

func topicMatches(subscribed, published EventTopic) bool {
	if subscribed == TopicAll || subscribed == published {
		return true
	}
	prefix := strings.TrimSuffix(string(subscribed), "*")
	if prefix != string(subscribed) {
		return strings.HasPrefix(string(published), prefix)
	}
	return false
}

// EventMetrics is the default MetricsSink (§6: "a metrics sink
// supporting a counter-scoped timing helper and two named gauges").
// It maintains in-memory gauge values so tests can assert on
// active_queries without a real observability backend, and publishes
// every observation onto an embedded EventBus so a caller that does
// care about a real sink can subscribe instead of replacing this type.
type EventMetrics struct {
	bus    *EventBus
	mu     sync.Mutex
	gauges map[string]float64
}

// NewEventMetrics constructs a default MetricsSink backed by a fresh bus.
func NewEventMetrics() *EventMetrics {
	return &EventMetrics{bus: NewEventBus(), gauges: make(map[string]float64)}
}

// Bus exposes the underlying EventBus so callers can subscribe to
// query-timing or gauge events for their own observability pipeline.
func (m *EventMetrics) Bus() *EventBus { return m.bus }

func (m *EventMetrics) Observe(operation string, d time.Duration, err error) {
	level := LevelInfo
	if err != nil {
		level = LevelError
	}
	m.bus.Publish(Event{
		Topic:     TopicQueryTiming,
		Key:       EventKey(operation),
		Level:     level,
		Duration:  d,
		Err:       err,
		Timestamp: time.Now(),
	})
}

func (m *EventMetrics) GaugeSet(name string, value float64) {
	m.mu.Lock()
	m.gauges[name] = value
	m.mu.Unlock()
	m.bus.Publish(Event{Topic: TopicGauge, Key: EventKey(name), GaugeName: name, Value: value, Timestamp: time.Now()})
}

func (m *EventMetrics) GaugeAdd(name string, delta float64) {
	m.mu.Lock()
	v := m.gauges[name] + delta
	m.gauges[name] = v
	m.mu.Unlock()
	m.bus.Publish(Event{Topic: TopicGauge, Key: EventKey(name), GaugeName: name, Value: v, Timestamp: time.Now()})
}

// Gauge returns the current value of a named gauge, 0 if never set.
func (m *EventMetrics) Gauge(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name]
}

// ActiveQueriesGauge is the well-known gauge name §3/§4.7 describe as
// "the active_queries gauge".
const ActiveQueriesGauge = "active_queries"
