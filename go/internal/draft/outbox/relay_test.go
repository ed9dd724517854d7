package outbox_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/mcdev12/leaguedraft/go/internal/draft/events"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
	"github.com/mcdev12/leaguedraft/go/internal/draft/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu       sync.Mutex
	failures int
	rejected string // event type that always fails
	got      []events.OutboxEvent
}

func (p *recordingPublisher) reject(eventType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = eventType
}

func (p *recordingPublisher) Publish(_ context.Context, e events.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rejected != "" && e.EventType == p.rejected {
		return errors.New("bus rejected event")
	}
	if p.failures != 0 {
		if p.failures > 0 {
			p.failures--
		}
		return errors.New("bus unavailable")
	}
	p.got = append(p.got, e)
	return nil
}

func (p *recordingPublisher) published() []events.OutboxEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OutboxEvent(nil), p.got...)
}

type fakeNotifier struct {
	ch     chan *pq.Notification
	closed chan struct{}
	once   sync.Once
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan *pq.Notification, 4), closed: make(chan struct{})}
}

func (n *fakeNotifier) Notify() <-chan *pq.Notification { return n.ch }
func (n *fakeNotifier) Ping() error                     { return nil }
func (n *fakeNotifier) Close() error {
	n.once.Do(func() { close(n.closed) })
	return nil
}

func testConfig() outbox.RelayConfig {
	cfg := outbox.DefaultRelayConfig()
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 2
	cfg.FallbackInterval = time.Hour
	cfg.PingInterval = time.Hour
	return cfg
}

func seed(t *testing.T, store *repository.MemoryStore, types ...string) {
	t.Helper()
	for _, typ := range types {
		require.NoError(t, outbox.Record(context.Background(), store, "session-1", typ,
			map[string]string{"session_id": "session-1"}, time.Now()))
	}
}

func TestProcessUnsentPublishesInOrder(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, events.TypeDraftStarted, events.TypePickStarted, events.TypePickMade)
	pub := &recordingPublisher{}
	relay := outbox.NewRelay(store, pub, nil, clockwork.NewRealClock(), testConfig())

	n, err := relay.ProcessUnsent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var types []string
	for _, e := range pub.published() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{events.TypeDraftStarted, events.TypePickStarted, events.TypePickMade}, types)

	n, err = relay.ProcessUnsent(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, outbox.RelayStats{Published: 3}, relay.Stats())
}

func TestProcessUnsentRetriesTransientFailures(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, events.TypePickMade)
	pub := &recordingPublisher{failures: 2}
	relay := outbox.NewRelay(store, pub, nil, clockwork.NewRealClock(), testConfig())

	n, err := relay.ProcessUnsent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, pub.published(), 1)
}

func TestProcessUnsentStopsAtFirstUndeliverableEvent(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, events.TypePickMade, events.TypePickStarted)
	pub := &recordingPublisher{failures: -1}
	relay := outbox.NewRelay(store, pub, nil, clockwork.NewRealClock(), testConfig())

	n, err := relay.ProcessUnsent(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int64(1), relay.Stats().Failed)

	unsent, err := store.FetchUnsentOutbox(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, unsent, 2)
}

func TestRelayPublishesNotifiedEvents(t *testing.T) {
	store := repository.NewMemoryStore()
	pub := &recordingPublisher{}
	notifier := newFakeNotifier()
	relay := outbox.NewRelay(store, pub, notifier, clockwork.NewRealClock(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Start(ctx) }()

	seed(t, store, events.TypePickMade)
	id := store.Outbox()[0].ID
	notifier.ch <- &pq.Notification{Channel: outbox.NotifyChannel, Extra: id.String()}
	// A duplicate notification for a row already sent is ignored.
	notifier.ch <- &pq.Notification{Channel: outbox.NotifyChannel, Extra: id.String()}

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
	<-notifier.closed
	assert.Len(t, pub.published(), 1)
}

func TestNotifiedEventWaitsForEarlierStuckEvent(t *testing.T) {
	store := repository.NewMemoryStore()
	seed(t, store, events.TypePickMade, events.TypePickStarted)
	later := store.Outbox()[1].ID
	pub := &recordingPublisher{}
	pub.reject(events.TypePickMade)
	notifier := newFakeNotifier()
	relay := outbox.NewRelay(store, pub, notifier, clockwork.NewRealClock(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = relay.Start(ctx) }()

	// Startup catch-up fails on PickMade, then the notification for the
	// later PickStarted must not jump ahead of it.
	notifier.ch <- &pq.Notification{Channel: outbox.NotifyChannel, Extra: later.String()}
	require.Eventually(t, func() bool { return relay.Stats().Failed == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, pub.published())

	pub.reject("")
	notifier.ch <- &pq.Notification{Channel: outbox.NotifyChannel, Extra: later.String()}
	require.Eventually(t, func() bool { return len(pub.published()) == 2 }, time.Second, 5*time.Millisecond)

	var types []string
	for _, e := range pub.published() {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{events.TypePickMade, events.TypePickStarted}, types)
}

func TestMultiPublisherRequiresEveryTarget(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{failures: -1}
	multi := outbox.MultiPublisher{ok, failing}

	err := multi.Publish(context.Background(), events.OutboxEvent{EventType: events.TypePickMade})
	assert.Error(t, err)
	assert.Len(t, ok.published(), 1)
}

func TestRecordRejectsNullPayload(t *testing.T) {
	store := repository.NewMemoryStore()
	err := outbox.Record(context.Background(), store, "session-1", events.TypePickMade, nil, time.Now())
	assert.Error(t, err)
	assert.Empty(t, store.Outbox())
}
