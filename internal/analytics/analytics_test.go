package analytics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	fail    bool
}

func (p *recordingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.batches = append(p.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (p *recordingPublisher) events() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []kafka.Event
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestCollectorPublishesInBatches(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 100, 2, time.Hour)
	c.Start(context.Background())

	c.Track(QueryEvent{Query: "cat", Returned: 2, LatencyMs: 3})
	c.Track(QueryEvent{Query: "dog", Returned: 0, LatencyMs: 1})
	c.Track(QueryEvent{Query: "cat", CacheHit: true, Returned: 2})
	c.Close()

	events := pub.events()
	require.Len(t, events, 3)
	assert.Equal(t, string(EventQuery), events[0].Key)
	assert.Equal(t, string(EventZeroResult), events[1].Key)
	assert.Equal(t, string(EventCacheHit), events[2].Key)
	assert.Len(t, pub.batches, 2)
}

func TestCollectorDropsWhenFull(t *testing.T) {
	c := NewCollector(nil, 1, 10, time.Hour)
	c.Track(QueryEvent{Query: "a"})
	c.Track(QueryEvent{Query: "b"})
	c.Start(context.Background())
	c.Close()

	assert.Equal(t, int64(1), c.Summary().Stats().TotalQueries)
}

func TestCollectorDrainsOnCancel(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(pub, 10, 100, time.Hour)
	c.Track(QueryEvent{Query: "a", Returned: 1})
	c.Track(QueryEvent{Query: "b", Returned: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Start(ctx)
	<-c.done

	assert.Len(t, pub.events(), 2)
}

func TestCollectorSurvivesPublishFailure(t *testing.T) {
	pub := &recordingPublisher{fail: true}
	c := NewCollector(pub, 10, 1, time.Hour)
	c.Start(context.Background())
	c.Track(QueryEvent{Query: "a", Returned: 1})
	c.Close()

	assert.Empty(t, pub.events())
	assert.Equal(t, int64(1), c.Summary().Stats().TotalQueries)
}

func TestSummaryStats(t *testing.T) {
	s := NewSummary()
	for i, latency := range []int64{10, 20, 30, 40} {
		s.Record(QueryEvent{Query: "cat", Returned: i, LatencyMs: latency})
	}
	s.Record(QueryEvent{Query: "dog", Error: "unsupported operator"})
	s.Record(QueryEvent{Query: "dog", CacheHit: true, Returned: 1, LatencyMs: 50})

	stats := s.Stats()
	assert.Equal(t, int64(6), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 30.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(30), stats.P50LatencyMs)
	assert.Equal(t, int64(50), stats.P99LatencyMs)
	assert.Equal(t, []QueryCount{{"cat", 4}, {"dog", 2}}, stats.TopQueries)
	assert.Equal(t, []QueryCount{{"cat", 1}}, stats.ZeroResultQueries)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, EventQueryFailed, QueryEvent{Error: "x", CacheHit: true}.Classify())
	assert.Equal(t, EventCacheHit, QueryEvent{CacheHit: true}.Classify())
	assert.Equal(t, EventZeroResult, QueryEvent{}.Classify())
	assert.Equal(t, EventQuery, QueryEvent{Returned: 1}.Classify())
}

func TestHandleEventRecordsConsumedEvents(t *testing.T) {
	s := NewSummary()
	handle := HandleEvent(s)

	require.NoError(t, handle(context.Background(), []byte("query"), []byte(`{"query":"cat","returned":3,"latency_ms":12}`)))
	require.NoError(t, handle(context.Background(), []byte("query_failed"), []byte(`{"query":"#bogus()","error":"unsupported"}`)))
	assert.Error(t, handle(context.Background(), nil, []byte("not json")))

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(12), stats.P50LatencyMs)
}
