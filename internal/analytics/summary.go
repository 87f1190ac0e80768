package analytics

import (
	"sort"
	"sync"
	"time"
)

// Stats is a snapshot of a Summary.
type Stats struct {
	TotalQueries      int64        `json:"total_queries"`
	CacheHits         int64        `json:"cache_hits"`
	Failures          int64        `json:"failures"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// maxLatencies bounds the latency window used for percentiles.
const maxLatencies = 10000

// Summary aggregates query events in memory.
type Summary struct {
	mu                sync.Mutex
	stats             Stats
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
}

func NewSummary() *Summary {
	return &Summary{
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
	}
}

func (s *Summary) Record(event QueryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.TotalQueries++
	s.queryCounts[event.Query]++
	switch event.Classify() {
	case EventQueryFailed:
		s.stats.Failures++
		return
	case EventCacheHit:
		s.stats.CacheHits++
	}
	if event.Returned == 0 {
		s.stats.ZeroResultCount++
		s.zeroResultQueries[event.Query]++
	}
	if len(s.latencies) == maxLatencies {
		copy(s.latencies, s.latencies[1:])
		s.latencies = s.latencies[:maxLatencies-1]
	}
	s.latencies = append(s.latencies, event.LatencyMs)
}

func (s *Summary) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	if len(s.latencies) > 0 {
		sorted := make([]int64, len(s.latencies))
		copy(sorted, s.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(s.queryCounts, 10)
	stats.ZeroResultQueries = topN(s.zeroResultQueries, 10)
	if elapsed := time.Since(s.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then by query so equal counts list stably.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
