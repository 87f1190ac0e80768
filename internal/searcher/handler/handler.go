// Package handler exposes the retrieval engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/features"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/params"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/query"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/retrieval"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/internal/searcher/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/structured-retrieval/pkg/logger"
)

// maxFederatedQueries bounds the size of one federated request.
const maxFederatedQueries = 64

// queryKeys are the request parameters copied into a query's parameters.
var queryKeys = []string{params.QueryType, params.Requested, params.Dialect, params.IndexID, params.RetrievalGroup}

type Handler struct {
	retrieval     *retrieval.Retrieval
	cache         *cache.QueryCache
	collector     *analytics.Collector
	maxRequested  int
	maxConcurrent int
	logger        *slog.Logger
}

// New builds a Handler. queryCache and collector may be nil. maxRequested
// caps the requested parameter when positive; maxConcurrent bounds the
// queries of one federated request that run at once.
func New(r *retrieval.Retrieval, queryCache *cache.QueryCache, collector *analytics.Collector, maxRequested, maxConcurrent int) *Handler {
	return &Handler{
		retrieval:     r,
		cache:         queryCache,
		collector:     collector,
		maxRequested:  maxRequested,
		maxConcurrent: maxConcurrent,
		logger:        slog.Default().With("component", "search-handler"),
	}
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Query     string                     `json:"query"`
	Parsed    string                     `json:"parsed"`
	QueryType string                     `json:"querytype"`
	Results   []retrieval.ScoredDocument `json:"results"`
	Returned  int                        `json:"returned"`
	CacheHit  bool                       `json:"cache_hit"`
	LatencyMs int64                      `json:"latency_ms"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	text := r.URL.Query().Get("q")
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	p, err := h.requestParameters(func(k string) string { return r.URL.Query().Get(k) })
	if err != nil {
		h.fail(ctx, w, text, "", start, err)
		return
	}
	queryType := h.retrieval.Parameters(p).Get(params.QueryType, retrieval.DefaultQueryType)
	node, err := h.prepare(text, p, queryType)
	if err != nil {
		h.fail(ctx, w, text, queryType, start, err)
		return
	}

	var results []retrieval.ScoredDocument
	cacheHit := false
	run := func() ([]retrieval.ScoredDocument, error) {
		return h.retrieval.RunQuery(ctx, node, p)
	}
	if h.cache != nil && queryType == features.Ranked {
		results, cacheHit, err = h.cache.GetOrCompute(ctx, node, h.retrieval.Parameters(p), run)
	} else {
		results, err = run()
	}
	if err != nil {
		h.fail(ctx, w, text, queryType, start, err)
		return
	}
	if results == nil {
		results = []retrieval.ScoredDocument{}
	}

	latency := time.Since(start)
	logger.FromContext(ctx).Info("search completed",
		"query", text,
		"querytype", queryType,
		"returned", len(results),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	h.track(ctx, analytics.QueryEvent{
		Query:     text,
		QueryType: queryType,
		Returned:  len(results),
		LatencyMs: latency.Milliseconds(),
		CacheHit:  cacheHit,
	})
	h.writeJSON(w, http.StatusOK, SearchResponse{
		Query:     text,
		Parsed:    node.String(),
		QueryType: queryType,
		Results:   results,
		Returned:  len(results),
		CacheHit:  cacheHit,
		LatencyMs: latency.Milliseconds(),
	})
}

// CountResponse is the body of a successful count.
type CountResponse struct {
	Query string `json:"query"`
	retrieval.Counts
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	text := r.URL.Query().Get("q")
	if text == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	counts, err := h.retrieval.Count(ctx, text)
	if err != nil {
		h.fail(ctx, w, text, features.Count, start, err)
		return
	}
	h.track(ctx, analytics.QueryEvent{
		Type:      analytics.EventCount,
		Query:     text,
		QueryType: features.Count,
		Returned:  int(counts.Documents),
		LatencyMs: time.Since(start).Milliseconds(),
	})
	h.writeJSON(w, http.StatusOK, CountResponse{Query: text, Counts: counts})
}

// FederatedQuery is one query of a federated request. Empty fields fall back
// to the service defaults.
type FederatedQuery struct {
	ID        string `json:"id"`
	Query     string `json:"q"`
	QueryType string `json:"querytype,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Dialect   string `json:"queryType,omitempty"`
	IndexID   string `json:"indexId,omitempty"`
}

type FederatedRequest struct {
	Queries []FederatedQuery `json:"queries"`
}

type FederatedOutcome struct {
	ID       string `json:"id"`
	Returned int    `json:"returned"`
	Error    string `json:"error,omitempty"`
}

// FederatedResponse gathers the results and errors of every query into
// shared lists, with a per-query summary in request order.
type FederatedResponse struct {
	Results  []retrieval.ScoredDocument `json:"results"`
	Errors   []string                   `json:"errors"`
	Outcomes []FederatedOutcome         `json:"outcomes"`
}

// Federated runs a batch of queries concurrently. A failing query is
// reported in errors and does not affect the others.
func (h *Handler) Federated(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req FederatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Queries) == 0 {
		h.writeError(w, http.StatusBadRequest, "at least one query is required")
		return
	}
	if len(req.Queries) > maxFederatedQueries {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d queries per request", maxFederatedQueries))
		return
	}

	outcomes := make([]retrieval.Outcome, len(req.Queries))
	var tasks []retrieval.Task
	var slots []int
	for i, fq := range req.Queries {
		id := fq.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		outcomes[i].ID = id
		task, err := h.federatedTask(id, fq)
		if err != nil {
			outcomes[i].Err = err
			continue
		}
		tasks = append(tasks, task)
		slots = append(slots, i)
	}
	for i, o := range h.retrieval.NewSupervisor(h.maxConcurrent).Run(ctx, tasks) {
		outcomes[slots[i]] = o
	}

	results := &retrieval.ResultSink{}
	errs := &retrieval.ErrorSink{}
	retrieval.Merge(outcomes, results, errs)

	resp := FederatedResponse{
		Results:  results.Results(),
		Errors:   errs.Errors(),
		Outcomes: make([]FederatedOutcome, len(outcomes)),
	}
	if resp.Results == nil {
		resp.Results = []retrieval.ScoredDocument{}
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	for i, o := range outcomes {
		resp.Outcomes[i] = FederatedOutcome{ID: o.ID, Returned: len(o.Results)}
		if o.Err != nil {
			resp.Outcomes[i].Error = o.Err.Error()
		}
	}

	latency := time.Since(start)
	logger.FromContext(ctx).Info("federated search completed",
		"queries", len(outcomes),
		"failed", len(resp.Errors),
		"returned", len(resp.Results),
		"latency_ms", latency.Milliseconds(),
	)
	h.track(ctx, analytics.QueryEvent{
		Type:      analytics.EventFederated,
		Query:     fmt.Sprintf("%d queries", len(outcomes)),
		Returned:  len(resp.Results),
		LatencyMs: latency.Milliseconds(),
	})
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) federatedTask(id string, fq FederatedQuery) (retrieval.Task, error) {
	if fq.Query == "" {
		return retrieval.Task{}, apperrors.Invalid("query %s has no text", id)
	}
	p, err := h.requestParameters(func(k string) string {
		switch k {
		case params.QueryType:
			return fq.QueryType
		case params.Requested:
			if fq.Requested != 0 {
				return strconv.Itoa(fq.Requested)
			}
		case params.Dialect:
			return fq.Dialect
		case params.IndexID:
			return fq.IndexID
		}
		return ""
	})
	if err != nil {
		return retrieval.Task{}, err
	}
	queryType := h.retrieval.Parameters(p).Get(params.QueryType, retrieval.DefaultQueryType)
	node, err := h.prepare(fq.Query, p, queryType)
	if err != nil {
		return retrieval.Task{}, err
	}
	return retrieval.Task{ID: id, Node: node, Parameters: p}, nil
}

// prepare parses text and applies the traversals of queryType.
func (h *Handler) prepare(text string, p params.Parameters, queryType string) (*query.Node, error) {
	switch queryType {
	case features.Boolean, features.Ranked:
	default:
		return nil, apperrors.Invalid("querytype must be boolean or ranked, got %q", queryType)
	}
	node, err := h.retrieval.ParseQuery(text, p)
	if err != nil {
		return nil, err
	}
	return h.retrieval.TransformQuery(node, queryType)
}

// requestParameters collects the query parameters that get returns a value
// for. requested must be a positive integer and is capped at maxRequested.
func (h *Handler) requestParameters(get func(string) string) (params.Parameters, error) {
	p := params.Parameters{}
	for _, k := range queryKeys {
		if v := get(k); v != "" {
			p.Set(k, v)
		}
	}
	if v, ok := p[params.Requested]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, apperrors.Invalid("requested must be a positive integer, got %q", v)
		}
		if h.maxRequested > 0 && n > h.maxRequested {
			p.Set(params.Requested, strconv.Itoa(h.maxRequested))
		}
	}
	return p, nil
}

func (h *Handler) Parts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"parts": h.retrieval.AvailableParts()})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.retrieval.Statistics())
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	if h.collector == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.collector.Summary().Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// fail logs and tracks a failed request and writes its error.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, text, queryType string, start time.Time, err error) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("query failed", "query", text, "error", err)
	} else {
		log.Warn("query rejected", "query", text, "error", err)
	}
	h.track(ctx, analytics.QueryEvent{
		Query:     text,
		QueryType: queryType,
		LatencyMs: time.Since(start).Milliseconds(),
		Error:     err.Error(),
	})
	h.writeError(w, status, err.Error())
}

func (h *Handler) track(ctx context.Context, event analytics.QueryEvent) {
	if h.collector == nil {
		return
	}
	if event.Type == "" {
		event.Type = event.Classify()
	}
	event.Timestamp = time.Now().UTC()
	event.QueryID = logger.QueryID(ctx)
	h.collector.Track(event)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
