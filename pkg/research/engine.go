package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikeboe/deep-research/pkg/metrics"
	"github.com/mikeboe/deep-research/pkg/search"
)

// ResearchEngine expands a topic into a tree of search queries. Sibling
// branches run concurrently, gated by a single Limiter for the whole tree.
//
// An engine runs one tree at a time: progress counters are reset by Run.
type ResearchEngine struct {
	Config      Config
	Planner     QueryPlanner
	Synthesizer ResultSynthesizer
	Search      search.Provider
	Logger      *slog.Logger
	// OnProgress is called from branch goroutines and must be safe for
	// concurrent use.
	OnProgress func(Progress)

	limiter   *Limiter
	total     atomic.Int64
	completed atomic.Int64
}

func NewEngine(cfg Config, planner QueryPlanner, synthesizer ResultSynthesizer, provider search.Provider) *ResearchEngine {
	return &ResearchEngine{
		Config:      cfg,
		Planner:     planner,
		Synthesizer: synthesizer,
		Search:      provider,
		Logger:      slog.Default(),
		limiter:     NewLimiter(cfg.Concurrency),
	}
}

// Limiter exposes the shared branch limiter for instrumentation.
func (e *ResearchEngine) Limiter() *Limiter {
	return e.limiter
}

// ShareLimiter makes the engine draw branch slots from l, so several engines
// running at once stay within one capacity. A nil l is ignored.
func (e *ResearchEngine) ShareLimiter(l *Limiter) {
	if l != nil {
		e.limiter = l
	}
}

// Run researches query from the root. It applies Config.Timeout to the whole
// tree and never fails: branches that error contribute nothing.
func (e *ResearchEngine) Run(ctx context.Context, query string, breadth, depth int) Result {
	if e.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Config.Timeout)
		defer cancel()
	}

	e.total.Store(0)
	e.completed.Store(0)
	metrics.ResearchRuns.Inc()

	start := time.Now()
	e.logger().Info("Starting research", "query", query, "breadth", breadth, "depth", depth,
		"concurrency", e.limiter.Capacity(), "slot_policy", e.Config.SlotPolicy.String())

	res := e.Expand(ctx, query, breadth, depth, nil, nil)

	e.logger().Info("Research complete", "findings", len(res.Findings), "visited_urls", len(res.VisitedURLs),
		"queries", e.completed.Load(), "peak_branches", e.limiter.Peak(), "duration", time.Since(start))
	return res
}

// Expand plans up to breadth sub-queries for topic and, while depth remains,
// runs each as a branch. findings and visitedURLs are handed to the planner and
// every branch; the returned Result is the deduplicated union of what the
// branches return, so a level with no surviving branch contributes nothing.
func (e *ResearchEngine) Expand(ctx context.Context, topic string, breadth, depth int, findings, visitedURLs []string) Result {
	breadth = max(breadth, 1)

	queries, err := e.Planner.PlanQueries(ctx, topic, findings, breadth)
	if err != nil {
		e.logger().Error("Query planning failed", "topic", topic, "error", err)
		queries = nil
	}

	if depth <= 0 || len(queries) == 0 {
		return Merge()
	}

	e.total.Add(int64(len(queries)))

	results := make([]Result, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q SubQuery) {
			defer wg.Done()
			results[i] = e.runBranch(ctx, q, breadth, depth, findings, visitedURLs)
		}(i, q)
	}
	wg.Wait()

	return Merge(results...)
}

// nextLevel halves breadth (never below 1) and steps depth down by one.
func nextLevel(breadth, depth int) (int, int) {
	return max(1, breadth/2), depth - 1
}

// childTopic frames the next level's planning prompt.
func childTopic(goal string, followUps []string) string {
	var sb strings.Builder
	sb.WriteString("Previous research goal: ")
	sb.WriteString(goal)
	sb.WriteString("\nFollow-up research directions:")
	for _, q := range followUps {
		sb.WriteString("\n")
		sb.WriteString(q)
	}
	return sb.String()
}

// runBranch executes one sub-query and, if depth remains, its sub-tree. Any
// failure inside the branch yields an empty Result.
func (e *ResearchEngine) runBranch(ctx context.Context, q SubQuery, breadth, depth int, findings, visitedURLs []string) (res Result) {
	logger := e.logger().With("query", q.Query)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Branch panicked", "panic", fmt.Sprint(r))
			metrics.BranchesTotal.WithLabelValues(metrics.StatusError).Inc()
			res = Result{}
		}
	}()

	if err := e.limiter.Acquire(ctx); err != nil {
		logger.Warn("Branch cancelled waiting for a slot", "error", err)
		metrics.BranchesTotal.WithLabelValues(metrics.StatusError).Inc()
		e.progress(q, breadth, depth)
		return Result{}
	}
	held := true
	release := func() {
		if held {
			held = false
			e.limiter.Release()
		}
	}
	defer release()

	childBreadth, childDepth := nextLevel(breadth, depth)

	own, urls, err := e.research(ctx, logger, q, childBreadth)
	e.progress(q, breadth, depth)
	if err != nil {
		if errors.Is(err, search.ErrTimeout) {
			logger.Warn("Query timed out", "error", err)
			metrics.BranchesTotal.WithLabelValues(metrics.StatusTimeout).Inc()
		} else {
			logger.Warn("Query failed", "error", err)
			metrics.BranchesTotal.WithLabelValues(metrics.StatusError).Inc()
		}
		return Result{}
	}
	metrics.BranchesTotal.WithLabelValues(metrics.StatusOK).Inc()
	metrics.FindingsExtracted.Add(float64(len(own.Findings)))

	allFindings := concat(findings, own.Findings)
	allURLs := concat(visitedURLs, urls)

	if childDepth <= 0 {
		return Result{Findings: allFindings, VisitedURLs: allURLs}
	}

	if e.Config.SlotPolicy == SlotPerLevel {
		release()
	}

	logger.Info("Researching deeper", "breadth", childBreadth, "depth", childDepth)
	return e.Expand(ctx, childTopic(q.ResearchGoal, own.FollowUpQuestions), childBreadth, childDepth, allFindings, allURLs)
}

// research runs the branch's own external calls: search, then synthesis.
func (e *ResearchEngine) research(ctx context.Context, logger *slog.Logger, q SubQuery, followUps int) (Synthesis, []string, error) {
	start := time.Now()
	docs, err := e.Search.Search(ctx, q.Query, e.Config.Search)
	status := metrics.StatusOK
	switch {
	case errors.Is(err, search.ErrTimeout):
		status = metrics.StatusTimeout
	case err != nil:
		status = metrics.StatusError
	}
	metrics.ExternalCallDuration.WithLabelValues("search", status).Observe(time.Since(start).Seconds())
	if err != nil {
		return Synthesis{}, nil, fmt.Errorf("search failed: %w", err)
	}

	urls := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
	}
	logger.Info("Search complete", "documents", len(docs), "urls", len(urls), "took", time.Since(start))

	syn, err := e.Synthesizer.Synthesize(ctx, q.Query, docs, e.Config.MaxLearnings, followUps)
	if err != nil {
		return Synthesis{}, nil, err
	}
	return syn, urls, nil
}

func (e *ResearchEngine) progress(q SubQuery, breadth, depth int) {
	done := e.completed.Add(1)
	if e.OnProgress == nil {
		return
	}
	e.OnProgress(Progress{
		Depth:            depth,
		Breadth:          breadth,
		TotalQueries:     int(e.total.Load()),
		CompletedQueries: int(done),
		CurrentQuery:     q.Query,
	})
}

func (e *ResearchEngine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
