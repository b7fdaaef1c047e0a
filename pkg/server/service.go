package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/search"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrJobNotFound    = errors.New("job not found")
	ErrIndexDisabled  = errors.New("findings index is not configured")
)

// Job statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	defaultFindingsK = 5
	maxFindingsK     = 50
)

// Embedder turns findings and search queries into vectors.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// FindingIndex stores embedded findings per job.
type FindingIndex interface {
	AddDocuments(ctx context.Context, docs []vectorstore.Document) error
	SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, filter map[string]string) ([]vectorstore.SimilaritySearchResult, error)
	DeleteByMetadata(ctx context.Context, filter map[string]string) (int64, error)
}

type Service struct {
	DB     *database.PostgresDB
	Cfg    *config.Config
	LLM    llms.Model
	Search search.Provider

	// Embedder and Index are optional; without them findings are not indexed.
	Embedder Embedder
	Index    FindingIndex

	// limiter is shared by every job so concurrent jobs stay within one
	// branch capacity.
	limiter *research.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(db *database.PostgresDB, cfg *config.Config, llm llms.Model, provider search.Provider) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		DB:      db,
		Cfg:     cfg,
		LLM:     llm,
		Search:  provider,
		limiter: research.NewLimiter(cfg.ConcurrencyLimit),
		ctx:     ctx,
		cancel:  cancel,
	}
}

type Job struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	Status      string          `json:"status"`
	Breadth     int             `json:"breadth"`
	Depth       int             `json:"depth"`
	Report      *string         `json:"report,omitempty"`
	Error       *string         `json:"error,omitempty"`
	Findings    []string        `json:"findings,omitempty"`
	VisitedURLs []string        `json:"visited_urls,omitempty"`
	State       json.RawMessage `json:"state,omitempty"`
	Config      json.RawMessage `json:"config"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CreateJobRequest struct {
	Topic   string `json:"topic"`
	Breadth *int   `json:"breadth,omitempty"`
	Depth   *int   `json:"depth,omitempty"`
}

// resolve fills breadth and depth from cfg and checks the request.
func (r CreateJobRequest) resolve(cfg *config.Config) (breadth, depth int, err error) {
	if r.Topic == "" {
		return 0, 0, fmt.Errorf("%w: topic is required", ErrInvalidRequest)
	}
	breadth, depth = cfg.MaxBreadth, cfg.MaxDepth
	if r.Breadth != nil {
		breadth = *r.Breadth
	}
	if r.Depth != nil {
		depth = *r.Depth
	}
	if breadth < 1 {
		return 0, 0, fmt.Errorf("%w: breadth must be at least 1", ErrInvalidRequest)
	}
	if depth < 0 {
		return 0, 0, fmt.Errorf("%w: depth must not be negative", ErrInvalidRequest)
	}
	return breadth, depth, nil
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	breadth, depth, err := req.resolve(s.Cfg)
	if err != nil {
		return nil, err
	}

	configJSON, err := json.Marshal(map[string]any{
		"concurrency":   s.Cfg.ConcurrencyLimit,
		"max_learnings": s.Cfg.MaxLearnings,
		"slot_policy":   s.Cfg.SlotPolicy,
		"search":        s.Cfg.SearchProvider,
		"llm_provider":  s.Cfg.LLMProvider,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job config: %w", err)
	}

	query := `
		INSERT INTO research_jobs (id, topic, status, breadth, depth, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, topic, status, breadth, depth, config, created_at, updated_at
	`

	job := &Job{}
	err = s.DB.Pool.QueryRow(ctx, query, uuid.New(), req.Topic, StatusPending, breadth, depth, configJSON).Scan(
		&job.ID, &job.Topic, &job.Status, &job.Breadth, &job.Depth, &job.Config, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runWorker(job.ID, job.Topic, breadth, depth)
	}()

	return job, nil
}

const jobColumns = `id, topic, status, breadth, depth, report, error, findings, visited_urls, state, config, created_at, updated_at`

func scanJob(row pgx.Row) (Job, error) {
	var job Job
	err := row.Scan(&job.ID, &job.Topic, &job.Status, &job.Breadth, &job.Depth, &job.Report, &job.Error,
		&job.Findings, &job.VisitedURLs, &job.State, &job.Config, &job.CreatedAt, &job.UpdatedAt)
	return job, err
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM research_jobs WHERE id = $1`

	job, err := scanJob(s.DB.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM research_jobs ORDER BY created_at DESC LIMIT 50`

	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	return logs, nil
}

// FindingMatch is one semantic search hit over a job's findings.
type FindingMatch struct {
	Finding string  `json:"finding"`
	Score   float64 `json:"score"`
}

// SearchFindings ranks the job's indexed findings against q. k <= 0 means the
// default; larger values are capped.
func (s *Service) SearchFindings(ctx context.Context, jobID uuid.UUID, q string, k int) ([]FindingMatch, error) {
	if s.Embedder == nil || s.Index == nil {
		return nil, ErrIndexDisabled
	}
	if q == "" {
		return nil, fmt.Errorf("%w: q is required", ErrInvalidRequest)
	}
	if k <= 0 {
		k = defaultFindingsK
	}
	k = min(k, maxFindingsK)

	vec, err := s.Embedder.EmbedText(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.Index.SimilaritySearch(ctx, vec, k, findingFilter(jobID))
	if err != nil {
		return nil, err
	}

	matches := make([]FindingMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, FindingMatch{Finding: r.Document.Content, Score: r.Score})
	}
	return matches, nil
}

func findingFilter(jobID uuid.UUID) map[string]string {
	return map[string]string{"job_id": jobID.String(), "source": "finding"}
}

// Shutdown cancels running jobs and waits for their workers to record the
// outcome, or for ctx to end.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) runWorker(jobID uuid.UUID, topic string, breadth, depth int) {
	ctx := s.ctx

	dbLogger := slog.New(newTeeHandler(NewDBLogHandler(s.DB.Pool, jobID), slog.Default().Handler())).
		With("job_id", jobID.String())

	defer func() {
		if r := recover(); r != nil {
			s.failJob(jobID, dbLogger, fmt.Sprintf("Research worker panicked: %v", r))
		}
	}()

	if _, err := s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = $2, updated_at = NOW() WHERE id = $1", jobID, StatusRunning); err != nil {
		dbLogger.Error("Failed to mark job running", "error", err)
	}

	pipeline, err := research.NewPipeline(s.Cfg, s.LLM, s.Search, dbLogger)
	if err != nil {
		s.failJob(jobID, dbLogger, fmt.Sprintf("Failed to init engine: %v", err))
		return
	}
	pipeline.Engine.ShareLimiter(s.limiter)

	// Persist progress so clients can poll it
	pipeline.Engine.OnProgress = func(p research.Progress) {
		stateJSON, err := json.Marshal(p)
		if err != nil {
			dbLogger.Error("Failed to marshal state", "error", err)
			return
		}
		_, err = s.DB.Pool.Exec(context.Background(),
			"UPDATE research_jobs SET state = $2, updated_at = NOW() WHERE id = $1",
			jobID, stateJSON)
		if err != nil {
			dbLogger.Error("Failed to save state to DB", "error", err)
		}
	}

	res := pipeline.Engine.Run(ctx, topic, breadth, depth)

	report, err := research.WriteReport(ctx, pipeline.Completer, topic, res.Findings, res.VisitedURLs)
	if err != nil {
		s.failJob(jobID, dbLogger, fmt.Sprintf("Research failed: %v", err))
		return
	}

	findingsJSON, _ := json.Marshal(res.Findings)
	urlsJSON, _ := json.Marshal(res.VisitedURLs)

	_, err = s.DB.Pool.Exec(context.Background(),
		`UPDATE research_jobs
		 SET status = $2, report = $3, findings = $4, visited_urls = $5, updated_at = NOW()
		 WHERE id = $1`,
		jobID, StatusCompleted, report, findingsJSON, urlsJSON)
	if err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
	}

	s.indexFindings(context.Background(), jobID, res.Findings, dbLogger)
}

// indexFindings embeds the job's findings for semantic search. Failures are
// logged; the job stays completed.
func (s *Service) indexFindings(ctx context.Context, jobID uuid.UUID, findings []string, logger *slog.Logger) {
	if s.Embedder == nil || s.Index == nil || len(findings) == 0 {
		return
	}

	filter := findingFilter(jobID)
	if _, err := s.Index.DeleteByMetadata(ctx, filter); err != nil {
		logger.Warn("Failed to clear previous findings", "error", err)
	}

	vectors, err := s.Embedder.EmbedTexts(ctx, findings)
	if err != nil {
		logger.Error("Failed to embed findings", "error", err)
		return
	}
	if len(vectors) != len(findings) {
		logger.Error("Failed to embed findings", "error", fmt.Sprintf("got %d vectors for %d findings", len(vectors), len(findings)))
		return
	}

	docs := make([]vectorstore.Document, 0, len(findings))
	for i, f := range findings {
		docs = append(docs, vectorstore.Document{Content: f, Metadata: filter, Embedding: vectors[i]})
	}
	if err := s.Index.AddDocuments(ctx, docs); err != nil {
		logger.Error("Failed to index findings", "error", err)
		return
	}
	logger.Info("Indexed findings", "count", len(docs))
}

func (s *Service) failJob(jobID uuid.UUID, logger *slog.Logger, reason string) {
	logger.Error(reason)

	_, err := s.DB.Pool.Exec(context.Background(),
		"UPDATE research_jobs SET status = $2, error = $3, updated_at = NOW() WHERE id = $1",
		jobID, StatusFailed, reason)
	if err != nil {
		slog.Error("Failed to mark job failed", "job_id", jobID, "error", err)
	}
}
