package checkpoint

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"agentcore/internal/agent/ports/storage"
	"agentcore/internal/logging"
	"agentcore/internal/observability"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Status describes how far a past run got.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusUnknown   Status = "unknown"
)

const (
	defaultCacheSize = 512
	defaultCacheTTL  = 10 * time.Minute
)

// ThreadSummary is the display row for one run.
type ThreadSummary struct {
	RunID           string                `json:"run_id"`
	Latest          storage.CheckpointRef `json:"latest"`
	LatestCreatedAt time.Time             `json:"latest_created_at"`
	Status          Status                `json:"status"`
	RunCount        int                   `json:"run_count"`
	Title           string                `json:"title"`
	Preview         string                `json:"preview"`
}

// Page is one slice of filtered summaries.
type Page struct {
	Items   []ThreadSummary `json:"items"`
	HasMore bool            `json:"has_more"`
	Total   int             `json:"total"`
}

// HistoryConfig tunes the summary cache.
type HistoryConfig struct {
	CacheSize           int
	CacheTTL            time.Duration
	TaskTool            string
	ProjectInstructions string
}

// HistoryService lists past runs. Summaries are cached per run; resume
// selection never goes through the cache.
type HistoryService struct {
	store   storage.Store
	cfg     HistoryConfig
	cache   *expirable.LRU[string, ThreadSummary]
	metrics *observability.CacheMetrics
	logger  logging.Logger
}

// NewHistoryService builds a service over store. metrics may be nil.
func NewHistoryService(store storage.Store, cfg HistoryConfig, metrics *observability.CacheMetrics, logger logging.Logger) *HistoryService {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.TaskTool == "" {
		cfg.TaskTool = DefaultTaskTool
	}
	return &HistoryService{
		store:   store,
		cfg:     cfg,
		cache:   expirable.NewLRU[string, ThreadSummary](cfg.CacheSize, nil, cfg.CacheTTL),
		metrics: metrics,
		logger:  logging.OrNop(logger),
	}
}

// ListThreads returns every run summary, newest first. limit <= 0 means all.
func (s *HistoryService) ListThreads(ctx context.Context, limit int) ([]ThreadSummary, error) {
	summaries, err := s.summaries(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// ListThreadsPage filters summaries case-insensitively on title, preview and
// run id, then returns the requested window. refresh drops every cached summary first.
func (s *HistoryService) ListThreadsPage(ctx context.Context, query string, offset, limit int, refresh bool) (Page, error) {
	offset = max(offset, 0)
	limit = max(limit, 1)
	if refresh {
		s.Refresh()
	}
	summaries, err := s.summaries(ctx)
	if err != nil {
		return Page{}, err
	}
	filtered := filterSummaries(summaries, query)
	if offset >= len(filtered) {
		return Page{Items: []ThreadSummary{}, Total: len(filtered)}, nil
	}
	end := min(offset+limit, len(filtered))
	return Page{
		Items:   filtered[offset:end],
		HasMore: end < len(filtered),
		Total:   len(filtered),
	}, nil
}

// Refresh purges the summary cache.
func (s *HistoryService) Refresh() {
	s.cache.Purge()
	s.metrics.RecordPurge()
	s.metrics.SetEntries(0)
}

// Invalidate drops the cached summary of one run.
func (s *HistoryService) Invalidate(runID string) {
	s.cache.Remove(runID)
	s.metrics.SetEntries(s.cache.Len())
}

// Load returns a live checkpoint by reference, or ErrCheckpointNotFound.
func (s *HistoryService) Load(ctx context.Context, ref storage.CheckpointRef) (*storage.Checkpoint, error) {
	checkpoints, err := s.store.List(ctx, ref.RunID, false)
	if err != nil {
		return nil, err
	}
	for _, cp := range checkpoints {
		if cp.CheckpointID == ref.CheckpointID && !cp.Tombstoned {
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", ref.RunID, ref.CheckpointID, storage.ErrCheckpointNotFound)
}

// ResumePoint selects where a run would resume. It always reads the store.
func (s *HistoryService) ResumePoint(ctx context.Context, runID string, ref *storage.CheckpointRef) (*storage.Checkpoint, error) {
	return SelectResume(ctx, s.store, runID, ref)
}

func (s *HistoryService) summaries(ctx context.Context) ([]ThreadSummary, error) {
	runIDs, err := s.store.ListRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	summaries := make([]ThreadSummary, 0, len(runIDs))
	for _, runID := range runIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cached, ok := s.cache.Get(runID); ok {
			s.metrics.RecordLookup(true)
			summaries = append(summaries, cached)
			continue
		}
		s.metrics.RecordLookup(false)
		summary, ok, err := s.buildSummary(ctx, runID)
		if err != nil {
			s.logger.Warn("Failed to load checkpoints for run %s: %v", runID, err)
			continue
		}
		if !ok {
			continue
		}
		s.cache.Add(runID, summary)
		summaries = append(summaries, summary)
	}
	s.metrics.SetEntries(s.cache.Len())

	slices.SortStableFunc(summaries, func(a, b ThreadSummary) int {
		return b.LatestCreatedAt.Compare(a.LatestCreatedAt)
	})
	return summaries, nil
}

func (s *HistoryService) buildSummary(ctx context.Context, runID string) (ThreadSummary, bool, error) {
	checkpoints, err := newestFirst(ctx, s.store, runID)
	if err != nil {
		return ThreadSummary{}, false, err
	}
	if len(checkpoints) == 0 {
		return ThreadSummary{}, false, nil
	}
	latest := checkpoints[0]
	return ThreadSummary{
		RunID:           runID,
		Latest:          latest.Ref(),
		LatestCreatedAt: latest.CreatedAt,
		Status:          statusOf(latest),
		RunCount:        len(checkpoints),
		Title:           Title(latest.MessageHistory, s.cfg.TaskTool, s.cfg.ProjectInstructions),
		Preview:         Preview(latest.MessageHistory),
	}, true, nil
}

func statusOf(cp storage.Checkpoint) Status {
	switch cp.LastNodeSegment() {
	case storage.NodeFinish:
		return StatusCompleted
	case storage.NodeStart:
		return StatusUnknown
	default:
		return StatusPartial
	}
}

func filterSummaries(summaries []ThreadSummary, query string) []ThreadSummary {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return summaries
	}
	var out []ThreadSummary
	for _, summary := range summaries {
		if strings.Contains(strings.ToLower(summary.Title), query) ||
			strings.Contains(strings.ToLower(summary.Preview), query) ||
			strings.Contains(strings.ToLower(summary.RunID), query) {
			out = append(out, summary)
		}
	}
	return out
}
