package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/ctxloom/ctxloom/internal/ai"
	"github.com/ctxloom/ctxloom/internal/blobstore"
	"github.com/ctxloom/ctxloom/internal/cachestore"
	"github.com/ctxloom/ctxloom/internal/config"
	"github.com/ctxloom/ctxloom/internal/model"
	appErr "github.com/ctxloom/ctxloom/internal/pkg/errors"
	"github.com/ctxloom/ctxloom/internal/pkg/timeutil"
	"github.com/ctxloom/ctxloom/internal/repo"
)

const embedTaskQuery = "RETRIEVAL_QUERY"

// promptPrefixLen bounds how much of the prompt participates in the
// cache key digest.
const promptPrefixLen = 256

type AssembleRequest struct {
	ProjectID           string
	Prompt              string
	Budget              int
	HotPaths            []string
	Model               string
	IncludeConversation bool
}

type AssembleResult struct {
	SessionID     string         `json:"session_id"`
	AssembledText string         `json:"assembled_text"`
	TokenUsage    int            `json:"token_usage"`
	Cached        bool           `json:"cached"`
	Metadata      map[string]int `json:"metadata"`
}

// AssemblyService merges the four candidate streams into one ordered
// list, packs it greedily under the caller's token budget, renders the
// delimited context block, and memoizes the result.
type AssemblyService struct {
	retrieval *RetrievalService
	summaries *repo.SummaryRepo
	sessions  *repo.SessionRepo
	blobs     blobstore.Store
	cache     cachestore.Store
	embedder  ai.IEmbedder
	cfg       config.AssemblyConfig
}

func NewAssemblyService(retrieval *RetrievalService, summaries *repo.SummaryRepo, sessions *repo.SessionRepo,
	blobs blobstore.Store, cache cachestore.Store, embedder ai.IEmbedder, cfg config.AssemblyConfig) *AssemblyService {
	return &AssemblyService{
		retrieval: retrieval,
		summaries: summaries,
		sessions:  sessions,
		blobs:     blobs,
		cache:     cache,
		embedder:  embedder,
		cfg:       cfg,
	}
}

// Assemble is a pure function of its inputs plus store reads, modulo
// the cache short-circuit. The caller either gets a valid block within
// budget or a store failure; never a silently truncated result.
func (s *AssemblyService) Assemble(ctx context.Context, req AssembleRequest) (*AssembleResult, error) {
	if req.ProjectID == "" || strings.TrimSpace(req.Prompt) == "" || req.Budget <= 0 {
		return nil, appErr.ErrInvalid
	}
	logger := logutil.GetLogger(ctx).With(zap.String("project_id", req.ProjectID), zap.Int("budget", req.Budget))

	cacheKey := assemblyCacheKey(req)
	if cached, ok := s.cache.Get(ctx, cacheKey); ok {
		var result AssembleResult
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			result.Cached = true
			logger.Debug("assembly cache hit", zap.String("session_id", result.SessionID))
			return &result, nil
		}
	}

	queryEmbedding, err := s.embedder.Embed(ctx, req.Prompt, embedTaskQuery)
	if err != nil {
		// Safe wrapper degrades before this; treat a surfacing error
		// the same way.
		logger.Warn("query embedding degraded", zap.Error(err))
		queryEmbedding = nil
	}

	hotWindow, err := s.retrieval.HotWindow(ctx, req.ProjectID, req.HotPaths)
	if err != nil {
		return nil, err
	}
	var retrieved []model.Candidate
	if len(queryEmbedding) > 0 && !ai.IsZeroVector(queryEmbedding) {
		retrieved, err = s.retrieval.Retrieve(ctx, req.ProjectID, queryEmbedding, req.HotPaths)
		if err != nil {
			return nil, err
		}
	}
	var conversation []model.Candidate
	if req.IncludeConversation {
		conversation, err = s.retrieval.Conversation(ctx, req.ProjectID, 0)
		if err != nil {
			return nil, err
		}
	}

	ps := newPackState(req.Budget)
	ps.consume(hotWindow)
	hotCount := len(ps.included)
	ps.consume(retrieved)
	retrievedCount := len(ps.included) - hotCount
	ps.consume(conversation)
	convoCount := len(ps.included) - hotCount - retrievedCount

	summaryCount := s.backfillSummaries(ctx, req.ProjectID, ps)

	pieces, renderIn, err := s.hydrate(ctx, ps.included, hotCount, retrievedCount, convoCount)
	if err != nil {
		return nil, err
	}
	renderIn.Prompt = req.Prompt

	result := &AssembleResult{
		SessionID:     uuid.NewString(),
		AssembledText: renderContext(renderIn),
		TokenUsage:    ps.tokensUsed,
		Metadata: map[string]int{
			"hot_window":   hotCount,
			"retrieved":    retrievedCount,
			"conversation": convoCount,
			"summaries":    summaryCount,
		},
	}

	s.recordSession(ctx, req, result.SessionID, pieces, ps.tokensUsed)

	if data, err := json.Marshal(result); err == nil {
		s.cache.SetWithTTL(ctx, cacheKey, string(data), s.cfg.CacheTTLSeconds)
	}
	logger.Info("context assembled",
		zap.String("session_id", result.SessionID),
		zap.Int("token_usage", result.TokenUsage),
		zap.Int("pieces", len(ps.included)))
	return result, nil
}

// backfillSummaries fills remaining budget with the project summary and
// then up to MaxFileSummaries file summaries for files touched by the
// packed chunks, but only when at least BackfillFreeFrac of the budget
// is still free after streams 1-3.
func (s *AssemblyService) backfillSummaries(ctx context.Context, projectID string, ps *packState) int {
	margin := int(float64(ps.budget) * s.cfg.BackfillFreeFrac)
	if ps.free() < margin {
		return 0
	}
	appended := 0
	if project, err := s.summaries.GetProjectSummary(ctx, projectID); err == nil {
		appended += ps.consume([]model.Candidate{summaryCandidate(*project)})
	}
	paths := touchedPaths(ps.included)
	if len(paths) == 0 {
		return appended
	}
	fileSummaries, err := s.summaries.ListFileSummaries(ctx, projectID, paths)
	if err != nil {
		logutil.GetLogger(ctx).Warn("file summary lookup failed", zap.Error(err))
		return appended
	}
	sort.Slice(fileSummaries, func(i, j int) bool {
		return fileSummaries[i].Ctime > fileSummaries[j].Ctime
	})
	if len(fileSummaries) > s.cfg.MaxFileSummaries {
		fileSummaries = fileSummaries[:s.cfg.MaxFileSummaries]
	}
	stream := make([]model.Candidate, 0, len(fileSummaries))
	for _, summary := range fileSummaries {
		stream = append(stream, summaryCandidate(summary))
	}
	appended += ps.consume(stream)
	return appended
}

// hydrate fetches the persisted text of each included candidate and
// groups the pieces into render sections by stream.
func (s *AssemblyService) hydrate(ctx context.Context, included []model.Candidate, hotCount, retrievedCount, convoCount int) ([]model.SessionPiece, renderInput, error) {
	var in renderInput
	pieces := make([]model.SessionPiece, 0, len(included))
	snippetEnd := hotCount + retrievedCount
	convoEnd := snippetEnd + convoCount
	for i, cand := range included {
		text, err := s.fetchText(ctx, cand)
		if err != nil {
			return nil, in, err
		}
		piece := renderPiece{Candidate: cand, Text: text}
		var priority int
		switch {
		case i < hotCount:
			priority = model.PriorityHotWindow
			in.Snippets = append(in.Snippets, piece)
		case i < snippetEnd:
			priority = model.PriorityRetrieved
			in.Snippets = append(in.Snippets, piece)
		case i < convoEnd:
			priority = model.PriorityConversation
			in.Conversation = append(in.Conversation, piece)
		default:
			priority = model.PrioritySummary
			if cand.Path == "project" {
				p := piece
				in.ProjectSummary = &p
			} else {
				in.FileSummaries = append(in.FileSummaries, piece)
			}
		}
		pieces = append(pieces, model.SessionPiece{
			ID:         cand.ID,
			Path:       cand.Path,
			TokenCount: cand.TokenCount,
			Priority:   priority,
		})
	}
	return pieces, in, nil
}

// fetchText rehydrates candidate text from the blob store through the
// cache.
func (s *AssemblyService) fetchText(ctx context.Context, cand model.Candidate) (string, error) {
	key := blobstore.ChunkKey(cand.ID)
	if cand.IsSummary {
		key = blobstore.SummaryKey(cand.ID)
	}
	cacheKey := "blob:" + key
	if cached, ok := s.cache.Get(ctx, cacheKey); ok {
		return cached, nil
	}
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%w: fetch blob %s: %v", appErr.ErrStoreUnavailable, key, err)
	}
	s.cache.SetWithTTL(ctx, cacheKey, string(data), s.cfg.CacheTTLSeconds)
	return string(data), nil
}

// recordSession writes the audit row after the response is computed;
// failure is logged and never fails the assembly.
func (s *AssemblyService) recordSession(ctx context.Context, req AssembleRequest, sessionID string, pieces []model.SessionPiece, totalTokens int) {
	session := &model.ContextSession{
		ID:          sessionID,
		ProjectID:   req.ProjectID,
		ModelName:   req.Model,
		TotalTokens: totalTokens,
		Pieces:      pieces,
		Ctime:       timeutil.NowUnix(),
	}
	if err := s.sessions.Insert(ctx, session); err != nil {
		logutil.GetLogger(ctx).Warn("failed to record context session",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// ListSessions exposes the audit trail for analytics reads.
func (s *AssemblyService) ListSessions(ctx context.Context, projectID string, limit int) ([]model.ContextSession, error) {
	if projectID == "" {
		return nil, appErr.ErrInvalid
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sessions, err := s.sessions.ListByProject(ctx, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", appErr.ErrStoreUnavailable, err)
	}
	return sessions, nil
}

func summaryCandidate(s model.Summary) model.Candidate {
	return model.Candidate{
		ID:         s.ID,
		Path:       s.Path,
		TokenCount: s.TokenCount,
		Ctime:      s.Ctime,
		IsSummary:  true,
	}
}

// touchedPaths collects the distinct file paths of packed chunks,
// preserving first-seen order and skipping synthetic paths.
func touchedPaths(included []model.Candidate) []string {
	var paths []string
	seen := make(map[string]struct{})
	for _, cand := range included {
		if cand.IsSummary || cand.Path == PathConversation || cand.Path == PathLogs {
			continue
		}
		if _, ok := seen[cand.Path]; ok {
			continue
		}
		seen[cand.Path] = struct{}{}
		paths = append(paths, cand.Path)
	}
	return paths
}

func assemblyCachePrefix(projectID string) string {
	return "ctx:" + projectID + ":"
}

// assemblyCacheKey derives the deterministic memoization key from the
// request's identity: project, prompt prefix, budget, model and the
// sorted hot paths.
func assemblyCacheKey(req AssembleRequest) string {
	prompt := req.Prompt
	if len(prompt) > promptPrefixLen {
		prompt = prompt[:promptPrefixLen]
	}
	hotPaths := append([]string(nil), req.HotPaths...)
	sort.Strings(hotPaths)
	payload := fmt.Sprintf("%s|%d|%s|%s|%v", prompt, req.Budget, req.Model, strings.Join(hotPaths, ","), req.IncludeConversation)
	hash := sha256.Sum256([]byte(payload))
	return assemblyCachePrefix(req.ProjectID) + hex.EncodeToString(hash[:])
}
