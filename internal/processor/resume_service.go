package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"resume-search/internal/logger"
	"resume-search/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// SearchService 检索流水线：向量召回 → 取记录 → 抽取检索条件 → 打分 → 稳定排序
type SearchService struct {
	comp *Components
	set  *Settings
	log  zerolog.Logger
}

// NewSearchService 创建检索服务
func NewSearchService(comp *Components, set *Settings, opts ...SettingOpt) (*SearchService, error) {
	if comp == nil {
		return nil, errors.New("components cannot be nil")
	}
	switch {
	case comp.Embedder == nil:
		return nil, errors.New("embedder is not initialized")
	case comp.VectorIndex == nil:
		return nil, errors.New("vector index is not initialized")
	case comp.Store == nil:
		return nil, errors.New("resume store is not initialized")
	case comp.QueryExtractor == nil:
		return nil, errors.New("query extractor is not initialized")
	}
	return &SearchService{
		comp: comp,
		set:  applySettings(set, opts...),
		log:  logger.Component("search_service"),
	}, nil
}

// Search 返回最匹配的一份简历；没有任何候选时返回 ErrNoMatch
func (s *SearchService) Search(ctx context.Context, prompt string) (*RankedResume, error) {
	ranked, err := s.SearchRanked(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &ranked[0], nil
}

// SearchRanked 返回全部候选的排序结果，至少包含一个元素
func (s *SearchService) SearchRanked(ctx context.Context, prompt string) ([]RankedResume, error) {
	ctx, span := tracer.Start(ctx, "SearchService.Search")
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrValidation)
	}
	span.SetAttributes(attribute.String("prompt", tracing.SafePrompt(prompt)))

	vectors, err := s.comp.Embedder.EmbedStrings(ctx, []string{prompt})
	if err == nil && (len(vectors) == 0 || len(vectors[0]) == 0) {
		err = errors.New("embedder returned no vector")
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, fmt.Errorf("embed prompt: %w", wrapProviderError("embedding", err))
	}

	hits, err := s.comp.VectorIndex.SearchResumes(ctx, vectors[0], s.set.SearchTopK)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(hits) == 0 {
		return nil, ErrNoMatch
	}

	ids := make([]uint, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ResumeID)
	}
	candidates, err := s.comp.Store.GetResumesByIDs(ctx, ids)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, fmt.Errorf("fetch candidates: %w", err)
	}
	if len(candidates) < len(ids) {
		s.log.Warn().Int("hits", len(ids)).Int("found", len(candidates)).Msg("部分向量对应的简历记录不存在，已跳过")
	}
	if len(candidates) == 0 {
		return nil, ErrNoMatch
	}

	query, err := s.comp.QueryExtractor.ExtractQuery(ctx, prompt)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, fmt.Errorf("extract query: %w", err)
	}

	ranked := RankCandidates(query, candidates)
	span.SetAttributes(
		attribute.Int("candidates", len(ranked)),
		attribute.Int("best_score", ranked[0].Score),
		attribute.Int64("best_resume_id", int64(ranked[0].Resume.ID)),
	)
	s.log.Debug().Int("candidates", len(ranked)).Uint("resume_id", ranked[0].Resume.ID).Int("score", ranked[0].Score).Msg("检索完成")
	return ranked, nil
}
