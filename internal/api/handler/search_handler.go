package handler

import (
	"context"
	"errors"
	"strings"

	"resume-search/internal/constants"
	"resume-search/internal/logger"
	"resume-search/internal/processor"

	"github.com/cloudwego/hertz/pkg/app"
	hertzutils "github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// ResumeSearcher 返回与描述最匹配的简历
type ResumeSearcher interface {
	Search(ctx context.Context, prompt string) (*processor.RankedResume, error)
}

var _ ResumeSearcher = (*processor.SearchService)(nil)

// SearchHandler 简历检索
type SearchHandler struct {
	searcher ResumeSearcher
}

// NewSearchHandler 创建检索处理器
func NewSearchHandler(searcher ResumeSearcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// SearchRequest 检索请求体
type SearchRequest struct {
	UserPrompt string `json:"user_prompt"`
}

// Search POST /api/v1/search-resume/
func (h *SearchHandler) Search(c context.Context, ctx *app.RequestContext) {
	var req SearchRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, hertzutils.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.UserPrompt) == "" {
		ctx.JSON(consts.StatusBadRequest, hertzutils.H{"error": "user_prompt is required"})
		return
	}

	best, err := h.searcher.Search(c, req.UserPrompt)
	switch {
	case errors.Is(err, processor.ErrNoMatch):
		ctx.JSON(consts.StatusOK, hertzutils.H{"message": constants.MessageNoMatch})
	case errors.Is(err, processor.ErrValidation):
		ctx.JSON(consts.StatusBadRequest, hertzutils.H{"error": err.Error()})
	case err != nil:
		logger.Ctx(c).Error().Err(err).Msg("简历检索失败")
		ctx.JSON(consts.StatusInternalServerError, hertzutils.H{"error": err.Error()})
	default:
		logger.Ctx(c).Debug().Uint("resume_id", best.Resume.ID).Int("score", best.Score).Msg("检索完成")
		ctx.JSON(consts.StatusOK, best.Resume)
	}
}
