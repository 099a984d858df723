package handler

import (
	"context"
	"io"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/processor"
	"resume-match-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// MatchHandler HTTP 层，所有业务逻辑委托给 MatchService
type MatchHandler struct {
	service *processor.MatchService
}

// NewMatchHandler 创建匹配处理器
func NewMatchHandler(service *processor.MatchService) *MatchHandler {
	return &MatchHandler{service: service}
}

// writeError 将领域错误映射为 HTTP 状态码与机器可读的错误体
func writeError(ctx *app.RequestContext, err error) {
	kind := types.KindOf(err)
	status := consts.StatusInternalServerError
	switch kind {
	case types.KindValidationFailure:
		status = consts.StatusBadRequest
	case types.KindNotFound:
		status = consts.StatusNotFound
	}
	ctx.JSON(status, utils.H{"error": err.Error(), "kind": string(kind)})
}

// Health 健康检查，附带索引中的简历数量
func (h *MatchHandler) Health(c context.Context, ctx *app.RequestContext) {
	count, err := h.service.Count(c)
	if err != nil {
		logger.Warn().Err(err).Msg("健康检查: 获取索引数量失败")
		count = -1
	}
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok", "vector_db_count": count})
}

type analyzeRequest struct {
	JDText string `json:"jd_text"`
	TopK   int    `json:"top_k"`
}

// Analyze JD 与索引内简历的多信号匹配
func (h *MatchHandler) Analyze(c context.Context, ctx *app.RequestContext) {
	var req analyzeRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "无效的请求体: " + err.Error(), "kind": string(types.KindValidationFailure)})
		return
	}

	report, err := h.service.Analyze(c, req.JDText, req.TopK)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, report)
}

// UploadResume 上传单份简历文件并写入索引
func (h *MatchHandler) UploadResume(c context.Context, ctx *app.RequestContext) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件未找到", "kind": string(types.KindValidationFailure)})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "打开文件失败", "kind": string(types.KindInternal)})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取文件失败", "kind": string(types.KindInternal)})
		return
	}

	result, err := h.service.UploadResume(c, fileHeader.Filename, data)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, result)
}

type searchRequest struct {
	JDText string `json:"jd_text"`
	TopK   int    `json:"top_k"`
}

// SearchResumes 语义检索简历，并附带对 Top 结果的归因分析
func (h *MatchHandler) SearchResumes(c context.Context, ctx *app.RequestContext) {
	var req searchRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "无效的请求体: " + err.Error(), "kind": string(types.KindValidationFailure)})
		return
	}

	result, err := h.service.SearchResumes(c, req.JDText, req.TopK)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, result)
}

type queryRequest struct {
	Prompt string `json:"prompt"`
	TopK   int    `json:"top_k"`
}

// Query 自由问答：检索相关简历后交给大模型生成分析
func (h *MatchHandler) Query(c context.Context, ctx *app.RequestContext) {
	var req queryRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "无效的请求体: " + err.Error(), "kind": string(types.KindValidationFailure)})
		return
	}

	answer, err := h.service.QueryWithPrompt(c, req.Prompt, req.TopK)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, answer)
}

type groundedMatchRequest struct {
	JDText         string `json:"jd_text"`
	ResumeText     string `json:"resume_text"`
	WithReferences bool   `json:"with_references"`
}

// GroundedMatch 三阶段证据化评估：JD 要求抽取、逐条证据比对、参照简历模式归纳
func (h *MatchHandler) GroundedMatch(c context.Context, ctx *app.RequestContext) {
	var req groundedMatchRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "无效的请求体: " + err.Error(), "kind": string(types.KindValidationFailure)})
		return
	}

	report, err := h.service.GroundedMatch(c, req.JDText, req.ResumeText, req.WithReferences)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, report)
}

type findReferencesRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// FindReferences 按文本相似度检索参照简历
func (h *MatchHandler) FindReferences(c context.Context, ctx *app.RequestContext) {
	var req findReferencesRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "无效的请求体: " + err.Error(), "kind": string(types.KindValidationFailure)})
		return
	}

	hits, err := h.service.FindReferences(c, req.Query, req.TopK)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"references": hits, "count": len(hits)})
}
