package router

import (
	"resume-match-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app/server"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, matchHandler *handler.MatchHandler) {
	api := h.Group("/api/v1")

	api.GET("/health", matchHandler.Health)

	api.POST("/analyze", matchHandler.Analyze)
	api.POST("/resumes/upload", matchHandler.UploadResume)
	api.POST("/resumes/search", matchHandler.SearchResumes)
	api.POST("/resumes/query", matchHandler.Query)
	api.POST("/match/grounded", matchHandler.GroundedMatch)
	api.POST("/references/find", matchHandler.FindReferences)
}
