package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-match-go/internal/agent"
	"resume-match-go/internal/api/handler"
	"resume-match-go/internal/api/router"
	"resume-match-go/internal/config"
	"resume-match-go/internal/grounded"
	appLogger "resume-match-go/internal/logger"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/processor"
	"resume-match-go/internal/scorer"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	"github.com/spf13/pflag"
)

// @title Resume Match API
// @version 1.0
// @description 简历与JD匹配服务：语义索引、多信号打分、证据化评估
// @BasePath /api/v1
func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径 (留空则按默认位置搜索)")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		hlog.Fatalf("加载配置失败: %v", err)
	}

	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	hlog.SetLogger(hertzzerolog.From(appLogger.Logger))
	hlog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdownTracer, err := tracing.InitTracerProvider(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			hlog.Fatalf("初始化链路追踪失败: %v", err)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()
			if err := shutdownTracer(shutdownCtx); err != nil {
				hlog.Warnf("关闭链路追踪失败: %v", err)
			}
		}()
		hlog.Info("链路追踪初始化成功")
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		hlog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	hlog.Info("存储服务初始化成功")

	aliyunEmbedder, err := parser.NewAliyunEmbedder(cfg.Aliyun.APIKey, cfg.Aliyun.Embedding)
	if err != nil {
		hlog.Fatalf("初始化阿里云Embedder失败: %v", err)
	}
	hlog.Info("阿里云Embedder初始化成功")

	var indexOpts []storage.ResumeIndexOption
	if storageManager.Redis != nil {
		indexOpts = append(indexOpts, storage.WithQueryVectorCache(storageManager.Redis, cfg.Aliyun.Embedding.Model))
	}
	resumeIndex := storage.NewResumeIndex(aliyunEmbedder, storageManager.VectorDB, indexOpts...)
	hlog.Info("简历索引初始化成功")

	chatModel, err := agent.NewAliyunQwenChatModel(cfg.Aliyun.APIKey, cfg.Aliyun.Model, cfg.Aliyun.APIURL)
	if err != nil {
		hlog.Fatalf("初始化阿里云Qwen聊天模型失败: %v", err)
	}
	completionTimeout := config.GetDuration(cfg.Evaluator.CompletionTimeout, 90*time.Second)
	completionClient := agent.NewCompletionClient(chatModel, completionTimeout)
	hlog.Info("LLM客户端初始化成功")

	extractor, err := parser.NewDocumentExtractor(ctx)
	if err != nil {
		hlog.Fatalf("初始化文档提取器失败: %v", err)
	}

	matchScorer, err := scorer.NewScorer(aliyunEmbedder, cfg)
	if err != nil {
		hlog.Fatalf("初始化打分器失败: %v", err)
	}

	evaluator := grounded.NewEvaluator(completionClient, cfg.Evaluator)

	matchService := processor.NewMatchService(resumeIndex, matchScorer, evaluator, completionClient, extractor, storageManager.MinIO)
	hlog.Info("匹配服务初始化成功")

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		hlog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		hlog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	matchHandler := handler.NewMatchHandler(matchService)
	router.RegisterRoutes(h, matchHandler)
	hlog.Info("HTTP路由注册成功")

	go func() {
		hlog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
		if err := h.Run(); err != nil {
			hlog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	hlog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		hlog.Fatalf("服务器关闭失败: %v", err)
	}
	hlog.Info("优雅退出完成")
}
