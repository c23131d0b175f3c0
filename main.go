package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobgenius-go/internal/analyzer"
	"jobgenius-go/internal/api/handler"
	"jobgenius-go/internal/api/router"
	"jobgenius-go/internal/config"
	"jobgenius-go/internal/extractor"
	appLogger "jobgenius-go/internal/logger"
	"jobgenius-go/internal/pipeline"
	"jobgenius-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	// .env缺失不是错误，环境变量覆盖在LoadConfig里处理
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	initLogger(&cfg.Logger)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	textExtractor, err := extractor.New(ctx, extractor.WithMinWordCount(cfg.Upload.MinWordCount))
	if err != nil {
		glog.Fatalf("初始化文本提取器失败: %v", err)
	}
	glog.Info("文本提取器初始化成功")

	qualityAnalyzer, err := analyzer.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Temperature, cfg.Gemini.AnalyzeTimeout())
	if err != nil {
		glog.Fatalf("初始化AI分析器失败: %v", err)
	}
	if qualityAnalyzer.Enabled() {
		glog.Info("AI分析器初始化成功")
	} else {
		glog.Warn("未配置Gemini API密钥，AI分析以降级模式运行")
	}

	ingestPipeline := pipeline.New(textExtractor, storageManager.MinIO, qualityAnalyzer, storageManager.MySQL)
	glog.Info("摄取流水线初始化成功")

	resumeHandler := handler.NewResumeHandler(cfg, storageManager, ingestPipeline)

	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, cfg, resumeHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog全局日志并桥接Hertz的glog
func initLogger(cfg *appLogger.Config) {
	appLogger.Init(*cfg)

	hertzCompatibleLogger := hertzadapter.From(appLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
	if cfg.Level == "debug" {
		glog.SetLevel(glog.LevelDebug)
	} else {
		glog.SetLevel(glog.LevelInfo)
	}
}
