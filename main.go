package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"job-match-go/internal/api/handler"
	"job-match-go/internal/api/router"
	"job-match-go/internal/config"
	"job-match-go/internal/constants"
	"job-match-go/internal/llm"
	applogger "job-match-go/internal/logger"
	"job-match-go/internal/matching"
	"job-match-go/internal/storage"
	"job-match-go/internal/tracing"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		applogger.Fatal().Err(err).Msg("加载配置失败")
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		ServiceName:  cfg.Tracing.ServiceName,
		SampleRatio:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		glog.Fatalf("初始化追踪失败: %v", err)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	if storageManager.MySQL == nil || storageManager.Redis == nil || storageManager.Qdrant == nil {
		glog.Fatalf("匹配流水线需要MySQL、Redis和Qdrant全部可用")
	}

	skillModel, err := llm.NewQwenChatModel(
		cfg.LLM.APIKey,
		cfg.GetModelForTask(constants.TaskSkillOverlap),
		cfg.LLM.APIURL,
		llm.WithTemperature(cfg.SkillEstimator.Temperature),
		llm.WithMaxTokens(cfg.SkillEstimator.MaxTokens),
	)
	if err != nil {
		glog.Fatalf("初始化技能评估模型失败: %v", err)
	}
	explainModel, err := llm.NewQwenChatModel(
		cfg.LLM.APIKey,
		cfg.GetModelForTask(constants.TaskMatchExplain),
		cfg.LLM.APIURL,
		llm.WithTemperature(cfg.MatchExplainer.Temperature),
		llm.WithMaxTokens(cfg.MatchExplainer.MaxTokens),
	)
	if err != nil {
		glog.Fatalf("初始化匹配解释模型失败: %v", err)
	}
	glog.Info("LLM模型初始化成功")

	skillEstimator := matching.NewLLMSkillOverlapEstimator(skillModel, cfg.SkillEstimator)
	matchExplainer := matching.NewLLMMatchExplainer(explainModel, cfg.MatchExplainer)

	// RabbitMQ不可用时事件发布降级关闭，不影响匹配计算
	var events matching.EventPublisher
	if storageManager.RabbitMQ != nil {
		events = storageManager.RabbitMQ
	} else {
		glog.Warn("RabbitMQ未配置，匹配完成事件发布已禁用")
	}

	pipeline := matching.NewPipeline(
		storageManager.MySQL,
		storageManager.MySQL,
		storageManager.Redis,
		storageManager.Qdrant,
		skillEstimator,
		matchExplainer,
		events,
		cfg.Qdrant.DefaultMatchLimit,
	)
	matchHandler := handler.NewMatchHandler(pipeline, storageManager.MySQL)
	glog.Info("匹配流水线初始化成功")

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		ctx.Next(c)
		glog.CtxInfof(c, "%s %s -> %d", string(ctx.Method()), string(ctx.Path()), ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, cfg, matchHandler)
	glog.Infof("HTTP服务器启动中，监听地址: %s", cfg.Server.Address)

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
	if err := shutdownTracing(shutdownCtx); err != nil {
		glog.Errorf("追踪导出器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog全局logger并把Hertz日志接到同一输出。
// 控制台和文件双写，日志文件打不开时只写控制台。
func initLogger(cfg *config.Config) {
	logFilePath := "logs/app.log"
	_ = os.MkdirAll(filepath.Dir(logFilePath), 0755)

	writers := []io.Writer{os.Stderr}
	fileWriter, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		writers = append(writers, fileWriter)
	}

	applogger.InitWithWriter(applogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	}, zerolog.MultiLevelWriter(writers...))

	glog.SetLogger(hertzzerolog.From(applogger.Logger))
}
