package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resume-search/internal/api/handler"
	"resume-search/internal/api/router"
	"resume-search/internal/config"
	"resume-search/internal/constants"
	appCoreLogger "resume-search/internal/logger"
	"resume-search/internal/outbox"
	"resume-search/internal/processor"
	"resume-search/internal/queue"
	"resume-search/internal/storage"
	"resume-search/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("加载配置失败")
	}

	logFile, err := appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
		File:         cfg.Logger.File,
	})
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化日志失败")
	}
	if logFile != nil {
		defer logFile.Close()
	}
	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	glog.SetLevel(glog.LevelInfo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
			Endpoint:       cfg.Tracing.Endpoint,
			ServiceName:    constants.AppName,
			ServiceVersion: constants.AppVersion,
			Insecure:       cfg.Tracing.Insecure,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			appCoreLogger.Warn().Err(err).Msg("初始化链路追踪失败，继续运行")
		} else {
			defer func() {
				flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer flushCancel()
				if err := shutdownTracing(flushCtx); err != nil {
					appCoreLogger.Warn().Err(err).Msg("刷新追踪数据失败")
				}
			}()
		}
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化存储失败")
	}
	appCoreLogger.Info().Msg("存储服务初始化成功")

	extractor, err := processor.BuildExtractor(ctx, cfg)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化简历抽取器失败")
	}
	queryExtractor, err := processor.BuildQueryExtractor(cfg)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化检索条件抽取器失败")
	}
	embedder, err := processor.BuildEmbedder(cfg)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化向量模型失败")
	}

	compOpts := []processor.ComponentOpt{
		processor.WithcompExtractor(extractor),
		processor.WithcompQueryextractor(queryExtractor),
		processor.WithcompEmbedder(embedder),
		processor.WithcompStore(storageManager.MySQL),
		processor.WithcompVectorindex(storageManager.Qdrant),
	}
	if storageManager.Redis != nil {
		compOpts = append(compOpts, processor.WithcompStatus(storageManager.Redis))
	}
	if storageManager.MinIO != nil {
		compOpts = append(compOpts, processor.WithcompArchive(storageManager.MinIO))
	}
	comp := processor.NewComponents(compOpts...)

	settingOpts := []processor.SettingOpt{
		processor.WithsetMaxattempts(cfg.Ingest.MaxAttempts),
		processor.WithsetJobtimeout(config.GetDuration(cfg.Ingest.JobTimeout, 5*time.Minute)),
		processor.WithsetSearchtopk(cfg.Search.TopK),
	}
	resumeProcessor, err := processor.NewResumeProcessor(comp, nil, settingOpts...)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化入库流水线失败")
	}
	searchService, err := processor.NewSearchService(comp, nil, settingOpts...)
	if err != nil {
		appCoreLogger.Fatal().Err(err).Msg("初始化检索服务失败")
	}

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	defer stopConsumers()

	var (
		enqueuer   queue.Enqueuer
		localQueue *queue.LocalQueue
		consumer   *queue.Consumer
		relay      *outbox.MessageRelay
	)
	retryDelay := config.GetDuration(cfg.RabbitMQ.RetryInterval, 5*time.Second)

	if storageManager.RabbitMQ != nil {
		rmq := storageManager.RabbitMQ
		outboxEnqueuer := queue.NewOutboxEnqueuer(storageManager.MySQL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.IngestRoutingKey)
		enqueuer = outboxEnqueuer

		var relayOpts []outbox.Option
		if storageManager.Redis != nil {
			relayOpts = append(relayOpts, outbox.WithJobStatus(storageManager.Redis))
		}
		relay = outbox.NewMessageRelay(storageManager.MySQL.DB(), rmq, relayOpts...)
		relay.Start(consumerCtx)

		consumer = queue.NewConsumer(rmq, queue.ConsumerConfig{
			QueueName:  cfg.RabbitMQ.IngestQueue,
			Prefetch:   cfg.RabbitMQ.PrefetchCount,
			Workers:    cfg.Ingest.Workers,
			RetryDelay: retryDelay,
		}, resumeProcessor.HandleJob, queue.NewRabbitEnqueuer(rmq, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.IngestRoutingKey))
		if err := consumer.Start(consumerCtx); err != nil {
			appCoreLogger.Fatal().Err(err).Msg("启动入库任务消费者失败")
		}
	} else {
		localQueue = queue.NewLocalQueue(cfg.Ingest.QueueSize, cfg.Ingest.Workers, resumeProcessor.HandleJob, queue.WithRetryDelay(retryDelay))
		localQueue.Start(ctx)
		enqueuer = localQueue
	}

	resumeOpts := []handler.ResumeHandlerOption{handler.WithMaxUploadMB(cfg.Server.MaxUploadMB)}
	if storageManager.Redis != nil {
		resumeOpts = append(resumeOpts,
			handler.WithJobStatus(storageManager.Redis),
			handler.WithUploadRecorder(storageManager.Redis),
		)
	}
	if storageManager.MinIO != nil {
		resumeOpts = append(resumeOpts, handler.WithArchiver(storageManager.MinIO))
	}

	handlers := router.Handlers{
		Health: handler.NewHealthHandler(storageManager.MySQL, cfg.MySQL.Host, cfg.MySQL.Database),
		Resume: handler.NewResumeHandler(storageManager.MySQL, enqueuer, cfg.Server.UploadDir, resumeOpts...),
		Search: handler.NewSearchHandler(searchService),
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	maxBody := cfg.Server.MaxUploadMB
	if maxBody <= 0 {
		maxBody = 10
	}
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		server.WithMaxRequestBodySize((maxBody+1)<<20),
		server.WithExitWaitTime(config.GetDuration(cfg.Server.ExitTimeout, 5*time.Second)),
		tracer,
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	router.RegisterRoutes(h, handlers, router.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKeys:     cfg.Server.APIKeys,
	})
	appCoreLogger.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			appCoreLogger.Error().Err(err).Msg("HTTP服务器退出")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appCoreLogger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ExitTimeout, 5*time.Second))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		appCoreLogger.Error().Err(err).Msg("HTTP服务器关闭失败")
	}

	stopConsumers()
	if consumer != nil {
		consumer.Wait()
	}
	if relay != nil {
		<-relay.Done()
	}
	if localQueue != nil {
		localQueue.Close()
	}

	storageManager.Close()
	appCoreLogger.Info().Msg("优雅退出完成")
}
