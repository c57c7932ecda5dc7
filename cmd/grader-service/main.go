package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gradebox/internal/common/cache"
	commonmw "gradebox/internal/common/http/middleware"
	"gradebox/internal/common/mq"
	"gradebox/internal/common/storage"
	"gradebox/internal/grader/controller"
	"gradebox/internal/grader/execrun"
	"gradebox/internal/grader/intake"
	"gradebox/internal/grader/repository"
	"gradebox/internal/grader/service"
	"gradebox/internal/grader/strategy"
	"gradebox/internal/grader/workspace"
	"gradebox/pkg/utils/logger"
	"gradebox/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/grader_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	workspaces, err := workspace.NewManager(appCfg.Grading.WorkRoot)
	if err != nil {
		logger.Error(context.Background(), "init workspace manager failed", zap.Error(err))
		return
	}

	runner := execrun.NewProcessRunner(appCfg.Grading.CaptureMaxBytes)
	if appCfg.Grading.SandboxInit != "" {
		runner.SetGuard(execrun.GuardConfig{
			HelperPath:     appCfg.Grading.SandboxInit,
			SeccompProfile: appCfg.Grading.SeccompProfile,
		})
	}
	engine, err := strategy.NewEngine(runner, strategy.Config{
		FastCommand: appCfg.Grading.FastCommand,
		FullCommand: appCfg.Grading.FullCommand,
		Timeout:     appCfg.Grading.Timeout,
		SourceExt:   appCfg.Grading.SourceExt,
	})
	if err != nil {
		logger.Error(context.Background(), "init strategy engine failed", zap.Error(err))
		return
	}

	materializer := intake.NewMaterializer(intake.Config{
		SolutionFilename:  appCfg.Grading.SolutionFilename,
		MaxArchiveBytes:   appCfg.Grading.MaxArchiveBytes,
		MaxArchiveEntries: appCfg.Grading.MaxArchiveEntries,
	})

	var statusRepo *repository.StatusRepository
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(appCfg.Redis.toCacheConfig())
		if err != nil {
			logger.Error(context.Background(), "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisCache.Close()
		}()

		var publisher repository.StatusEventPublisher
		if len(appCfg.Kafka.Brokers) > 0 {
			mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
			if err != nil {
				logger.Error(context.Background(), "init kafka failed", zap.Error(err))
				return
			}
			defer func() {
				_ = mqClient.Close()
			}()
			publisher = repository.NewMQStatusEventPublisher(mqClient, appCfg.Kafka.FinalTopic)
		}

		statusRepo, err = repository.NewStatusRepository(redisCache, appCfg.Redis.TTL, publisher)
		if err != nil {
			logger.Error(context.Background(), "init status repository failed", zap.Error(err))
			return
		}
	} else {
		logger.Warn(context.Background(), "redis addr not set, job status store disabled")
	}

	var archiver *service.ReportArchiver
	if appCfg.MinIO.Endpoint != "" {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO.toStorageConfig())
		if err != nil {
			logger.Error(context.Background(), "init minio failed", zap.Error(err))
			return
		}
		archiver, err = service.NewReportArchiver(objStorage, appCfg.MinIO.Bucket, appCfg.MinIO.Timeout)
		if err != nil {
			logger.Error(context.Background(), "init report archiver failed", zap.Error(err))
			return
		}
	}

	gradeSvc, err := service.NewGradeService(service.Config{
		Workspaces:        workspaces,
		Intake:            materializer,
		Engine:            engine,
		StatusRepo:        statusRepo,
		Archiver:          archiver,
		MaxConcurrentJobs: appCfg.Grading.MaxConcurrentJobs,
		AcquirePatience:   appCfg.Grading.AcquirePatience,
	})
	if err != nil {
		logger.Error(context.Background(), "init grade service failed", zap.Error(err))
		return
	}

	httpServer := buildHTTPServer(appCfg.Server, gradeSvc)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "grader http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, gradeSvc *service.GradeService) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	gradeController := controller.NewGradeController(gradeSvc, cfg.MaxUploadBytes)
	router.POST("/grade", gradeController.Grade)
	router.GET("/jobs/:id", gradeController.GetStatus)
	router.GET("/health", func(c *gin.Context) {
		response.Healthy(c)
	})

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
