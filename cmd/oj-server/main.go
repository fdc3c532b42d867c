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

	"codejudge/internal/common/cache"
	"codejudge/internal/common/db"
	commonmw "codejudge/internal/common/http/middleware"
	"codejudge/internal/common/mq"
	"codejudge/internal/metrics"
	"codejudge/internal/oj/controller"
	"codejudge/internal/oj/judgeclient"
	"codejudge/internal/oj/loadbalance"
	"codejudge/internal/oj/repository"
	"codejudge/internal/oj/service"
	"codejudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/oj_server.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := context.Background()

	questions, closeStore := buildQuestionRepository(ctx, appCfg)
	defer closeStore()

	events := repository.JudgeEventPublisher(repository.NopJudgeEventPublisher{})
	if appCfg.Events.Kafka.Enabled() {
		producer, err := mq.NewKafkaProducer(appCfg.Events.Kafka)
		if err != nil {
			logger.Fatal(ctx, "init kafka producer failed", zap.Error(err))
		}
		defer func() {
			if err := producer.Close(); err != nil {
				logger.Warn(ctx, "close kafka producer failed", zap.Error(err))
			}
		}()
		events = repository.NewMQJudgeEventPublisher(producer, appCfg.Events.Topic)
	}

	lb, err := loadbalance.LoadConf(appCfg.Judge.MachineConf)
	if err != nil {
		logger.Fatal(ctx, "load machine config failed", zap.String("path", appCfg.Judge.MachineConf), zap.Error(err))
	}
	preamble, err := loadGlobalPreamble(appCfg.Judge.GlobalPreamblePath)
	if err != nil {
		logger.Fatal(ctx, "load global preamble failed", zap.Error(err))
	}

	registry := metrics.NewRegistry()
	svc, err := service.NewService(service.Config{
		Questions:      questions,
		Balancer:       lb,
		Client:         judgeclient.NewClient(nil),
		Events:         events,
		Metrics:        metrics.NewJudgeMetrics(registry),
		GlobalPreamble: preamble,
		TimeoutFactor:  appCfg.Judge.TimeoutFactor,
		EventTimeout:   appCfg.Events.Timeout,
	})
	if err != nil {
		logger.Fatal(ctx, "init judge service failed", zap.Error(err))
	}

	recoverCh := make(chan os.Signal, 1)
	signal.Notify(recoverCh, syscall.SIGQUIT)
	defer signal.Stop(recoverCh)
	go func() {
		for range recoverCh {
			n := svc.RecoverMachines()
			logger.Info(ctx, "all compile servers brought online", zap.Int("recovered", n))
		}
	}()

	httpServer := buildHTTPServer(appCfg.Server, svc, registry)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Fatal(ctx, "init http listener failed", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "oj server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("question_backend", appCfg.Questions.Backend),
			zap.Int("machines", lb.Len()),
		)
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
}

// buildQuestionRepository returns the configured catalogue and a release func.
func buildQuestionRepository(ctx context.Context, cfg *AppConfig) (repository.QuestionRepository, func()) {
	var closers []func()
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var questions repository.QuestionRepository
	switch cfg.Questions.Backend {
	case backendMySQL:
		database, err := db.NewMySQLWithConfig(&cfg.Database)
		if err != nil {
			logger.Fatal(ctx, "init mysql failed", zap.Error(err))
		}
		closers = append(closers, func() { _ = database.Close() })
		questions = repository.NewMySQLQuestionRepository(database, cfg.Questions.Table)
	default:
		fileRepo, err := repository.NewFileQuestionRepository(cfg.Questions.Dir)
		if err != nil {
			logger.Fatal(ctx, "load question catalogue failed", zap.String("dir", cfg.Questions.Dir), zap.Error(err))
		}
		questions = fileRepo
	}

	if cfg.Cache.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&cfg.Cache.Redis)
		if err != nil {
			logger.Fatal(ctx, "init redis failed", zap.Error(err))
		}
		closers = append(closers, func() { _ = redisCache.Close() })
		questions = repository.NewCachedQuestionRepository(questions, redisCache, cfg.Cache.TTL)
	}
	return questions, release
}

func buildHTTPServer(cfg ServerConfig, svc controller.JudgeService, registry *prometheus.Registry) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	controller.NewOJController(svc).Register(router)
	router.GET("/metrics", metrics.Handler(registry))
	router.GET("/healthz", metrics.Healthz)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
