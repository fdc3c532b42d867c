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

	commonmw "codejudge/internal/common/http/middleware"
	"codejudge/internal/judge/controller"
	"codejudge/internal/judge/sandbox/compiler"
	"codejudge/internal/judge/sandbox/runner"
	"codejudge/internal/judge/sandbox/workspace"
	"codejudge/internal/judge/service"
	"codejudge/internal/metrics"
	"codejudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/compile_server.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	port := flag.Int("port", 0, "Listen port, overrides server.addr")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath, *port)
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

	ws := workspace.NewGenerator(appCfg.Sandbox.TempDir)
	if err := ws.EnsureDir(); err != nil {
		logger.Fatal(context.Background(), "init workspace failed", zap.Error(err))
	}
	comp, err := compiler.New(appCfg.Sandbox.compilerConfig(), ws)
	if err != nil {
		logger.Fatal(context.Background(), "init compiler failed", zap.Error(err))
	}
	run, err := runner.New(appCfg.Sandbox.runnerConfig(), ws)
	if err != nil {
		logger.Fatal(context.Background(), "init runner failed", zap.Error(err))
	}

	registry := metrics.NewRegistry()
	svc, err := service.NewService(service.Config{
		Workspace:      ws,
		Compiler:       comp,
		Runner:         run,
		Metrics:        metrics.NewSandboxMetrics(registry),
		OutputMaxBytes: appCfg.Sandbox.OutputMaxBytes,
		MaxConcurrent:  appCfg.Worker.MaxConcurrent,
		SlotTimeout:    appCfg.Worker.SlotTimeout,
	})
	if err != nil {
		logger.Fatal(context.Background(), "init compile service failed", zap.Error(err))
	}

	httpServer := buildHTTPServer(appCfg.Server, svc, registry)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Fatal(context.Background(), "init http listener failed", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "compile server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("temp_dir", ws.Dir()),
		)
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

func buildHTTPServer(cfg ServerConfig, svc controller.CompileService, registry *prometheus.Registry) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(commonmw.RequestLogger())

	judgeController := controller.NewJudgeController(svc)
	router.POST("/compile_and_run", judgeController.CompileAndRun)
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
