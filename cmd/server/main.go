package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vcenter-mcp/mcp-vcenter-server/internal/config"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/logging"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/mcpserver"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/runtime"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/server"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/tools/core"
	"github.com/vcenter-mcp/mcp-vcenter-server/internal/version"
)

const gracefulTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootstrapManager := logging.NewManager(logging.Options{Level: slog.LevelInfo})
	bootstrapLogger := logging.WithComponent(bootstrapManager.Logger(), "bootstrap")
	slog.SetDefault(bootstrapLogger)

	buildInfo := version.Get()
	bootstrapLogger.Info("starting vCenter MCP server", "version", buildInfo.Version, "commit", buildInfo.GitCommit)

	settings, err := config.NewLoader().Load()
	if err != nil {
		bootstrapLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(settings.LogLevel)
	if err != nil {
		bootstrapLogger.Error("invalid log level", "error", err)
		os.Exit(1)
	}

	options := logging.Options{Level: level}
	if settings.LogSinkEnabled {
		options.Sink = logging.NewJSONSink(os.Stderr)
	}

	logManager := logging.NewManager(options)
	defer func() { _ = logManager.Close(context.Background()) }()
	_ = bootstrapManager.Close(context.Background())

	logger := logging.WithComponent(logManager.Logger(), "bootstrap")
	slog.SetDefault(logger)

	if settings.LogSinkEnabled {
		logger.Info("external logging sink enabled")
	}

	rt, err := runtime.New(settings, logManager.Logger())
	if err != nil {
		logger.Error("failed to prepare runtime", "error", err)
		os.Exit(1)
	}

	sessionOptions := func(_ *mcpserver.SessionContext) (*mcp.ServerOptions, error) {
		return &mcp.ServerOptions{
			HasTools: true,
		}, nil
	}

	sessionInitializer := func(s *mcp.Server, ctx *mcpserver.SessionContext) error {
		return core.Register(s, ctx.Session)
	}

	mcpFactory, err := mcpserver.NewFactory(&mcp.Implementation{
		Name:    "vcenter-mcp-server",
		Version: buildInfo.Version,
	}, sessionOptions, sessionInitializer)
	if err != nil {
		logger.Error("failed to create MCP factory", "error", err)
		os.Exit(1)
	}

	app, err := server.NewApp(server.Dependencies{
		Settings:   settings,
		Runtime:    rt,
		MCPFactory: mcpFactory,
	}, server.Options{
		Logger: logManager.Logger(),
	})
	if err != nil {
		logger.Error("failed to configure HTTP server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    settings.ListenAddr,
		Handler: app.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("http server listening",
		"addr", settings.ListenAddr,
		"vcenter", settings.Host,
		"auth_mode", settings.AuthMode,
	)

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
