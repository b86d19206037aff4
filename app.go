// @title           Domain MCP API
// @version         1.0
// @description     Domain intelligence tools (registration, DNS, certificates, availability) over HTTP.

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vit0-9/domain_mcp/config"
	"github.com/vit0-9/domain_mcp/handlers"
	"github.com/vit0-9/domain_mcp/pkg/metrics"
	"github.com/vit0-9/domain_mcp/pkg/tools"
	"github.com/vit0-9/domain_mcp/pkg/utils/domain"
)

// App encapsulates all the components of the HTTP surface
type App struct {
	Router        *gin.Engine
	ToolHandlers  *handlers.ToolHandlers
	HealthHandler *handlers.HealthHandler
	logger        *slog.Logger
}

// NewApp creates and initializes a new application instance
func NewApp(dispatcher *tools.Dispatcher, logger *slog.Logger) *App {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	app := &App{
		Router:        router,
		ToolHandlers:  handlers.NewToolHandlers(dispatcher),
		HealthHandler: handlers.NewHealthHandler(version),
		logger:        logger,
	}

	app.setupRoutes()
	return app
}

// setupRoutes defines all the application routes
func (app *App) setupRoutes() {
	app.Router.GET("/api/v1/health", app.HealthHandler.HealthCheckHandler)

	toolsV1 := app.Router.Group("/api/v1/tools")
	{
		toolsV1.GET("", app.ToolHandlers.ListToolsHandler)
		toolsV1.POST("/:name", app.ToolHandlers.CallToolHandler)
	}

	app.Router.GET("/metrics", gin.WrapH(metrics.Handler()))
}

// Start runs the HTTP server until ctx is cancelled.
func (app *App) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("http server starting", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		app.logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// newDomainClient wires the lookup backends from configuration.
func newDomainClient(cfg *config.Config, logger *slog.Logger) *domain.Client {
	runner := domain.ExecRunner{MaxOutputBytes: cfg.MaxOutputBytes}

	whois := domain.NewWhoisCommand(runner, cfg.Timeouts.Whois)
	whois.Binary = cfg.WhoisBinary

	var resolver domain.Resolver
	switch cfg.Resolver {
	case "system":
		resolver = &domain.SystemResolver{}
	default:
		resolver = domain.NewDoHResolver(cfg.DoHURL, cfg.Timeouts.DNS)
	}

	return &domain.Client{
		Primary:         domain.NewRDAPClient(cfg.Timeouts.RDAP, cfg.RDAPServers),
		Secondary:       whois,
		DNS:             &domain.DNSClient{Resolver: resolver, Timeout: cfg.Timeouts.DNS},
		Certs:           domain.NewCertInspector(cfg.TLSPort, cfg.Timeouts.TLS, runner),
		MaxBulk:         cfg.Bulk.MaxDomains,
		BulkConcurrency: cfg.Bulk.Concurrency,
		Logger:          logger,
		OnFallback:      metrics.RecordFallback,
	}
}
