// Package monitor implements the operator console: a small gin HTTP server
// exposing health, metrics, a live websocket feed of device actions, and a
// rate-limited endpoint for injecting simulated NeST frames.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginpprof "github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/pkg/browser"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abyssnet/flochub/internal/config"
	"github.com/abyssnet/flochub/internal/pubsub"
)

const readTimeout = 3 * time.Second

// Server is the monitor console's HTTP/WS surface.
type Server struct {
	httpServer *http.Server
	feed       *actionFeed
	addr       string
	logger     *slog.Logger
}

// New builds the monitor server from cfg. ps is used both to fan out the
// "device-actions" feed to websocket clients and to publish frames POSTed to
// /nest/inject onto nestTopic.
func New(cfg *config.Config, ps pubsub.PubSub, actionsTopic, nestTopic string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if err := r.SetTrustedProxies(cfg.Monitor.TrustedProxies); err != nil {
		logger.Error("monitor: failed setting trusted proxies", "error", err)
	}

	if len(cfg.Monitor.CORSHosts) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.Monitor.CORSHosts,
			AllowMethods: []string{"GET", "POST"},
			AllowHeaders: []string{"Origin", "Content-Type"},
		}))
	}

	if cfg.Monitor.Enabled && cfg.Debug {
		ginpprof.Register(r)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	feed := newActionFeed(ps, actionsTopic, logger)
	r.GET("/ws", feed.serveWS)

	r.POST("/nest/inject", rateLimiter(), nestInjectHandler(ps, nestTopic, logger))

	addr := fmt.Sprintf("%s:%d", cfg.Monitor.Bind, cfg.Monitor.Port)
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: readTimeout,
		},
		feed:   feed,
		addr:   addr,
		logger: logger,
	}
}

// OpenInBrowser opens the monitor console's root page in the operator's
// default browser. Intended to be called once, after Start.
func (s *Server) OpenInBrowser() {
	url := "http://" + s.addr + "/"
	if err := browser.OpenURL(url); err != nil {
		s.logger.Warn("monitor: failed to open browser, please open manually", "url", url, "error", err)
	}
}

// Start runs the feed's subscribe loop and blocks serving HTTP until Stop is
// called.
func (s *Server) Start(ctx context.Context) error {
	go s.feed.run(ctx)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
