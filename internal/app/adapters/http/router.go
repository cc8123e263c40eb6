package http

import (
	"context"
	"errors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"log/slog"
	"multichat/internal/app/adapters/http/handlers"
	"multichat/internal/app/adapters/http/middlewares"
	"multichat/internal/app/infrastructure/config"
	"multichat/internal/app/ports"
	"multichat/pkg/logger"
	"net/http"
	"time"
)

type Router struct {
	router      *gin.Engine
	handlers    *handlers.Handlers
	middlewares *middlewares.Middlewares

	log     logger.Logger
	manager *config.Manager
}

func NewRouter(log logger.Logger, manager *config.Manager, store ports.PropertyStore, hub handlers.Hub, status handlers.StatusSource) *Router {
	cfg := manager.Get()
	gin.SetMode(cfg.App.GinMode)

	r := &Router{
		router:      gin.New(),
		handlers:    handlers.New(log, store, hub, status, cfg.Timings.EnabledCooldown),
		middlewares: middlewares.New(log),
		log:         log,
		manager:     manager,
	}
	r.router.Use(gin.Recovery(), r.middlewares.Logging())

	if cfg.App.AuthToken != "" {
		admin := gin.BasicAuth(gin.Accounts{"admin": cfg.App.AuthToken})
		pprof.Register(r.router.Group("/", admin))
		r.router.GET("/metrics", admin, gin.WrapH(promhttp.Handler()))
	}

	auth := r.middlewares.Auth(cfg.App.AuthToken)

	r.router.GET("/channel_props/:prop_name", r.handlers.GetChannelProp)
	r.router.POST("/channel_props/:prop_name", auth, r.handlers.SetChannelProp)

	r.router.GET("/viewers", r.handlers.ListViewers)
	r.router.DELETE("/viewers/:username", auth, r.handlers.DeleteViewer)
	r.router.GET("/viewers/:username/:prop_name", r.handlers.GetViewerProp)
	r.router.POST("/viewers/:username/:prop_name", auth, r.handlers.SetViewerProp)

	r.router.POST("/clear_chat", auth, r.handlers.ClearChat)
	r.router.GET("/chat_history", r.handlers.ChatHistory)
	r.router.GET("/status/:source", r.handlers.Status)

	r.router.GET("/ws", r.handlers.WS)
	r.router.GET("/ws/num_clients", r.handlers.WSNumClients)

	return r
}

func (r *Router) Handler() http.Handler {
	return r.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (r *Router) Run(ctx context.Context) error {
	srv := r.newServer(r.manager.Get().App.Listen, r.router)

	errCh := make(chan error, 1)
	go func() {
		r.log.Info("HTTP server listening", slog.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (r *Router) newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}
