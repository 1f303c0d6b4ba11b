package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hearthline/hearthline/internal/httpapi/handlers"
	"github.com/hearthline/hearthline/internal/httpapi/middleware"
	"github.com/hearthline/hearthline/pkg/config"
)

const shutdownTimeout = 10 * time.Second

type APIServer struct {
	config   *config.AppConfig
	router   *gin.Engine
	handlers *handlers.Handlers
	server   *http.Server
}

func NewAPIServer(cfg *config.AppConfig, h *handlers.Handlers) *APIServer {
	if cfg.App.Environment == "local" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(&cfg.APIServer))

	s := &APIServer{
		config:   cfg,
		router:   router,
		handlers: h,
	}

	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(&s.config.APIServer))

	v1.GET("/status", s.handlers.GetStatus)
	v1.GET("/connectivity", s.handlers.GetConnectivity)
	v1.PUT("/connectivity", s.handlers.PutConnectivity)

	v1.GET("/alerts", s.handlers.ListAlerts)
	v1.POST("/alerts", s.handlers.CreateAlert)
	v1.GET("/messages", s.handlers.ListMessages)
	v1.POST("/messages", s.handlers.SendMessage)

	v1.GET("/devices", s.handlers.ListDevices)
	v1.PUT("/devices/:id", s.handlers.PutDevice)
	v1.POST("/devices/scan", s.handlers.ScanDevices)

	v1.POST("/sync", s.handlers.Sync)
	v1.GET("/storage", s.handlers.GetStorage)
	v1.DELETE("/data", s.handlers.DeleteData)

	v1.GET("/cache/generations", s.handlers.GetGenerations)
	v1.POST("/cache/sync-events", s.handlers.PostSyncEvent)

	v1.GET("/events", s.handlers.Events)

	// everything else is an asset request
	s.router.NoRoute(s.handlers.ServeAsset)
}

// Handler exposes the router, mainly for tests
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is canceled, then shuts down gracefully
func (s *APIServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.APIServer.Host, s.config.APIServer.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		// streams end when the server is asked to stop
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.WithField("address", s.server.Addr).Info("starting http API server")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start http API server : %w", err)
	case <-ctx.Done():
	}

	logrus.Info("turning down http API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Error during HTTP API server shutdown")
		return err
	}
	logrus.Info("http API server stopped")
	return nil
}
