package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jaam8/messenger_poll_bot/internal/metrics"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Server struct {
	echo *echo.Echo
	h    *Handler
	l    *zap.Logger
}

func NewServer(h *Handler, reg *prometheus.Registry, l *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, h: h, l: l}
	e.Use(s.requestLogger())
	e.Use(middleware.Recover())

	e.GET("/", h.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(reg)))
	return s
}

// EnableMessengerWebhook exposes the Messenger subscription and event endpoints.
func (s *Server) EnableMessengerWebhook() {
	s.echo.GET("/messaging", s.h.VerifyWebhook)
	s.echo.POST("/messaging", s.h.ReceiveWebhook)
}

// EnableMattermostActions exposes the button action endpoint used by Mattermost prompts.
func (s *Server) EnableMattermostActions() {
	s.echo.POST("/mattermost/actions", s.h.PostAction)
}

func (s *Server) Start(addr string) error {
	s.l.Info("http server starting", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, then waits for webhook batches still in flight.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return err
	}
	if err := s.h.Drain(ctx); err != nil {
		return fmt.Errorf("api: webhook batches still running: %w", err)
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURIPath: true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			s.l.Info("request", fields...)
			return nil
		},
	})
}
