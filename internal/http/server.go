// Package http exposes the learning subsystem over a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/loadpilot/loadpilot/internal/learning"
	"github.com/loadpilot/loadpilot/internal/usage"
)

// Server provides the HTTP endpoints for loadpilotd.
type Server struct {
	echo    *echo.Echo
	engine  *learning.Engine
	tracker *usage.Tracker
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(engine *learning.Engine, tracker *usage.Tracker, logger *zap.Logger, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if tracker == nil {
		return nil, fmt.Errorf("tracker cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8780}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		engine:  engine,
		tracker: tracker,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	customers := v1.Group("/customers/:id")
	customers.POST("/turns", s.handleTurn)
	customers.GET("/preferences", s.handlePreferences)
	customers.GET("/terminology", s.handleTerminology)
	customers.POST("/usage", s.handleUsage)
	customers.GET("/patterns", s.handlePatterns)
	customers.GET("/insights", s.handleInsights)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleTurn runs the matcher battery over one conversation turn and reports
// what was learned. Persistence failures do not fail the request; they are
// itemized in the response instead.
func (s *Server) handleTurn(c echo.Context) error {
	customerID := c.Param("id")

	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid turn request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserMessage == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_message field is required")
	}

	result := s.engine.ProcessTurn(c.Request().Context(), customerID, req.UserMessage, req.AssistantResponse, req.ToolsUsed)

	resp := TurnResponse{Extractions: result.Extractions}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, FailedExtraction{
			Type:  string(f.Extraction.Type),
			Key:   f.Extraction.Key,
			Error: f.Err.Error(),
		})
	}
	if resp.Extractions == nil {
		resp.Extractions = []learning.Extraction{}
	}

	return c.JSON(http.StatusOK, resp)
}

// handlePreferences returns the customer's learned preferences alongside the
// raw weight map.
func (s *Server) handlePreferences(c echo.Context) error {
	customerID := c.Param("id")
	ctx := c.Request().Context()

	learned, err := s.engine.LearnedPreferences(ctx, customerID)
	if err != nil {
		s.logger.Error("load learned preferences", zap.String("customer_id", customerID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load preferences")
	}
	weights, err := s.engine.PreferenceWeights(ctx, customerID)
	if err != nil {
		s.logger.Error("load preference weights", zap.String("customer_id", customerID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load preferences")
	}

	return c.JSON(http.StatusOK, PreferencesResponse{Learned: learned, Weights: weights})
}

// handleTerminology returns the customer's learned vocabulary.
func (s *Server) handleTerminology(c echo.Context) error {
	customerID := c.Param("id")

	terms, err := s.engine.LearnedTerminology(c.Request().Context(), customerID)
	if err != nil {
		s.logger.Error("load terminology", zap.String("customer_id", customerID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load terminology")
	}

	return c.JSON(http.StatusOK, TerminologyResponse{Terminology: terms})
}

// handleUsage records one usage event.
func (s *Server) handleUsage(c echo.Context) error {
	customerID := c.Param("id")

	var req UsageRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid usage request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	switch usage.EventType(req.EventType) {
	case usage.EventReportGenerated, usage.EventQuestionAsked, usage.EventSectionAdded:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown event_type %q", req.EventType))
	}

	if err := s.tracker.Record(c.Request().Context(), customerID, usage.EventType(req.EventType), req.Details); err != nil {
		s.logger.Error("record usage event", zap.String("customer_id", customerID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record event")
	}

	return c.JSON(http.StatusAccepted, StatusResponse{Status: "recorded"})
}

// handlePatterns returns the customer's detected usage patterns.
func (s *Server) handlePatterns(c echo.Context) error {
	customerID := c.Param("id")

	patterns, err := s.tracker.Analyze(c.Request().Context(), customerID)
	if err != nil {
		s.logger.Error("analyze usage", zap.String("customer_id", customerID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to analyze usage")
	}
	if patterns == nil {
		patterns = []usage.Pattern{}
	}

	return c.JSON(http.StatusOK, PatternsResponse{Patterns: patterns})
}

// handleInsights returns proactive insights derived from usage patterns.
func (s *Server) handleInsights(c echo.Context) error {
	customerID := c.Param("id")

	insights, err := s.tracker.Insights(c.Request().Context(), customerID)
	if err != nil {
		s.logger.Error("derive insights", zap.String("customer_id", customerID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to derive insights")
	}
	if insights == nil {
		insights = []usage.Insight{}
	}

	return c.JSON(http.StatusOK, InsightsResponse{Insights: insights})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
