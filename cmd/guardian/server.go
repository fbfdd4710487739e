package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"

	"github.com/streamtide/guardian/moderation/appeals"
	"github.com/streamtide/guardian/moderation/engine"
	"github.com/streamtide/guardian/moderation/massreport"
	"github.com/streamtide/guardian/moderation/queue"
	"github.com/streamtide/guardian/moderation/store"
	"github.com/streamtide/guardian/moderation/strikes"
)

type Server struct {
	logger  *slog.Logger
	echo    *echo.Echo
	httpd   *http.Server
	store   *store.Store
	engine  *engine.Engine
	queue   *queue.Queue
	strikes *strikes.Ledger
	reports *massreport.Detector
	appeals *appeals.Resolver
}

type Config struct {
	Bind    string
	Store   *store.Store
	Engine  *engine.Engine
	Queue   *queue.Queue
	Strikes *strikes.Ledger
	Reports *massreport.Detector
	Appeals *appeals.Resolver
}

func NewServer(logger *slog.Logger, config Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	srv := &Server{
		logger:  logger,
		echo:    e,
		store:   config.Store,
		engine:  config.Engine,
		queue:   config.Queue,
		strikes: config.Strikes,
		reports: config.Reports,
		appeals: config.Appeals,
	}
	srv.httpd = &http.Server{
		Handler:        e,
		Addr:           config.Bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1 << 20,
	}

	e.GET("/healthz", srv.handleHealthz)
	e.POST("/event", srv.handleEvent)
	e.POST("/reports", srv.handleReport)
	e.GET("/queue", srv.handleQueueList)
	e.POST("/queue/:id/decision", srv.handleQueueDecision)
	e.POST("/queue/:id/escalate", srv.handleQueueEscalate)
	e.POST("/strikes", srv.handleStrike)
	e.GET("/users/:id/banned", srv.handleBannedCheck)
	e.GET("/users/:id/violations", srv.handleViolationList)
	e.POST("/appeals", srv.handleAppealSubmit)
	e.POST("/appeals/:id/resolve", srv.handleAppealResolve)
	e.GET("/streams/:id/lockdown", srv.handleLockdownCheck)
	e.POST("/lockdowns/:id/ack", srv.handleLockdownAck)

	return srv
}

func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)
		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.httpd.Shutdown(ctx)
}

// apiError maps domain sentinel errors onto HTTP statuses.
func apiError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, appeals.ErrDuplicateAppeal),
		errors.Is(err, massreport.ErrNotLockedDown):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, appeals.ErrReasonTooShort),
		errors.Is(err, queue.ErrInvalidDuration),
		errors.Is(err, queue.ErrNotEscalatable):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, appeals.ErrNotAppealable),
		errors.Is(err, appeals.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	}
	return err
}

func (srv *Server) handleHealthz(c echo.Context) error {
	if err := srv.store.Healthcheck(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type eventRequest struct {
	UserID    string `json:"user_id"`
	ScopeID   string `json:"scope_id"`
	ScopeKind string `json:"scope_kind"`
	Text      string `json:"text"`
}

func (srv *Server) handleEvent(c echo.Context) error {
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.ScopeID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and scope_id are required")
	}
	if req.ScopeKind == "" {
		req.ScopeKind = store.ScopeKindStream
	}
	res, err := srv.engine.ClassifyAndEnforce(c.Request().Context(), req.UserID, req.Text, engine.Scope{ID: req.ScopeID, Kind: req.ScopeKind})
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"allowed":  res.Allowed,
		"action":   res.Action.String(),
		"overall":  res.Overall,
		"category": res.Category,
		"scores":   res.Scores,
	})
}

type reportRequest struct {
	ReportedUserID string `json:"reported_user_id"`
	StreamID       string `json:"stream_id"`
	CreatorID      string `json:"creator_id"`
	ReporterID     string `json:"reporter_id"`
}

func (srv *Server) handleReport(c echo.Context) error {
	var req reportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ReportedUserID == "" || req.StreamID == "" || req.ReporterID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reported_user_id, stream_id, and reporter_id are required")
	}
	if err := srv.engine.RecordUserReport(c.Request().Context(), req.ReportedUserID, req.StreamID, req.CreatorID, req.ReporterID); err != nil {
		return apiError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (srv *Server) handleQueueList(c echo.Context) error {
	items, err := srv.queue.List(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

type decisionRequest struct {
	Decision    string `json:"decision"`
	ModeratorID string `json:"moderator_id"`
	Minutes     int    `json:"minutes,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

func (srv *Server) handleQueueDecision(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var req decisionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	switch req.Decision {
	case "approve":
		err = srv.queue.Approve(ctx, id, req.ModeratorID, req.Notes)
	case "reject":
		err = srv.queue.Reject(ctx, id, req.ModeratorID, req.Notes)
	case "timeout":
		err = srv.queue.TimeoutUser(ctx, id, req.ModeratorID, req.Minutes, req.Notes)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "decision must be approve, reject, or timeout")
	}
	if err != nil {
		return apiError(err)
	}
	return c.NoContent(http.StatusOK)
}

type escalateRequest struct {
	ModeratorID string `json:"moderator_id"`
	Reason      string `json:"reason"`
}

func (srv *Server) handleQueueEscalate(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var req escalateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	penalty, err := srv.queue.EscalateToAdmin(c.Request().Context(), id, req.ModeratorID, req.Reason)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, penalty)
}

type strikeRequest struct {
	UserID  string `json:"user_id"`
	ScopeID string `json:"scope_id"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
}

func (srv *Server) handleStrike(c echo.Context) error {
	var req strikeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" || req.ScopeID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id and scope_id are required")
	}
	strike, err := srv.strikes.Apply(c.Request().Context(), req.UserID, req.ScopeID, req.Kind, req.Reason, false, nil)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, strike)
}

func (srv *Server) handleBannedCheck(c echo.Context) error {
	scope := c.QueryParam("scope")
	if scope == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "scope query parameter is required")
	}
	banned, err := srv.strikes.IsBanned(c.Request().Context(), c.Param("id"), scope)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"banned": banned})
}

func (srv *Server) handleViolationList(c echo.Context) error {
	since := time.Now().Add(-30 * 24 * time.Hour)
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC 3339")
		}
		since = parsed
	}
	violations, err := srv.store.ListViolationsSince(c.Request().Context(), c.Param("id"), since)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"violations": violations})
}

type appealRequest struct {
	UserID    string `json:"user_id"`
	PenaltyID uint   `json:"penalty_id"`
	Reason    string `json:"reason"`
	Evidence  string `json:"evidence,omitempty"`
}

func (srv *Server) handleAppealSubmit(c echo.Context) error {
	var req appealRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	appeal, err := srv.appeals.Submit(c.Request().Context(), req.UserID, req.PenaltyID, req.Reason, req.Evidence)
	if err != nil {
		return apiError(err)
	}
	return c.JSON(http.StatusOK, appeal)
}

type appealResolveRequest struct {
	Decision string `json:"decision"`
	AdminID  string `json:"admin_id"`
	Message  string `json:"message,omitempty"`
}

func (srv *Server) handleAppealResolve(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	var req appealResolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	switch req.Decision {
	case "approve":
		err = srv.appeals.Accept(ctx, id, req.AdminID, req.Message)
	case "deny":
		err = srv.appeals.Deny(ctx, id, req.AdminID, req.Message)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "decision must be approve or deny")
	}
	if err != nil {
		return apiError(err)
	}
	return c.NoContent(http.StatusOK)
}

func (srv *Server) handleLockdownCheck(c echo.Context) error {
	event, err := srv.reports.Check(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apiError(err)
	}
	if event == nil {
		return c.JSON(http.StatusOK, map[string]any{"locked": false})
	}
	return c.JSON(http.StatusOK, map[string]any{"locked": true, "event": event})
}

func (srv *Server) handleLockdownAck(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return err
	}
	if err := srv.reports.Acknowledge(c.Request().Context(), id); err != nil {
		return apiError(err)
	}
	return c.NoContent(http.StatusOK)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}
