// Package v1 exposes the question-answering API over HTTP.
package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/lectern-io/lectern/plugin/vectorstore"
	"github.com/lectern-io/lectern/server/profile"
	"github.com/lectern-io/lectern/server/rag"
	"github.com/lectern-io/lectern/store"
)

// Answerer runs one user turn. Satisfied by *rag.Orchestrator.
type Answerer interface {
	Turn(ctx context.Context, sessionID, query string) (*rag.Reply, error)
}

// APIV1Service wires the HTTP surface to the QA core.
type APIV1Service struct {
	Profile  *profile.Profile
	Sessions *store.Store
	Index    *vectorstore.Store
	Answerer Answerer
}

// NewAPIV1Service creates the service.
func NewAPIV1Service(p *profile.Profile, sessions *store.Store, index *vectorstore.Store, answerer Answerer) *APIV1Service {
	return &APIV1Service{Profile: p, Sessions: sessions, Index: index, Answerer: answerer}
}

// RegisterRoutes mounts all v1 routes on e.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/query", s.handleQuery)
	g.GET("/courses", s.handleCourseStats)
	g.POST("/sessions", s.createSession)
	g.DELETE("/sessions/:id", s.clearSession)
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	SessionID string   `json:"session_id"`
}

func (s *APIV1Service) handleQuery(c *echo.Context) error {
	if s.Profile.ProviderAPIKey == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "question answering is not configured (missing LECTERN_PROVIDER_API_KEY)")
	}

	var req queryRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = s.Sessions.Create()
	}

	reply, err := s.Answerer.Turn(c.Request().Context(), sessionID, req.Query)
	if err != nil {
		slog.Error("turn failed", "session", sessionID, "err", err)
		return echo.NewHTTPError(http.StatusBadGateway, "provider request failed")
	}

	sources := make([]string, 0, len(reply.Sources))
	for _, src := range reply.Sources {
		sources = append(sources, src.Label())
	}
	return c.JSON(http.StatusOK, queryResponse{
		Answer:    reply.Text,
		Sources:   sources,
		SessionID: sessionID,
	})
}

type courseStatsResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

func (s *APIV1Service) handleCourseStats(c *echo.Context) error {
	titles, err := s.Index.ListCourseTitles(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if titles == nil {
		titles = []string{}
	}
	return c.JSON(http.StatusOK, courseStatsResponse{
		TotalCourses: len(titles),
		CourseTitles: titles,
	})
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

func (s *APIV1Service) createSession(c *echo.Context) error {
	return c.JSON(http.StatusCreated, sessionResponse{SessionID: s.Sessions.Create()})
}

func (s *APIV1Service) clearSession(c *echo.Context) error {
	s.Sessions.Clear(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}
