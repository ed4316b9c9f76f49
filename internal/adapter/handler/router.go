package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/teamsync/sprint-scribe/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg            *config.Config
	meetingHandler *Meeting
	memoryHandler  *Memory
	reviewHandler  *Review
	auditHandler   *Audit
	sprintHandler  *Sprint
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, meeting *Meeting, memory *Memory, review *Review, audit *Audit, sprint *Sprint) *Router {
	return &Router{
		cfg:            cfg,
		meetingHandler: meeting,
		memoryHandler:  memory,
		reviewHandler:  review,
		auditHandler:   audit,
		sprintHandler:  sprint,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", rt.healthCheck)

	// API v1 group
	v1 := e.Group("/v1")

	rt.setupMeetingRoutes(v1)
	rt.setupMemoryRoutes(v1)
	rt.setupReviewRoutes(v1)
	rt.setupAuditRoutes(v1)
	rt.setupSprintRoutes(v1)
}

func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	meetings := g.Group("/meetings")
	meetings.POST("", rt.meetingHandler.Ingest)
	meetings.GET("/:id/report", rt.meetingHandler.Report)
	meetings.POST("/:id/cancel", rt.meetingHandler.Cancel)
}

func (rt *Router) setupMemoryRoutes(g *echo.Group) {
	g.GET("/memory/search", rt.memoryHandler.Search)
}

func (rt *Router) setupReviewRoutes(g *echo.Group) {
	g.GET("/review", rt.reviewHandler.List)
	g.POST("/review/:id/resolve", rt.reviewHandler.Resolve)
}

func (rt *Router) setupAuditRoutes(g *echo.Group) {
	g.GET("/audit", rt.auditHandler.List)
}

func (rt *Router) setupSprintRoutes(g *echo.Group) {
	sprints := g.Group("/sprints")
	sprints.POST("/:id/health", rt.sprintHandler.Analyze)
	sprints.GET("/:id/health", rt.sprintHandler.Latest)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
