// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the job API over HTTP.
package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/renderforge/internal/job"
	"github.com/pdiddy/renderforge/internal/logger"
	"github.com/pdiddy/renderforge/internal/store"
	"github.com/pdiddy/renderforge/pkg/types"
)

// Server routes job API requests to the engine.
type Server struct {
	engine *job.Engine
	log    *logger.Logger
	router *gin.Engine
	addr   string
}

// New builds the router. Gin runs in release mode; request logging goes
// through our logger, not gin's.
func New(cfg types.ServerConfig, eng *job.Engine, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{engine: eng, log: log, router: router, addr: cfg.Addr}

	router.GET("/healthcheck", s.healthcheck)
	router.POST("/jobs", s.submitJob)
	router.GET("/jobs", s.listJobs)
	router.GET("/jobs/:id", s.jobStatus)
	router.GET("/jobs/:id/artifact", s.jobArtifact)
	router.POST("/jobs/:id/cancel", s.cancelJob)

	return s
}

// Handler returns the router for serving and for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks serving HTTP on the configured address.
func (s *Server) Run() error {
	s.log.Info("http api listening", "addr", s.addr)
	return s.router.Run(s.addr)
}

func (s *Server) healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) submitJob(c *gin.Context) {
	var req types.ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	id, err := s.engine.Submit(c.Request.Context(), req)
	if err != nil {
		var reqErr *types.RequestError
		if errors.As(err, &reqErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": reqErr.Field})
			return
		}
		s.log.Error("submitting job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not submit job"})
		return
	}

	s.log.Info("job submitted", "job", id, "format", req.OutputFormat, "client", req.ClientID)
	c.JSON(http.StatusAccepted, gin.H{"job_id": id})
}

func (s *Server) listJobs(c *gin.Context) {
	jobs, err := s.engine.List(c.Request.Context())
	if err != nil {
		s.log.Error("listing jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// jobStatus always returns the current partial state of an existing job,
// whatever stage it is in. 404 only for ids that were never submitted.
func (s *Server) jobStatus(c *gin.Context) {
	j, err := s.engine.Status(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	if err != nil {
		s.log.Error("reading job", "job", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read job"})
		return
	}
	c.JSON(http.StatusOK, j)
}

func (s *Server) jobArtifact(c *gin.Context) {
	j, err := s.engine.Status(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	if err != nil {
		s.log.Error("reading job", "job", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read job"})
		return
	}
	if j.State != types.StateCompleted || j.FinalArtifact == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "artifact not ready",
			"state": j.State,
		})
		return
	}
	c.Header("Content-Type", j.FinalArtifact.MIMEType)
	c.File(j.FinalArtifact.Path)
}

func (s *Server) cancelJob(c *gin.Context) {
	err := s.engine.Cancel(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job id"})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}
