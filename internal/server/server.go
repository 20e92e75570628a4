// Package server exposes log ingestion and search over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ppiankov/crowdframe/internal/ingest"
	"github.com/ppiankov/crowdframe/internal/logger"
	"github.com/ppiankov/crowdframe/internal/model"
)

// RecordWriter stores one log record
type RecordWriter interface {
	Write(ctx context.Context, rec ingest.Record) error
}

// Searcher runs one page of a search query
type Searcher interface {
	ProviderName() string
	PageSize() int
	Search(ctx context.Context, query string, offset int) ([]model.SearchResult, error)
}

// Server wires the HTTP routes to the ingestion writer and search service
type Server struct {
	writer   RecordWriter
	searcher Searcher
	engine   *gin.Engine
}

// New builds the router. mode is a gin mode; empty keeps the current one.
func New(writer RecordWriter, searcher Searcher, mode string) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}

	s := &Server{writer: writer, searcher: searcher}

	r := gin.New()
	r.Use(Recovery())
	r.Use(Logging())

	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/log", s.postLog)
		v1.GET("/search", s.getSearch)
	}

	s.engine = r
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) postLog(c *gin.Context) {
	if s.writer == nil {
		fail(c, http.StatusServiceUnavailable, "ingestion disabled")
		return
	}

	var rec ingest.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		fail(c, http.StatusBadRequest, "invalid record: "+err.Error())
		return
	}
	if err := rec.Validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.writer.Write(c.Request.Context(), rec); err != nil {
		if errors.Is(err, ingest.ErrDeliveryFailed) {
			logger.Error("server: %v", err)
			fail(c, http.StatusBadGateway, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	success(c, gin.H{"worker": rec.Worker, "sequence": rec.Sequence.String()})
}

// searchReply mirrors what the session records for a retrieved page
type searchReply struct {
	Provider string               `json:"provider"`
	Query    string               `json:"query"`
	Offset   int                  `json:"offset"`
	Count    int                  `json:"count"`
	Results  []model.SearchResult `json:"results"`
}

func (s *Server) getSearch(c *gin.Context) {
	if s.searcher == nil {
		fail(c, http.StatusServiceUnavailable, "search disabled")
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		fail(c, http.StatusBadRequest, "missing query parameter q")
		return
	}

	offset := 0
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fail(c, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		offset = n
	}

	results, err := s.searcher.Search(c.Request.Context(), query, offset)
	if err != nil {
		logger.Warn("server: search %q failed: %v", query, err)
		fail(c, http.StatusBadGateway, err.Error())
		return
	}

	success(c, searchReply{
		Provider: s.searcher.ProviderName(),
		Query:    query,
		Offset:   offset,
		Count:    s.searcher.PageSize(),
		Results:  results,
	})
}
