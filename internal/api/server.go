// Package api exposes the retrieval engine and chat service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dshills/ticketsearch/internal/chat"
	"github.com/dshills/ticketsearch/internal/retrieval"
	"github.com/dshills/ticketsearch/internal/vectorindex"
	"github.com/dshills/ticketsearch/pkg/types"
)

// MaxK caps the number of results a single request may ask for
const MaxK = 100

// ErrIngestInProgress is reported when another ingestion holds the lock
var ErrIngestInProgress = errors.New("ingestion in progress")

// Engine is the retrieval surface the API needs
type Engine interface {
	Ingest(ctx context.Context, tickets []types.Ticket) (*retrieval.IngestStats, error)
	Search(ctx context.Context, query string, k int) []types.Ticket
	Status(ctx context.Context) (*retrieval.Status, error)
}

// Responder answers a conversation given retrieved tickets
type Responder interface {
	Respond(ctx context.Context, messages []chat.Message, tickets []types.Ticket) (string, error)
}

// Options tunes request defaults
type Options struct {
	DefaultK    int
	ProjectName string
	Logger      *slog.Logger
}

// Server holds the HTTP handlers
type Server struct {
	engine    Engine
	responder Responder
	lock      IngestLock
	defaultK  int
	project   string
	logger    *slog.Logger
}

// NewServer creates an API server. responder may be nil, which disables /chat.
func NewServer(engine Engine, responder Responder, opts Options) *Server {
	if opts.DefaultK <= 0 {
		opts.DefaultK = 3
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		responder: responder,
		defaultK:  opts.DefaultK,
		project:   opts.ProjectName,
		logger:    opts.Logger,
	}
}

// Router builds the gin engine with all routes registered
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger(), cors())

	router.GET("/healthz", s.handleHealth)
	router.GET("/status", s.handleStatus)
	router.GET("/search", s.handleSearch)
	router.POST("/tickets", s.handleIngest)
	router.POST("/chat", s.handleChat)
	return router
}

// Seed ingests tickets through the same lock the HTTP handlers use
func (s *Server) Seed(ctx context.Context, tickets []types.Ticket) (*retrieval.IngestStats, error) {
	if !s.lock.TryAcquire() {
		return nil, ErrIngestInProgress
	}
	defer s.lock.Release()
	return s.engine.Ingest(ctx, tickets)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	status, err := s.engine.Status(c.Request.Context())
	if err != nil {
		s.logger.Error("status failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"project_name": s.project,
		"index":        status,
		"chat_enabled": s.responder != nil,
	})
}

func (s *Server) handleSearch(c *gin.Context) {
	k, ok := s.parseK(c, c.Query("k"))
	if !ok {
		return
	}
	query := c.Query("query")
	s.logger.Debug("search request", "query", query, "k", k)
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusOK, []types.Ticket{})
		return
	}
	c.JSON(http.StatusOK, s.engine.Search(c.Request.Context(), query, k))
}

func (s *Server) handleIngest(c *gin.Context) {
	var tickets []types.Ticket
	if err := c.ShouldBindJSON(&tickets); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "body must be a JSON array of tickets: " + err.Error()})
		return
	}

	stats, err := s.Seed(c.Request.Context(), tickets)
	switch {
	case errors.Is(err, ErrIngestInProgress):
		c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, vectorindex.ErrDimensionMismatch):
		s.logger.Error("ingestion aborted", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "stats": stats})
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "stats": stats})
	default:
		c.JSON(http.StatusOK, stats)
	}
}

type chatRequest struct {
	Messages []chat.Message `json:"messages" binding:"required,min=1"`
	Query    string         `json:"query"`
	K        int            `json:"k" binding:"gte=0,lte=100"`
}

type chatResponse struct {
	Answer  string         `json:"answer"`
	Tickets []types.Ticket `json:"tickets"`
}

func (s *Server) handleChat(c *gin.Context) {
	if s.responder == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "chat is not configured"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	k := req.K
	if k == 0 {
		k = s.defaultK
	}
	query := req.Query
	if strings.TrimSpace(query) == "" {
		query = chat.LastUserMessage(req.Messages)
	}

	ctx := c.Request.Context()
	tickets := s.engine.Search(ctx, query, k)
	answer, err := s.responder.Respond(ctx, req.Messages, tickets)
	if err != nil {
		s.logger.Warn("chat completion failed", "error", err)
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, chatResponse{Answer: answer, Tickets: tickets})
}

// parseK reads the k parameter, writing a 400 when it is not a usable integer
func (s *Server) parseK(c *gin.Context, raw string) (int, bool) {
	if raw == "" {
		return s.defaultK, true
	}
	k, err := strconv.Atoi(raw)
	if err != nil || k < 0 || k > MaxK {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "k must be an integer between 0 and " + strconv.Itoa(MaxK)})
		return 0, false
	}
	return k, true
}
