package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/curriculum-search/internal/ingest"
	"github.com/dshills/curriculum-search/internal/searcher"
	"github.com/dshills/curriculum-search/internal/storage"
	"github.com/dshills/curriculum-search/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "curriculum-search"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
	// DefaultThreshold is the search tool's default minimum similarity
	DefaultThreshold = 0.4
)

var ErrSearcherRequired = errors.New("searcher is required")

// Service is the search surface the tools call
type Service interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
	SearchGoals(ctx context.Context, query string, limit int, threshold float64) (*searcher.SearchResponse, error)
	SearchElaborations(ctx context.Context, query string, limit int, threshold float64) (*searcher.SearchResponse, error)
	GetGoal(ctx context.Context, id int64) (*types.GoalDetail, error)
	GetGoalByExternalID(ctx context.Context, externalID string) (*types.GoalDetail, error)
	Stats(ctx context.Context) (*storage.Stats, error)
	InvalidateCache()
}

// Ingester loads a data directory
type Ingester interface {
	IngestDir(ctx context.Context, dir string) (*ingest.Statistics, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	service  Service
	ingester Ingester
	dataDir  string
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithIngester exposes the ingest tool. dataDir is used when a call names no directory.
func WithIngester(in Ingester, dataDir string) Option {
	return func(s *Server) {
		s.ingester = in
		s.dataDir = dataDir
	}
}

// WithLogger sets the logger. nil falls back to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "mcp")
	}
}

// NewServer creates a new MCP server instance
func NewServer(service Service, opts ...Option) (*Server, error) {
	if service == nil {
		return nil, ErrSearcherRequired
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		service: service,
		logger:  slog.Default().With("component", "mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	return s, nil
}

// Serve runs the MCP server on stdio and blocks until the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("serving MCP on stdio", "ingest_enabled", s.ingester != nil)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(searchGoalsTool(), s.handleSearchGoals)
	s.mcp.AddTool(searchElaborationsTool(), s.handleSearchElaborations)
	s.mcp.AddTool(getGoalTool(), s.handleGetGoal)
	s.mcp.AddTool(statsTool(), s.handleStats)

	if s.ingester != nil {
		s.mcp.AddTool(ingestTool(), s.handleIngest)
	}
}
