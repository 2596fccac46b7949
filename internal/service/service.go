// Package service orchestrates a search request: resolve the credential,
// load the tenant's corpus, run the match engine, shape the response. The
// pipeline is strictly linear with fail-fast ordering: a bad credential must
// be rejected before any storage activity happens.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/shikiri/internal/apperr"
	"github.com/hyperjump/shikiri/internal/match"
	"github.com/hyperjump/shikiri/internal/models"
)

// Resolver maps a credential to a tenant.
type Resolver interface {
	Resolve(credential string) (models.TenantID, error)
}

// Loader loads a tenant's documents.
type Loader interface {
	Load(ctx context.Context, tenantID models.TenantID) ([]models.Document, error)
}

// Matcher runs the keyword match.
type Matcher interface {
	Search(documents []models.Document, query string) (match.Result, error)
}

// Service handles search requests end to end.
type Service struct {
	resolver       Resolver
	loader         Loader
	matcher        Matcher
	noMatchMessage string
	logger         *zap.Logger
}

// NewService wires the pipeline. noMatchMessage is the display text used for
// the no-match outcome; it is applied only here, at the response boundary.
func NewService(resolver Resolver, loader Loader, matcher Matcher, noMatchMessage string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resolver:       resolver,
		loader:         loader,
		matcher:        matcher,
		noMatchMessage: noMatchMessage,
		logger:         logger,
	}
}

// Handle runs one request. The credential comes from the transport's
// dedicated credential channel; query is the free-text search. The response
// shape is uniform for every tenant, and no-match is a success, not an error.
func (s *Service) Handle(ctx context.Context, credential, query string) (*models.SearchResponse, error) {
	start := time.Now()
	requestID := uuid.NewString()

	// Resolve first: nothing may touch storage until the credential maps to
	// a tenant.
	tenantID, err := s.resolver.Resolve(credential)
	if err != nil {
		s.logger.Debug("credential rejected", zap.String("request_id", requestID))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Validate the query before loading so an empty query never causes
	// file-system activity either.
	if (&models.SearchQuery{Query: query}).IsEmpty() {
		return nil, apperr.New(apperr.EInvalid, "query cannot be empty")
	}

	documents, err := s.loader.Load(ctx, tenantID)
	if err != nil {
		s.logger.Warn("corpus load failed",
			zap.String("request_id", requestID),
			zap.String("tenant", tenantID.String()),
			zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.matcher.Search(documents, query)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := verifySourceOwnership(result.Sources, documents); err != nil {
		// Invariant violation: a source outside the loaded partition means a
		// bug somewhere below; refuse to answer rather than leak.
		s.logger.Error("source ownership violation",
			zap.String("request_id", requestID),
			zap.String("tenant", tenantID.String()),
			zap.Error(err))
		return nil, err
	}

	resp := &models.SearchResponse{
		Answer:    result.Answer,
		Sources:   result.Sources,
		QueryTime: time.Since(start).Milliseconds(),
		RequestID: requestID,
	}
	if !result.Matched {
		resp.Answer = s.noMatchMessage
		resp.Sources = []string{}
	}

	s.logger.Debug("search handled",
		zap.String("request_id", requestID),
		zap.String("tenant", tenantID.String()),
		zap.Bool("matched", result.Matched),
		zap.Int("sources", len(resp.Sources)),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// verifySourceOwnership checks that every source names a document from the
// loaded set.
func verifySourceOwnership(sources []string, documents []models.Document) error {
	if len(sources) == 0 {
		return nil
	}
	owned := make(map[string]struct{}, len(documents))
	for _, d := range documents {
		owned[d.Source] = struct{}{}
	}
	for _, src := range sources {
		if _, ok := owned[src]; !ok {
			return apperr.Wrap(apperr.EInternal, "internal error",
				fmt.Errorf("source %q is not part of the loaded corpus", src))
		}
	}
	return nil
}
