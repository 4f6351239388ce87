package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sql-search/internal/projection"
	"sql-search/pkg/db"
	"sql-search/pkg/metrics"
	"sql-search/pkg/pool"
	"sql-search/pkg/redis"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Cache stores encoded responses. Failures are the implementation's to log;
// a failed Get is a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
}

type ServiceDeps struct {
	Repository   *Repository
	Projector    *projection.Projector
	Cache        Cache
	QueryTimeout time.Duration
	Logger       *zap.Logger
}

type Service struct {
	repo      *Repository
	projector *projection.Projector
	cache     Cache
	timeout   time.Duration
	logger    *zap.Logger
}

func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	projector := deps.Projector
	if projector == nil {
		projector = projection.New(projection.WithLogger(logger))
	}
	return &Service{
		repo:      deps.Repository,
		projector: projector,
		cache:     deps.Cache,
		timeout:   deps.QueryTimeout,
		logger:    logger,
	}
}

// Search runs the query and returns the encoded JSON array of records.
func (s *Service) Search(ctx context.Context, req *SearchRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request is nil", ErrBadRequest)
	}

	var key string
	if s.cache != nil {
		key = redis.Key(string(req.Shape), req.Query)
		if payload, ok := s.cache.Get(ctx, key); ok {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return payload, nil
		}
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	payload, err := s.run(ctx, req)
	metrics.QueryDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, payload)
	}
	return payload, nil
}

func (s *Service) run(ctx context.Context, req *SearchRequest) ([]byte, error) {
	cctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rs, err := s.repo.Query(cctx, req.Query)
	if err != nil {
		// drivers report a cancelled statement in their own words
		if ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return nil, err
	}

	var records any
	switch req.Shape {
	case ShapeGeneric:
		records, err = s.projector.Generic(rs)
		if err != nil {
			return nil, err
		}
	default:
		records = s.projector.Typed(rs)
	}
	return gojson.Marshal(records)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, db.ErrQueryFailed):
		return "query_failed"
	case unavailable(err):
		return "unavailable"
	default:
		return "error"
	}
}

// unavailable reports errors that mean the backend could not serve the
// request right now.
func unavailable(err error) bool {
	return errors.Is(err, pool.ErrPoolExhausted) ||
		errors.Is(err, pool.ErrConnectFailed) ||
		errors.Is(err, pool.ErrPoolClosed) ||
		errors.Is(err, db.ErrTransientConnection)
}
