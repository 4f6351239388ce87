package search

import (
	"context"
	"errors"

	"sql-search/pkg/db"
	"sql-search/pkg/metrics"
	"sql-search/pkg/pool"

	"go.uber.org/zap"
)

// ConnPool hands out exclusive backend connections; *pool.Pool[db.Conn]
// satisfies it.
type ConnPool interface {
	WithConn(ctx context.Context, fn func(db.Conn) error) error
}

type Repository struct {
	pool   ConnPool
	logger *zap.Logger
}

func NewRepository(p ConnPool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: p, logger: logger}
}

// Query runs text on a pooled connection. A transient connection error is
// retried once on another connection; the broken one is discarded by the
// pool. Only the first result set is returned.
func (r *Repository) Query(ctx context.Context, text string) (*db.ResultSet, error) {
	rs, err := r.query(ctx, text)
	if err != nil && errors.Is(err, db.ErrTransientConnection) && ctx.Err() == nil {
		r.logger.Warn("transient connection error, retrying once", zap.Error(err))
		rs, err = r.query(ctx, text)
	}
	if err != nil {
		return nil, err
	}

	if rs.Extra > 0 {
		r.logger.Warn("query returned multiple result sets; only the first one is returned",
			zap.Int("discarded", rs.Extra))
	}
	return rs, nil
}

func (r *Repository) query(ctx context.Context, text string) (*db.ResultSet, error) {
	var (
		rs       *db.ResultSet
		acquired bool
	)
	err := r.pool.WithConn(ctx, func(c db.Conn) error {
		acquired = true
		var err error
		rs, err = c.Query(ctx, text)
		return err
	})
	metrics.AcquireOutcomes.WithLabelValues(acquireOutcome(acquired, err)).Inc()
	return rs, err
}

func acquireOutcome(acquired bool, err error) string {
	switch {
	case acquired:
		return "ok"
	case errors.Is(err, pool.ErrPoolExhausted):
		return "exhausted"
	case errors.Is(err, pool.ErrConnectFailed):
		return "connect_failed"
	case errors.Is(err, pool.ErrPoolClosed):
		return "closed"
	default:
		return "cancelled"
	}
}
