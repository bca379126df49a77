package query

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/purgatory-reaper/pkg/app/errors"
	"github.com/chainsafe/purgatory-reaper/pkg/purgatory"
)

const serviceName = "QueryService"

// logService wraps Service with logging of every call
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the query Service.
// Calls are logged at debug level on success. Client errors are logged at
// info, everything else at error.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

func (ls *logService) done(method string, start time.Time, err error, fields ...zap.Field) {
	fields = append(fields,
		zap.String("service", serviceName),
		zap.String("method", method),
		zap.Duration("duration", time.Since(start)),
	)
	switch {
	case err == nil:
		ls.logger.Debug(method+" completed", fields...)
	case !apperrors.IsInternalError(err):
		ls.logger.Info(method+" rejected", append(fields, zap.Error(err))...)
	default:
		ls.logger.Error(method+" failed", append(fields, zap.Error(err))...)
	}
}

func (ls *logService) GetHolding(ctx context.Context, itemID string) (h *purgatory.Holding, err error) {
	defer func(start time.Time) {
		ls.done("GetHolding", start, err, zap.String("item_id", itemID))
	}(time.Now())
	return ls.svc.GetHolding(ctx, itemID)
}

func (ls *logService) ListByDepositor(ctx context.Context, depositor string) (hs []*purgatory.Holding, err error) {
	defer func(start time.Time) {
		ls.done("ListByDepositor", start, err, zap.String("depositor", depositor), zap.Int("count", len(hs)))
	}(time.Now())
	return ls.svc.ListByDepositor(ctx, depositor)
}

func (ls *logService) GetReputation(ctx context.Context, itemType string) (rep *purgatory.CollectionReputation, err error) {
	defer func(start time.Time) {
		ls.done("GetReputation", start, err, zap.String("item_type", itemType))
	}(time.Now())
	return ls.svc.GetReputation(ctx, itemType)
}

func (ls *logService) IsFlagged(ctx context.Context, itemType string) (c *Check, err error) {
	defer func(start time.Time) {
		fields := []zap.Field{zap.String("item_type", itemType)}
		if c != nil {
			fields = append(fields, zap.Bool("flagged", c.Flagged), zap.String("reason", c.Reason))
		}
		ls.done("IsFlagged", start, err, fields...)
	}(time.Now())
	return ls.svc.IsFlagged(ctx, itemType)
}

func (ls *logService) CheckBatch(ctx context.Context, itemTypes []string) (cs []*Check, err error) {
	defer func(start time.Time) {
		flagged := 0
		for _, c := range cs {
			if c.Flagged {
				flagged++
			}
		}
		ls.done("CheckBatch", start, err, zap.Int("item_types", len(itemTypes)), zap.Int("flagged", flagged))
	}(time.Now())
	return ls.svc.CheckBatch(ctx, itemTypes)
}

func (ls *logService) ListReputations(ctx context.Context, order purgatory.ReputationOrder, limit int) (reps []*purgatory.CollectionReputation, err error) {
	defer func(start time.Time) {
		ls.done("ListReputations", start, err, zap.String("order", string(order)), zap.Int("limit", limit), zap.Int("count", len(reps)))
	}(time.Now())
	return ls.svc.ListReputations(ctx, order, limit)
}

func (ls *logService) GetRunHistory(ctx context.Context, limit int) (runs []*purgatory.RunLog, err error) {
	defer func(start time.Time) {
		ls.done("GetRunHistory", start, err, zap.Int("limit", limit), zap.Int("count", len(runs)))
	}(time.Now())
	return ls.svc.GetRunHistory(ctx, limit)
}

func (ls *logService) Stats(ctx context.Context) (st *purgatory.Stats, err error) {
	defer func(start time.Time) {
		ls.done("Stats", start, err)
	}(time.Now())
	return ls.svc.Stats(ctx)
}
