// Package records is the single point of contact with the upstream table. It
// exposes create, get, update, delete and list as direct passthrough calls
// and wraps every failure in an *OperationError.
package records

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/automationsAC/property-creator-v3/internal/airtable"
	"github.com/automationsAC/property-creator-v3/internal/metrics"
)

// Table is the part of *airtable.Table the service relies on.
type Table interface {
	Create(ctx context.Context, fields airtable.Fields) (*airtable.Record, error)
	Get(ctx context.Context, id string) (*airtable.Record, error)
	Update(ctx context.Context, id string, fields airtable.Fields) (*airtable.Record, error)
	Delete(ctx context.Context, id string) (*airtable.DeletedRecord, error)
	All(ctx context.Context, maxRecords int) (*airtable.RecordPage, error)
}

// Service performs record operations against a Table. It holds no mutable
// state and is safe for concurrent use.
type Service struct {
	table   Table
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records upstream call counts and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service over table.
func New(table Table, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		table:  table,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a record.
func (s *Service) Create(ctx context.Context, fields airtable.Fields) (*airtable.Record, error) {
	var rec *airtable.Record
	err := s.call(ctx, OpCreate, func(ctx context.Context) (err error) {
		rec, err = s.table.Create(ctx, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Get fetches a record by id.
func (s *Service) Get(ctx context.Context, id string) (*airtable.Record, error) {
	var rec *airtable.Record
	err := s.call(ctx, OpGet, func(ctx context.Context) (err error) {
		rec, err = s.table.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update applies a partial field map to a record.
func (s *Service) Update(ctx context.Context, id string, fields airtable.Fields) (*airtable.Record, error) {
	var rec *airtable.Record
	err := s.call(ctx, OpUpdate, func(ctx context.Context) (err error) {
		rec, err = s.table.Update(ctx, id, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record. It returns true on success; an upstream answer
// that does not confirm the deletion is reported as an error.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	err := s.call(ctx, OpDelete, func(ctx context.Context) error {
		ack, err := s.table.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ack.Deleted {
			return errNotDeleted
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns up to maxRecords records, following upstream pagination.
// A maxRecords of zero returns every record.
func (s *Service) List(ctx context.Context, maxRecords int) (*airtable.RecordPage, error) {
	var page *airtable.RecordPage
	err := s.call(ctx, OpList, func(ctx context.Context) (err error) {
		page, err = s.table.All(ctx, maxRecords)
		return err
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Service) call(ctx context.Context, op Op, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	s.metrics.ObserveUpstream(string(op), outcome(err), elapsed)

	if err != nil {
		s.logger.Debug("upstream call failed",
			zap.String("operation", string(op)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return &OperationError{Op: op, Err: err}
	}

	s.logger.Debug("upstream call completed",
		zap.String("operation", string(op)),
		zap.Duration("duration", elapsed),
	)
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, airtable.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
