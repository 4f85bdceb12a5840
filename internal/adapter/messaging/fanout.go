package messaging

import (
	"context"
	"errors"

	"github.com/rl1809/orderflow/internal/core/domain"
	"github.com/rl1809/orderflow/internal/port"
)

// AuditSinks records to every sink and reports all failures together.
type AuditSinks []port.AuditSink

func (s AuditSinks) Record(ctx context.Context, record domain.AuditRecord) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
