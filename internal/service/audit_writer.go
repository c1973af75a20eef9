package service

import (
	"context"
	"fmt"

	"github.com/YathuPiraba/lead-management-system-sub000/internal/models"
	"github.com/YathuPiraba/lead-management-system-sub000/pkg/jobs"
)

// AsyncAuditWriter persists audit entries on a background worker pool so a
// slow audit table never holds up a logout or password change.
type AsyncAuditWriter struct {
	queue *jobs.Queue[*models.AuditLog]
}

// NewAsyncAuditWriter wraps sink with a bounded queue.
func NewAsyncAuditWriter(sink AuditSink, cfg jobs.Config) *AsyncAuditWriter {
	return &AsyncAuditWriter{
		queue: jobs.New("audit", func(ctx context.Context, log *models.AuditLog) error {
			return sink.CreateAuditLog(ctx, log)
		}, cfg),
	}
}

// Start launches the workers. ctx is used for every write.
func (w *AsyncAuditWriter) Start(ctx context.Context) {
	w.queue.Start(ctx)
}

// Stop flushes pending entries until ctx ends.
func (w *AsyncAuditWriter) Stop(ctx context.Context) error {
	return w.queue.Stop(ctx)
}

// CreateAuditLog queues log. An error means the entry was dropped.
func (w *AsyncAuditWriter) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	if err := w.queue.Enqueue(log); err != nil {
		return fmt.Errorf("queue audit log: %w", err)
	}
	return nil
}
