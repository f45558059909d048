package sweeper

import (
	"context"
	"log/slog"
	"time"

	"doc-ingest-backend/model"
)

const sweepBatchSize = 100

// ListStaleFunc 查询超过年龄阈值仍处于指定状态的文档
type ListStaleFunc func(olderThan time.Duration, limit int) ([]model.Document, error)

// EnqueueFunc 为文档补投摄取任务
type EnqueueFunc func(ctx context.Context, doc model.Document) error

// Sweeper 恢复扫描：入队失败或丢失任务的PENDING文档定期补投
// 长时间停留在PROCESSING的文档仅告警，重投会自行收敛
type Sweeper struct {
	listStalePending    ListStaleFunc
	listStaleProcessing ListStaleFunc
	enqueue             EnqueueFunc

	interval        time.Duration
	pendingMaxAge   time.Duration
	alertProcessing time.Duration
}

func New(listStalePending, listStaleProcessing ListStaleFunc, enqueue EnqueueFunc,
	interval, pendingMaxAge, alertProcessing time.Duration) *Sweeper {
	return &Sweeper{
		listStalePending:    listStalePending,
		listStaleProcessing: listStaleProcessing,
		enqueue:             enqueue,
		interval:            interval,
		pendingMaxAge:       pendingMaxAge,
		alertProcessing:     alertProcessing,
	}
}

// Run 阻塞运行直到ctx取消，通常在独立goroutine中启动
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("Starting recovery sweeper",
		"interval", s.interval,
		"pending_max_age", s.pendingMaxAge)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Recovery sweeper shutting down")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	docs, err := s.listStalePending(s.pendingMaxAge, sweepBatchSize)
	if err != nil {
		slog.Error("Failed to list stale pending documents", "err", err)
		return
	}

	for _, doc := range docs {
		if err := s.enqueue(ctx, doc); err != nil {
			slog.Error("Failed to re-enqueue stale pending document",
				"document_id", doc.DocumentID,
				"err", err)
			continue
		}
		slog.Info("Re-enqueued stale pending document",
			"document_id", doc.DocumentID,
			"age", time.Since(doc.UpdatedAt))
	}

	s.alertStaleProcessing()
}

// alertStaleProcessing 面向运维的告警日志，不改变文档状态
func (s *Sweeper) alertStaleProcessing() {
	docs, err := s.listStaleProcessing(s.alertProcessing, sweepBatchSize)
	if err != nil {
		slog.Error("Failed to list stale processing documents", "err", err)
		return
	}

	for _, doc := range docs {
		slog.Warn("Document stuck in PROCESSING beyond alerting threshold",
			"document_id", doc.DocumentID,
			"age", time.Since(doc.UpdatedAt))
	}
}
