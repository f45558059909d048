package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"doc-ingest-backend/config"
	"doc-ingest-backend/controller"
	"doc-ingest-backend/dao"
	"doc-ingest-backend/model"
	"doc-ingest-backend/router"
	"doc-ingest-backend/service/ingest"
	"doc-ingest-backend/service/mq"
	"doc-ingest-backend/service/storage"
	"doc-ingest-backend/service/sweeper"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dao.InitDB(); err != nil {
		slog.Error("Failed to init database", "err", err)
		return
	}

	svc, err := ingest.NewService(ctx)
	if err != nil {
		slog.Error("Failed to create ingest service", "err", err)
		return
	}
	controller.Init(svc, storage.NewClient())

	if err := mq.Run(svc.HandleIngestMessage, svc.HandleDeleteMessage); err != nil {
		slog.Error("Failed to start mq", "err", err)
		return
	}
	defer mq.Shutdown()

	sw := sweeper.New(
		func(olderThan time.Duration, limit int) ([]model.Document, error) {
			return dao.GetStaleDocuments(model.StatePending, olderThan, limit)
		},
		func(olderThan time.Duration, limit int) ([]model.Document, error) {
			return dao.GetStaleDocuments(model.StateProcessing, olderThan, limit)
		},
		func(ctx context.Context, doc model.Document) error {
			return mq.SendMessage(ctx, &mq.Message{
				Topic: mq.TopicDocument,
				Tag:   mq.TagIngest,
				Payload: ingest.IngestMessage{
					DocumentID: doc.DocumentID,
					EnqueuedAt: time.Now(),
				},
			})
		},
		config.Cfg.Sweep.Interval,
		config.Cfg.Sweep.PendingMaxAge,
		config.Cfg.Sweep.AlertProcessing,
	)
	go sw.Run(ctx)

	server := &http.Server{
		Addr:    config.Cfg.Server.Addr,
		Handler: router.Register(),
	}

	go func() {
		slog.Info("Ingest service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down ingest service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shutdown server gracefully", "err", err)
	}
}
