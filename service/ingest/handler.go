package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"doc-ingest-backend/model"

	"github.com/apache/rocketmq-client-go/v2/primitive"
)

type IngestMessage struct {
	DocumentID string    `json:"document_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type DeleteMessage struct {
	DocumentID string `json:"document_id"`
	StorageKey string `json:"storage_key"`
}

// HandleIngestMessage 消费摄取任务
// 投递语义为at-least-once：返回nil即确认，返回error则稍后重投
func (s *Service) HandleIngestMessage(ctx context.Context, msg *primitive.MessageExt) error {
	var m IngestMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		// 消息体损坏，重投无意义，确认后丢弃
		slog.Error("Failed to unmarshal ingest message, dropping",
			"msg_id", msg.MsgId,
			"err", err)
		return nil
	}

	doc, err := s.claim(ctx, m.DocumentID, msg.ReconsumeTimes)
	if err != nil {
		return err
	}
	if doc == nil {
		return nil
	}

	log := slog.With(
		"document_id", doc.DocumentID,
		"owner_id", doc.OwnerID,
		"mime_type", doc.MimeType,
		"attempt", msg.ReconsumeTimes+1,
	)
	log.Info("Processing document")

	err = s.process(ctx, doc)
	if err == nil {
		log.Info("Document indexed")
		return nil
	}

	var perm *PermanentError
	if errors.As(err, &perm) {
		log.Error("Permanent failure, document moved to ERROR",
			"reason", perm.Reason,
			"err", err)
		s.failDocument(doc.DocumentID, perm.Reason)
		return nil
	}

	// 瞬时失败：文档保持PROCESSING，任务重投后重入
	if msg.ReconsumeTimes >= s.maxAttempts-1 {
		log.Error("Retries exhausted, document moved to ERROR", "err", err)
		s.failDocument(doc.DocumentID, ReasonRetriesExhausted)
		return nil
	}

	log.Warn("Transient failure, task will be redelivered", "err", err)
	return err
}

// claim 认领文档：PENDING迁移至PROCESSING
// 迁移冲突时，仅重投任务（reconsumeTimes > 0）允许在PROCESSING上继续；
// 其余冲突说明已被别的worker认领或已到终态，返回nil丢弃
func (s *Service) claim(ctx context.Context, documentID string, reconsumeTimes int32) (*model.Document, error) {
	doc, err := s.store.Get(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		// 文档已删除，清掉上一次尝试可能残留的向量后作废任务
		if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
			return nil, err
		}
		slog.Info("Document no longer exists, dropping task", "document_id", documentID)
		return nil, nil
	}

	claimed, err := s.store.Transition(documentID, model.StatePending, model.StateProcessing, nil)
	if err != nil {
		return nil, err
	}
	if claimed {
		doc.State = model.StateProcessing
		return doc, nil
	}

	doc, err = s.store.Get(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	if doc.State == model.StateProcessing && reconsumeTimes > 0 {
		return doc, nil
	}

	slog.Info("Document already claimed or terminal, dropping task",
		"document_id", documentID,
		"state", doc.State)
	return nil, nil
}

// failDocument 转入ERROR；冲突视为无操作
func (s *Service) failDocument(documentID, reason string) {
	ok, err := s.store.Transition(documentID, model.StateProcessing, model.StateError, map[string]any{
		"error_reason": reason,
		"chunk_count":  nil,
	})
	if err != nil {
		slog.Error("Failed to transition document to ERROR",
			"document_id", documentID,
			"err", err)
		return
	}
	if !ok {
		slog.Warn("Document state changed concurrently, ERROR transition skipped",
			"document_id", documentID)
	}
}

// HandleDeleteMessage 消费删除任务：清理向量索引与OSS对象
// 元数据行在API侧已删除，这里只负责物理残留
func (s *Service) HandleDeleteMessage(ctx context.Context, msg *primitive.MessageExt) error {
	var m DeleteMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		slog.Error("Failed to unmarshal delete message, dropping",
			"msg_id", msg.MsgId,
			"err", err)
		return nil
	}

	if err := s.index.DeleteByDocument(ctx, m.DocumentID); err != nil {
		return err
	}

	if err := s.blobs.DeleteObject(ctx, m.StorageKey); err != nil {
		return err
	}

	slog.Info("Document artifacts deleted",
		"document_id", m.DocumentID,
		"storage_key", m.StorageKey)
	return nil
}
