package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"doc-ingest-backend/model"
)

// process 执行摄取管道：提取 → 切块 → 向量化 → 写索引 → 置INDEXED
// 整个流程可安全重放：块边界确定，向量写入按主键覆盖
func (s *Service) process(ctx context.Context, doc *model.Document) error {
	data, err := s.blobs.GetObject(ctx, doc.StorageKey)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return permanent(ReasonCorruptContent, fmt.Errorf("stored object %s is empty", doc.StorageKey))
	}

	ext := s.extractors.Lookup(doc.MimeType)
	if ext == nil {
		return permanent(ReasonUnsupportedMimeType, fmt.Errorf("no extractor for %s", doc.MimeType))
	}

	segments, err := ext.Extract(ctx, data)
	if err != nil {
		// 受支持类型提取失败说明内容损坏，不重试
		return permanent(ReasonCorruptContent, err)
	}

	chunks, err := s.chunker.Split(segments)
	if err != nil {
		return permanent(ReasonCorruptContent, err)
	}
	if len(chunks) == 0 {
		return permanent(ReasonCorruptContent, fmt.Errorf("no extractable text in document %s", doc.DocumentID))
	}

	slog.Debug("Document split",
		"document_id", doc.DocumentID,
		"chunk_count", len(chunks))

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, chunk.Text)
	}

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("error embedding document %s: %w", doc.DocumentID, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch for document %s: got %d, want %d",
			doc.DocumentID, len(vectors), len(chunks))
	}
	for i, vector := range vectors {
		if len(vector) != s.dim {
			return permanent(ReasonDimensionMismatch,
				fmt.Errorf("chunk %d: got %d, deployment expects %d", i, len(vector), s.dim))
		}
	}

	// 先清掉上一次尝试的残留写入，再整批覆盖
	if err := s.index.DeleteByDocument(ctx, doc.DocumentID); err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, doc.DocumentID, doc.OwnerID, chunks, vectors); err != nil {
		return err
	}

	ok, err := s.store.Transition(doc.DocumentID, model.StateProcessing, model.StateIndexed, map[string]any{
		"chunk_count":  len(chunks),
		"error_reason": nil,
	})
	if err != nil {
		return err
	}
	if !ok {
		return s.reconcileLostTransition(ctx, doc)
	}
	return nil
}

// reconcileLostTransition 处理INDEXED迁移冲突
// 文档在处理期间被删除时，刚写入的向量已成孤儿，须在确认任务前补偿清理
func (s *Service) reconcileLostTransition(ctx context.Context, doc *model.Document) error {
	current, err := s.store.Get(doc.DocumentID)
	if err != nil {
		return err
	}
	if current == nil {
		slog.Info("Document deleted during processing, cleaning up index entries",
			"document_id", doc.DocumentID)
		// 清理失败则重投，任务重入时在claim里收敛
		return s.index.DeleteByDocument(ctx, doc.DocumentID)
	}

	slog.Warn("Document state changed concurrently, INDEXED transition skipped",
		"document_id", doc.DocumentID,
		"state", current.State)
	return nil
}
