package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"doc-ingest-backend/config"
	"doc-ingest-backend/dao"
	"doc-ingest-backend/model"
	"doc-ingest-backend/service/embedding"
	"doc-ingest-backend/service/ingest/extractor"
	"doc-ingest-backend/service/storage"
	"doc-ingest-backend/service/vectorindex"

	"github.com/google/uuid"
)

// MetadataStore 文档元数据存取，状态的唯一权威来源
type MetadataStore interface {
	Create(doc *model.Document) error

	// 不存在时返回 (nil, nil)
	Get(documentID string) (*model.Document, error)

	// 条件状态迁移；false表示当前状态已不是from，按无冲突处理
	Transition(documentID string, from, to model.State, fields map[string]any) (bool, error)
}

// BlobStore 原始文档字节的持久存储
type BlobStore interface {
	PutObject(ctx context.Context, key string, data []byte) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

// Embedder 批量向量化，langchaingo的embeddings.Embedder天然满足
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex 块向量索引，按 (document_id, chunk_index) 幂等写入
type VectorIndex interface {
	Upsert(ctx context.Context, documentID, ownerID string, chunks []extractor.Chunk, vectors [][]float32) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Service 摄取编排器，驱动 PENDING → PROCESSING → INDEXED/ERROR 状态机
type Service struct {
	store      MetadataStore
	blobs      BlobStore
	embedder   Embedder
	index      VectorIndex
	extractors *extractor.Registry
	chunker    *extractor.Chunker

	dim         int
	maxAttempts int32
}

func NewService(ctx context.Context) (*Service, error) {
	registry, err := extractor.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor registry: %v", err)
	}

	embedder, err := embedding.NewEmbedder()
	if err != nil {
		return nil, err
	}

	index, err := vectorindex.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:       gormStore{},
		blobs:       storage.NewClient(),
		embedder:    embedder,
		index:       index,
		extractors:  registry,
		chunker:     extractor.NewChunker(),
		dim:         config.Cfg.Embedding.Dimension,
		maxAttempts: int32(config.Cfg.MQ.MaxReconsumeTimes),
	}, nil
}

// SubmitDocument 接收上传：先持久化字节，成功后才建立PENDING元数据
// 任务入队由调用方完成，入队失败的文档留在PENDING等恢复扫描补投
func (s *Service) SubmitDocument(ctx context.Context, ownerID, filename, mimeType string, data []byte) (*model.Document, error) {
	documentID := uuid.New().String()
	storageKey := storage.ObjectKey(ownerID, documentID, filename)

	if err := s.blobs.PutObject(ctx, storageKey, data); err != nil {
		return nil, fmt.Errorf("failed to store document bytes: %v", err)
	}

	hash := sha256.Sum256(data)
	doc := &model.Document{
		DocumentID:       documentID,
		OwnerID:          ownerID,
		OriginalFilename: filename,
		ContentHash:      hex.EncodeToString(hash[:]),
		ByteSize:         int64(len(data)),
		MimeType:         mimeType,
		StorageKey:       storageKey,
		State:            model.StatePending,
	}
	if err := s.store.Create(doc); err != nil {
		return nil, fmt.Errorf("failed to create document metadata: %v", err)
	}

	return doc, nil
}

// RetryDocument 将失败文档重置回PENDING，等待调用方重新入队
// 仅ERROR状态可重试；条件迁移丢失说明状态已被并发改变，同样拒绝
func (s *Service) RetryDocument(ownerID, documentID string) (*model.Document, error) {
	doc, err := s.store.Get(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.OwnerID != ownerID {
		return nil, ErrDocumentNotFound
	}
	if doc.State != model.StateError {
		return nil, ErrDocumentNotRetryable
	}

	ok, err := s.store.Transition(documentID, model.StateError, model.StatePending, map[string]any{
		"error_reason": nil,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDocumentNotRetryable
	}

	doc.State = model.StatePending
	doc.ErrorReason = nil
	return doc, nil
}

// gormStore dao包的MetadataStore适配
type gormStore struct{}

var _ MetadataStore = gormStore{}

func (gormStore) Create(doc *model.Document) error {
	return dao.CreateDocument(doc)
}

func (gormStore) Get(documentID string) (*model.Document, error) {
	return dao.GetDocumentByID(documentID)
}

func (gormStore) Transition(documentID string, from, to model.State, fields map[string]any) (bool, error) {
	return dao.TransitionState(documentID, from, to, fields)
}
