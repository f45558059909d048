package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"doc-ingest-backend/model"
	"doc-ingest-backend/service/ingest/extractor"
	"doc-ingest-backend/service/vectorindex"
)

// memStore 内存版MetadataStore，条件迁移语义与gorm DAO一致
type memStore struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[string]*model.Document)}
}

func (s *memStore) Create(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[doc.DocumentID]; ok {
		return fmt.Errorf("duplicate document %s", doc.DocumentID)
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	stored := *doc
	s.docs[doc.DocumentID] = &stored
	return nil
}

func (s *memStore) Get(documentID string) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return nil, nil
	}
	copied := *doc
	return &copied, nil
}

func (s *memStore) Transition(documentID string, from, to model.State, fields map[string]any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok || doc.State != from {
		return false, nil
	}

	doc.State = to
	if v, ok := fields["error_reason"]; ok {
		if v == nil {
			doc.ErrorReason = nil
		} else {
			reason := v.(string)
			doc.ErrorReason = &reason
		}
	}
	if v, ok := fields["chunk_count"]; ok {
		if v == nil {
			doc.ChunkCount = nil
		} else {
			count := v.(int)
			doc.ChunkCount = &count
		}
	}
	doc.UpdatedAt = time.Now()
	return true, nil
}

// delete 模拟API侧的元数据行删除
func (s *memStore) delete(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
}

// memBlobs 基于map的BlobStore
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) PutObject(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobs) GetObject(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.getErr != nil {
		return nil, b.getErr
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

func (b *memBlobs) DeleteObject(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// fakeEmbedder 固定维度的Embedder，可配置前若干次调用失败
type fakeEmbedder struct {
	dim       int
	calls     atomic.Int32
	failCount int32
}

func (e *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	call := e.calls.Add(1)
	if call <= e.failCount {
		return nil, errors.New("embedding backend timeout")
	}

	vectors := make([][]float32, len(texts))
	for i := range texts {
		vector := make([]float32, e.dim)
		for j := range vector {
			vector[j] = float32(i + j)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

type indexEntry struct {
	documentID string
	ownerID    string
	chunkIndex int
	excerpt    string
	vector     []float32
}

// memIndex 以chunk id为键的VectorIndex，重复upsert覆盖而非追加
type memIndex struct {
	mu      sync.Mutex
	entries map[string]indexEntry
}

func newMemIndex() *memIndex {
	return &memIndex{entries: make(map[string]indexEntry)}
}

func (x *memIndex) Upsert(ctx context.Context, documentID, ownerID string, chunks []extractor.Chunk, vectors [][]float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, chunk := range chunks {
		x.entries[vectorindex.ChunkID(documentID, chunk.Index)] = indexEntry{
			documentID: documentID,
			ownerID:    ownerID,
			chunkIndex: chunk.Index,
			excerpt:    chunk.Text,
			vector:     vectors[i],
		}
	}
	return nil
}

func (x *memIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, entry := range x.entries {
		if entry.documentID == documentID {
			delete(x.entries, id)
		}
	}
	return nil
}

func (x *memIndex) count(documentID string) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	n := 0
	for _, entry := range x.entries {
		if entry.documentID == documentID {
			n++
		}
	}
	return n
}
