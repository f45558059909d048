package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"doc-ingest-backend/model"
	"doc-ingest-backend/service/ingest/extractor"
	"doc-ingest-backend/service/vectorindex"

	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 4

type testEnv struct {
	svc      *Service
	store    *memStore
	blobs    *memBlobs
	embedder *fakeEmbedder
	index    *memIndex
}

func newTestEnv(t *testing.T) *testEnv {
	registry, err := extractor.NewRegistry()
	require.NoError(t, err)

	store := newMemStore()
	blobs := newMemBlobs()
	embedder := &fakeEmbedder{dim: testDim}
	index := newMemIndex()

	return &testEnv{
		svc: &Service{
			store:       store,
			blobs:       blobs,
			embedder:    embedder,
			index:       index,
			extractors:  registry,
			chunker:     extractor.NewChunker(),
			dim:         testDim,
			maxAttempts: 3,
		},
		store:    store,
		blobs:    blobs,
		embedder: embedder,
		index:    index,
	}
}

// threeChunkText 两次超出块大小，切块器恰好产出三个块
func threeChunkText() []byte {
	return []byte(strings.Repeat("a", 3000) + "\n\n" +
		strings.Repeat("b", 3000) + "\n\n" +
		strings.Repeat("c", 3000))
}

func (env *testEnv) submit(t *testing.T, mimeType string, data []byte) *model.Document {
	doc, err := env.svc.SubmitDocument(context.Background(), "owner-1", "report.txt", mimeType, data)
	require.NoError(t, err)
	require.Equal(t, model.StatePending, doc.State)
	return doc
}

func ingestMsg(t *testing.T, documentID string, reconsumeTimes int32) *primitive.MessageExt {
	body, err := json.Marshal(IngestMessage{DocumentID: documentID})
	require.NoError(t, err)
	return &primitive.MessageExt{
		Message:        primitive.Message{Topic: "topic_document", Body: body},
		ReconsumeTimes: reconsumeTimes,
	}
}

func (env *testEnv) mustGet(t *testing.T, documentID string) *model.Document {
	doc, err := env.store.Get(documentID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	return doc
}

func TestHandleIngestMessageIndexesDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "text/plain", threeChunkText())

	err := env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0))
	require.NoError(t, err)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateIndexed, got.State)
	require.NotNil(t, got.ChunkCount)
	assert.Equal(t, 3, *got.ChunkCount)
	assert.Nil(t, got.ErrorReason)

	assert.Equal(t, 3, env.index.count(doc.DocumentID))
	for i := 0; i < 3; i++ {
		_, ok := env.index.entries[vectorindex.ChunkID(doc.DocumentID, i)]
		assert.True(t, ok, "missing vector entry for chunk %d", i)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	data := threeChunkText()
	doc := env.submit(t, "text/plain", data)

	stored, err := env.blobs.GetObject(context.Background(), doc.StorageKey)
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestUnsupportedMimeTypeIsPermanent(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "application/x-unknown", []byte("payload"))

	// 返回nil即确认任务，永久失败不重投
	err := env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0))
	require.NoError(t, err)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateError, got.State)
	require.NotNil(t, got.ErrorReason)
	assert.Equal(t, ReasonUnsupportedMimeType, *got.ErrorReason)
	assert.Nil(t, got.ChunkCount)
	assert.Equal(t, int32(0), env.embedder.calls.Load())
}

func TestCorruptContentIsPermanent(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "application/pdf", []byte("definitely not a pdf"))

	err := env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0))
	require.NoError(t, err)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateError, got.State)
	require.NotNil(t, got.ErrorReason)
	assert.Equal(t, ReasonCorruptContent, *got.ErrorReason)
}

func TestEmptyObjectIsPermanent(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "text/plain", nil)

	err := env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0))
	require.NoError(t, err)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateError, got.State)
	require.NotNil(t, got.ErrorReason)
}

func TestTransientFailureLeavesProcessingAndRequeues(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.failCount = 100
	doc := env.submit(t, "text/plain", threeChunkText())

	err := env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0))
	require.Error(t, err)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateProcessing, got.State)
	assert.Nil(t, got.ErrorReason)
	assert.Equal(t, 0, env.index.count(doc.DocumentID))
}

func TestRetryExhaustionMovesToError(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.failCount = 100
	doc := env.submit(t, "text/plain", threeChunkText())

	require.Error(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0)))
	require.Error(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 1)))

	// 最后一次投递耗尽重试
	err := env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 2))
	require.NoError(t, err)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateError, got.State)
	require.NotNil(t, got.ErrorReason)
	assert.Equal(t, ReasonRetriesExhausted, *got.ErrorReason)
}

func TestRedeliveryRecoversAfterTransientFailure(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.failCount = 1
	doc := env.submit(t, "text/plain", threeChunkText())

	require.Error(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0)))

	// 重投在PROCESSING上重入并成功
	err := env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 1))
	require.NoError(t, err)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateIndexed, got.State)
	assert.Equal(t, 3, env.index.count(doc.DocumentID))
}

func TestDimensionMismatchIsPermanent(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.dim = testDim + 1
	doc := env.submit(t, "text/plain", threeChunkText())

	err := env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0))
	require.NoError(t, err)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateError, got.State)
	require.NotNil(t, got.ErrorReason)
	assert.Equal(t, ReasonDimensionMismatch, *got.ErrorReason)
}

func TestProcessTwiceDoesNotDuplicateVectors(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "text/plain", threeChunkText())
	claimed, err := env.store.Transition(doc.DocumentID, model.StatePending, model.StateProcessing, nil)
	require.NoError(t, err)
	require.True(t, claimed)
	doc.State = model.StateProcessing

	require.NoError(t, env.svc.process(context.Background(), doc))
	require.NoError(t, env.svc.process(context.Background(), doc))

	assert.Equal(t, 3, env.index.count(doc.DocumentID))
}

func TestConcurrentClaimExactlyOneProcesses(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "text/plain", threeChunkText())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// 两个worker同时收到同一任务，条件迁移保证只有一个处理
			_ = env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0))
		}()
	}
	wg.Wait()

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateIndexed, got.State)
	assert.Equal(t, int32(1), env.embedder.calls.Load())
	assert.Equal(t, 3, env.index.count(doc.DocumentID))
}

func TestDeletedDocumentDropsTask(t *testing.T) {
	env := newTestEnv(t)

	err := env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, "no-such-document", 0))
	require.NoError(t, err)
	assert.Equal(t, int32(0), env.embedder.calls.Load())
}

func TestDeleteDuringProcessingCleansUpVectors(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "text/plain", threeChunkText())
	claimed, err := env.store.Transition(doc.DocumentID, model.StatePending, model.StateProcessing, nil)
	require.NoError(t, err)
	require.True(t, claimed)
	doc.State = model.StateProcessing

	// worker处理期间API删除了元数据行
	env.store.delete(doc.DocumentID)

	// 向量已写入但INDEXED迁移丢失，确认前必须补偿清理
	require.NoError(t, env.svc.process(context.Background(), doc))
	assert.Equal(t, 0, env.index.count(doc.DocumentID))
}

func TestDeletedDocumentTaskPurgesLeftoverVectors(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "text/plain", threeChunkText())
	require.NoError(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0)))
	require.Equal(t, 3, env.index.count(doc.DocumentID))

	// 元数据行已删但清理任务尚未执行，重投的摄取任务须收敛残留向量
	env.store.delete(doc.DocumentID)
	require.NoError(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 1)))
	assert.Equal(t, 0, env.index.count(doc.DocumentID))
}

func TestRetryDocumentResetsErrorDocument(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "application/x-unknown", []byte("payload"))
	require.NoError(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0)))
	require.Equal(t, model.StateError, env.mustGet(t, doc.DocumentID).State)

	retried, err := env.svc.RetryDocument("owner-1", doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatePending, retried.State)
	assert.Nil(t, retried.ErrorReason)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StatePending, got.State)
	assert.Nil(t, got.ErrorReason)
}

func TestRetryDocumentThenReingestSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.failCount = 100
	doc := env.submit(t, "text/plain", threeChunkText())

	// 耗尽重试进入ERROR
	require.Error(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0)))
	require.Error(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 1)))
	require.NoError(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 2)))
	require.Equal(t, model.StateError, env.mustGet(t, doc.DocumentID).State)

	// 后端恢复后重试，重新入队的任务从PENDING走完整摄取
	env.embedder.failCount = 0
	env.embedder.calls.Store(0)
	_, err := env.svc.RetryDocument("owner-1", doc.DocumentID)
	require.NoError(t, err)
	require.NoError(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0)))

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, model.StateIndexed, got.State)
	assert.Equal(t, 3, env.index.count(doc.DocumentID))
}

func TestRetryDocumentRejectsNonErrorState(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "text/plain", threeChunkText())

	_, err := env.svc.RetryDocument("owner-1", doc.DocumentID)
	assert.ErrorIs(t, err, ErrDocumentNotRetryable)
	assert.Equal(t, model.StatePending, env.mustGet(t, doc.DocumentID).State)
}

func TestRetryDocumentRejectsWrongOwner(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "application/x-unknown", []byte("payload"))
	require.NoError(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0)))

	_, err := env.svc.RetryDocument("other-owner", doc.DocumentID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = env.svc.RetryDocument("owner-1", "no-such-document")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestMalformedMessageIsDropped(t *testing.T) {
	env := newTestEnv(t)
	msg := &primitive.MessageExt{
		Message: primitive.Message{Topic: "topic_document", Body: []byte("{broken")},
	}
	require.NoError(t, env.svc.HandleIngestMessage(context.Background(), msg))
}

func TestHandleDeleteMessageRemovesArtifacts(t *testing.T) {
	env := newTestEnv(t)
	doc := env.submit(t, "text/plain", threeChunkText())
	require.NoError(t, env.svc.HandleIngestMessage(context.Background(), ingestMsg(t, doc.DocumentID, 0)))
	require.Equal(t, 3, env.index.count(doc.DocumentID))

	body, err := json.Marshal(DeleteMessage{DocumentID: doc.DocumentID, StorageKey: doc.StorageKey})
	require.NoError(t, err)
	msg := &primitive.MessageExt{Message: primitive.Message{Topic: "topic_document", Body: body}}

	require.NoError(t, env.svc.HandleDeleteMessage(context.Background(), msg))
	assert.Equal(t, 0, env.index.count(doc.DocumentID))

	_, err = env.blobs.GetObject(context.Background(), doc.StorageKey)
	assert.Error(t, err)
}

func TestSubmitDocumentRecordsMetadata(t *testing.T) {
	env := newTestEnv(t)
	data := threeChunkText()
	doc := env.submit(t, "text/plain", data)

	got := env.mustGet(t, doc.DocumentID)
	assert.Equal(t, "owner-1", got.OwnerID)
	assert.Equal(t, "report.txt", got.OriginalFilename)
	assert.Equal(t, int64(len(data)), got.ByteSize)
	assert.Len(t, got.ContentHash, 64)
	assert.True(t, got.State.Valid())
}
