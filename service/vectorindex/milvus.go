package vectorindex

import (
	"context"
	"fmt"

	"doc-ingest-backend/config"
	"doc-ingest-backend/service/ingest/extractor"

	"github.com/milvus-io/milvus/client/v2/column"
	client "github.com/milvus-io/milvus/client/v2/milvusclient"
)

// 写入索引的文本摘录长度上限（字符数），用于检索结果归属展示
const excerptMaxRunes = 500

// Client Milvus向量索引客户端
// 主键为 documentID:chunkIndex，重复写入覆盖而非追加
type Client struct {
	milvus     *client.Client
	collection string
	dim        int
}

func NewClient(ctx context.Context) (*Client, error) {
	milvus, err := client.New(ctx, &client.ClientConfig{
		Address: config.Cfg.Milvus.Endpoint,
		APIKey:  config.Cfg.Milvus.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %v", err)
	}

	return &Client{
		milvus:     milvus,
		collection: config.Cfg.Milvus.CollectionName,
		dim:        config.Cfg.Embedding.Dimension,
	}, nil
}

// ChunkID 向量条目主键
func ChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s:%d", documentID, chunkIndex)
}

// Upsert 写入一个文档的全部块向量
// 维度不匹配在写入前报错，该错误不可重试
func (c *Client) Upsert(ctx context.Context, documentID, ownerID string, chunks []extractor.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d != %d", len(chunks), len(vectors))
	}

	chunkIDs := make([]string, 0, len(chunks))
	documentIDs := make([]string, 0, len(chunks))
	chunkIndexes := make([]int64, 0, len(chunks))
	ownerIDs := make([]string, 0, len(chunks))
	excerpts := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		if len(vectors[i]) != c.dim {
			return fmt.Errorf("vector dimension mismatch: got %d, collection expects %d", len(vectors[i]), c.dim)
		}
		chunkIDs = append(chunkIDs, ChunkID(documentID, chunk.Index))
		documentIDs = append(documentIDs, documentID)
		chunkIndexes = append(chunkIndexes, int64(chunk.Index))
		ownerIDs = append(ownerIDs, ownerID)
		excerpts = append(excerpts, truncateExcerpt(chunk.Text))
	}

	columns := []column.Column{
		column.NewColumnVarChar("chunk_id", chunkIDs),
		column.NewColumnVarChar("document_id", documentIDs),
		column.NewColumnInt64("chunk_index", chunkIndexes),
		column.NewColumnVarChar("owner_id", ownerIDs),
		column.NewColumnVarChar("text_excerpt", excerpts),
		column.NewColumnFloatVector("vector", c.dim, vectors),
	}

	upsertOption := client.NewColumnBasedInsertOption(c.collection).WithColumns(columns...)
	if _, err := c.milvus.Upsert(ctx, upsertOption); err != nil {
		return fmt.Errorf("error upserting chunks for document %s: %v", documentID, err)
	}
	return nil
}

// DeleteByDocument 删除文档的全部向量条目
// 重新摄取前清理上一次的残留写入
func (c *Client) DeleteByDocument(ctx context.Context, documentID string) error {
	expr := fmt.Sprintf("document_id == %q", documentID)
	deleteOption := client.NewDeleteOption(c.collection).WithExpr(expr)
	if _, err := c.milvus.Delete(ctx, deleteOption); err != nil {
		return fmt.Errorf("error deleting chunks for document %s: %v", documentID, err)
	}
	return nil
}

func truncateExcerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptMaxRunes {
		return text
	}
	return string(runes[:excerptMaxRunes])
}
