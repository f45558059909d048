package embedding

import (
	"fmt"

	"doc-ingest-backend/config"
	"doc-ingest-backend/utils"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// NewEmbedder 创建批量embedding客户端
// 向量维度由部署固定，须与Milvus集合的维度一致
func NewEmbedder() (embeddings.Embedder, error) {
	client, err := openai.New(
		openai.WithEmbeddingModel(config.Cfg.Embedding.Model),
		openai.WithToken(config.Cfg.Embedding.APIKey),
		openai.WithBaseURL(config.Cfg.Embedding.BaseURL),
		openai.WithHTTPClient(utils.DefaultHTTPClient()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder client: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.Cfg.Embedding.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %v", err)
	}

	return embedder, nil
}
