package extractor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tmc/langchaingo/documentloaders"
)

// PlainTextExtractor 纯文本与Markdown提取器
type PlainTextExtractor struct{}

var _ Extractor = &PlainTextExtractor{}

func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) CanExtract(mimeType string) bool {
	return mimeType == "text/plain" || mimeType == "text/markdown"
}

func (e *PlainTextExtractor) Extract(ctx context.Context, data []byte) ([]string, error) {
	reader := bytes.NewReader(data)
	loader := documentloaders.NewText(reader)

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading text: %v", err)
	}

	segments := make([]string, 0, len(docs))
	for _, doc := range docs {
		segments = append(segments, doc.PageContent)
	}
	return segments, nil
}
