package extractor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tmc/langchaingo/documentloaders"
)

// PDFExtractor PDF提取器，按页输出段落
type PDFExtractor struct{}

var _ Extractor = &PDFExtractor{}

func NewPDFExtractor() (*PDFExtractor, error) {
	return &PDFExtractor{}, nil
}

func (e *PDFExtractor) CanExtract(mimeType string) bool {
	return mimeType == "application/pdf"
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) ([]string, error) {
	reader := bytes.NewReader(data)
	loader := documentloaders.NewPDF(reader, int64(len(data)))

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("error loading pdf: %v", err)
	}

	segments := make([]string, 0, len(docs))
	for _, doc := range docs {
		segments = append(segments, doc.PageContent)
	}
	return segments, nil
}
