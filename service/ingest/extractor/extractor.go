package extractor

import (
	"context"
)

// Extractor 从原始字节提取文本段落
// 同一输入必须产生相同的段落序列，重投递时块边界才可复现
type Extractor interface {
	// 判断是否支持传入的MIME类型
	CanExtract(mimeType string) bool

	// 提取文本段落；受支持类型的提取失败视为内容损坏，不重试
	Extract(ctx context.Context, data []byte) ([]string, error)
}

// Registry 按MIME类型查找提取器
type Registry struct {
	extractors []Extractor
}

func NewRegistry() (*Registry, error) {
	pdfExtractor, err := NewPDFExtractor()
	if err != nil {
		return nil, err
	}

	return &Registry{
		extractors: []Extractor{
			NewPlainTextExtractor(),
			pdfExtractor,
		},
	}, nil
}

// Lookup 返回首个支持该类型的提取器，没有则返回nil
func (r *Registry) Lookup(mimeType string) Extractor {
	for _, e := range r.extractors {
		if e.CanExtract(mimeType) {
			return e
		}
	}
	return nil
}
