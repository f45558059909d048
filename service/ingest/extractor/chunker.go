package extractor

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

const (
	defaultChunkSize    = 4000
	defaultChunkOverlap = 200
)

// Chunk 向量化与索引的最小单元
type Chunk struct {
	Index      int
	Text       string
	TokenCount int
}

// Chunker 将提取的段落切成有界文本块
// 切分纯函数式：相同输入与参数必然产生相同的块边界
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

func NewChunker() *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators([]string{"\n\n", "\n", "。", "！", "？", "；", "，", " ", ""}),
			textsplitter.WithChunkSize(defaultChunkSize),
			textsplitter.WithChunkOverlap(defaultChunkOverlap),
		),
	}
}

// Split 切分全部段落，块序号跨段落连续递增
func (c *Chunker) Split(segments []string) ([]Chunk, error) {
	var chunks []Chunk
	for _, segment := range segments {
		if strings.TrimSpace(segment) == "" {
			continue
		}

		parts, err := c.splitter.SplitText(segment)
		if err != nil {
			return nil, fmt.Errorf("error splitting text: %v", err)
		}

		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				Index:      len(chunks),
				Text:       part,
				TokenCount: approxTokens(part),
			})
		}
	}
	return chunks, nil
}

// approxTokens 粗略token估算（约4字符1个token）
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
