package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	assert.NotNil(t, registry.Lookup("text/plain"))
	assert.NotNil(t, registry.Lookup("text/markdown"))
	assert.NotNil(t, registry.Lookup("application/pdf"))
	assert.Nil(t, registry.Lookup("application/x-unknown"))
	assert.Nil(t, registry.Lookup("image/png"))
}

func TestPlainTextExtract(t *testing.T) {
	extractor := &PlainTextExtractor{}

	segments, err := extractor.Extract(context.Background(), []byte("第一段内容。\n\n第二段内容。"))
	require.NoError(t, err)
	require.NotEmpty(t, segments)
	assert.Contains(t, segments[0], "第一段内容")
}

func TestPDFExtractRejectsGarbage(t *testing.T) {
	extractor := &PDFExtractor{}

	_, err := extractor.Extract(context.Background(), []byte("not a pdf at all"))
	assert.Error(t, err)
}
