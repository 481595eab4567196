package processor_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/processor"
)

func TestProcessor_Process(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	})
	require.NoError(t, err)

	chunks, err := p.Process(context.Background(), []models.Document{
		{Name: "sky.txt", Content: []byte("The sky is blue.")},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "The sky is blue.", chunks[0].Text)
}

func TestProcessor_CleansWhitespace(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{})
	require.NoError(t, err)

	chunks, err := p.Process(context.Background(), []models.Document{
		{Name: "a.txt", Content: []byte("  First   line\r\nsecond\tline\n\n\n\nNew   paragraph  ")},
		{Name: "b.txt", Content: []byte("Another document.")},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "First line\nsecond line\n\nNew paragraph\n\nAnother document.", chunks[0].Text)
}

func TestProcessor_NoText(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{})
	require.NoError(t, err)

	tests := []struct {
		name string
		docs []models.Document
	}{
		{"no documents", nil},
		{"blank text", []models.Document{{Name: "blank.txt", Content: []byte(" \n\t ")}}},
		{"scanned pdf", []models.Document{{Name: "scan.pdf", Content: buildPDF("")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Process(context.Background(), tt.docs)
			assert.ErrorIs(t, err, types.ErrNoExtractableText)
		})
	}
}

func TestNewWithConfig_InvalidOverlap(t *testing.T) {
	_, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 100, ChunkOverlap: 300})
	assert.Error(t, err)
}

func TestNewWithConfig_Overlap(t *testing.T) {
	text := strings.Repeat("word ", 200)

	tests := []struct {
		name    string
		config  processor.ProcessorConfig
		overlap int
	}{
		{"explicit zero overlap", processor.ProcessorConfig{ChunkSize: 300, ChunkOverlap: 0}, 0},
		{"chunk size alone", processor.ProcessorConfig{ChunkSize: 100}, 0},
		{"explicit overlap", processor.ProcessorConfig{ChunkSize: 300, ChunkOverlap: 50}, 50},
		{"defaults", processor.ProcessorConfig{}, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := processor.NewWithConfig(tt.config)
			require.NoError(t, err)

			chunks, err := p.Process(context.Background(), []models.Document{
				{Name: "words.txt", Content: []byte(text + text + text)},
			})
			require.NoError(t, err)
			require.Greater(t, len(chunks), 1)

			for i := 1; i < len(chunks); i++ {
				assert.Equal(t, tt.overlap, chunks[i-1].End-chunks[i].Start, "chunk %d", i)
			}
		})
	}
}
