package processor

import (
	"context"
	"slices"
	"strings"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/internal/types"
)

// ProcessorConfig sizes chunks in runes. A zero ChunkSize selects 1000 with
// an overlap of 200 unless ChunkOverlap is set; with an explicit ChunkSize a
// zero ChunkOverlap means no overlap.
type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor turns uploaded documents into chunks ready for embedding.
type Processor struct {
	config    ProcessorConfig
	extractor *Extractor
	chunker   *Chunker
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = 200
		}
	}

	chunker, err := NewChunker(config.ChunkSize, config.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return &Processor{
		config:    config,
		extractor: NewExtractor(),
		chunker:   chunker,
	}, nil
}

// Process extracts the text of docs and splits it into chunks. It fails with
// types.ErrNoExtractableText when none of the documents has any text.
func (p *Processor) Process(ctx context.Context, docs []models.Document) ([]models.Chunk, error) {
	text := p.cleanText(p.extractor.ExtractAll(ctx, docs))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, types.ErrNoExtractableText
	}

	return slices.Collect(p.chunker.Split(text)), nil
}

// cleanText collapses runs of spaces inside lines and keeps at most one blank
// line between paragraphs.
func (p *Processor) cleanText(text string) string {
	var b strings.Builder
	blank := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank = true
			continue
		}
		if b.Len() > 0 {
			if blank {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		blank = false
		b.WriteString(line)
	}

	return b.String()
}
