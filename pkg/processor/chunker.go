package processor

import (
	"fmt"
	"iter"
	"strings"
	"unicode"

	"github.com/xhad/docchat/internal/models"
)

// Chunker cuts text into windows of at most maxSize runes. Consecutive
// windows share exactly overlap runes.
type Chunker struct {
	maxSize int
	overlap int
}

func NewChunker(maxSize, overlap int) (*Chunker, error) {
	if maxSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("chunk overlap must be non-negative and less than chunk size, got %d", overlap)
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}, nil
}

// Split returns the chunks of text in order. The sequence is computed lazily
// and can be ranged over any number of times.
func (c *Chunker) Split(text string) iter.Seq[models.Chunk] {
	return func(yield func(models.Chunk) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}

		runes := []rune(text)
		n := len(runes)
		start, index := 0, 0

		for {
			end := start + c.maxSize
			if end >= n {
				end = n
			} else {
				end = c.cutPoint(runes, start, end)
			}

			chunk := models.Chunk{
				Index: index,
				Text:  string(runes[start:end]),
				Start: start,
				End:   end,
			}
			if !yield(chunk) || end == n {
				return
			}

			start = end - c.overlap
			index++
		}
	}
}

// cutPoint picks the end of the chunk starting at start. The cut must leave
// the next chunk starting after start, so it is searched in (floor, limit].
func (c *Chunker) cutPoint(runes []rune, start, limit int) int {
	floor := start + max(c.overlap+1, c.maxSize/2)
	if floor >= limit {
		return limit
	}

	breaks := []func(p int) bool{
		// paragraph
		func(p int) bool { return runes[p-1] == '\n' && runes[p-2] == '\n' },
		// line
		func(p int) bool { return runes[p-1] == '\n' },
		// sentence
		func(p int) bool { return unicode.IsSpace(runes[p-1]) && strings.ContainsRune(".!?", runes[p-2]) },
		// word
		func(p int) bool { return unicode.IsSpace(runes[p-1]) },
	}

	for _, isBreak := range breaks {
		for p := limit; p > floor; p-- {
			if p >= 2 && isBreak(p) {
				return p
			}
		}
	}

	return limit
}
