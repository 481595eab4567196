package models

// Document is one uploaded file. It only lives for the duration of an upload.
type Document struct {
	Name    string
	Content []byte
}

// Chunk is a contiguous slice of the extracted text. Start and End are rune
// offsets into the text the chunk was cut from.
type Chunk struct {
	Index int
	Text  string
	Start int
	End   int
}

type ScoredChunk struct {
	Chunk
	Score float64
}
