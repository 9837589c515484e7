package matcher

// ChunkConfig configures how content is split for parallel scanning.
type ChunkConfig struct {
	MaxChunkSize int // bytes owned by each chunk (default: 1MB)
	Overlap      int // bytes shared with the following chunk
}

// DefaultChunkConfig returns production defaults. The matcher raises Overlap
// to the longest literal minus one.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize: 1 << 20,
	}
}

// Chunk is a window of the original content.
type Chunk struct {
	Content     []byte // content[StartOffset:EndOffset]
	StartOffset int    // offset of Content in the original
	EndOffset   int    // end of Content in the original
	OwnedEnd    int    // matches starting at or past this belong to the next chunk
	Index       int
}

// ChunkContent splits content into chunks of MaxChunkSize bytes, each
// extended by Overlap bytes into the next. A match no longer than
// Overlap+1 bytes lies entirely inside the chunk that owns its start.
// Content that fits in one chunk is returned as a single chunk.
func ChunkContent(content []byte, config ChunkConfig) []Chunk {
	size := config.MaxChunkSize
	if size <= 0 || len(content) <= size {
		return []Chunk{{
			Content:   content,
			EndOffset: len(content),
			OwnedEnd:  len(content),
		}}
	}

	overlap := max(config.Overlap, 0)
	chunks := make([]Chunk, 0, (len(content)+size-1)/size)
	for start := 0; start < len(content); start += size {
		owned := min(start+size, len(content))
		end := min(owned+overlap, len(content))
		chunks = append(chunks, Chunk{
			Content:     content[start:end],
			StartOffset: start,
			EndOffset:   end,
			OwnedEnd:    owned,
			Index:       len(chunks),
		})
	}
	return chunks
}

// Owns reports whether a match starting at chunk-relative offset rel
// belongs to this chunk.
func (c Chunk) Owns(rel int) bool {
	return c.StartOffset+rel < c.OwnedEnd
}
