package indexer

// Chunk represents a contiguous run of words from a memory's content.
type Chunk struct {
	Index    int    // Chunk index within the memory (starts at 0)
	Content  string // Words of the chunk joined by single spaces
	StartPos int    // Byte offset of the first word in the source content
	EndPos   int    // Byte offset just past the last word
}
