package storage

import "time"

// VaultRecord represents a vault row. The vault key is only ever stored
// wrapped (EncryptedKey) under a key derived from the master password.
type VaultRecord struct {
	ID                string
	Name              string
	Description       string // Empty when unset
	EncryptionEnabled bool
	PasswordHash      string // Argon2id PHC string
	KeySalt           []byte // Salt for the key-encryption key
	KeyParams         string // Argon2id cost of the key-encryption key, "m=..,t=..,p=.."
	EncryptedKey      []byte // nonce || AES-GCM(vault key)
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Credentials are the password-dependent columns of a vault row. They change
// together when the master password changes.
type Credentials struct {
	PasswordHash string
	KeySalt      []byte
	KeyParams    string
	EncryptedKey []byte
}

// NewMemory is one memory of a CreateBatch call with its tags and chunks.
type NewMemory struct {
	Memory *MemoryRecord
	Tags   []string
	Chunks []ChunkRecord
}

// MemoryRecord represents a user-authored memory.
type MemoryRecord struct {
	ID        string // UUID
	VaultID   string // Foreign key to vaults.id
	Title     string // Empty when unset
	Content   string
	Source    string // Empty when unset
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChunkRecord represents a contiguous slice of a memory's content.
type ChunkRecord struct {
	ID         string // UUID
	MemoryID   string // Foreign key to memories.id
	ChunkIndex int    // Position within the memory (starts at 0)
	Content    string
	StartPos   int // Byte offset of the first token in the memory content
	EndPos     int // Byte offset just past the last token
	CreatedAt  time.Time
}

// TagRecord represents a tag shared between memories.
type TagRecord struct {
	ID        string
	Name      string
	Color     string
	CreatedAt time.Time
}

// TagUsage is a tag with the number of memories in one vault linked to it.
type TagUsage struct {
	TagRecord
	Count int
}

// TagCount is a tag name with the number of memories linked to it.
type TagCount struct {
	Name  string
	Count int
}

// EmbeddingRecord stores a chunk's vector as little-endian float32 bytes.
type EmbeddingRecord struct {
	ID        string
	ChunkID   string
	Vector    []byte
	ModelName string
	CreatedAt time.Time
}

// CitationRecord links a query result back to the chunk that supported it.
type CitationRecord struct {
	ID             string
	MemoryID       string
	ChunkID        string
	RelevanceScore float64
	CreatedAt      time.Time
}

// CitationDetail is a citation joined with its memory and chunk for display.
type CitationDetail struct {
	CitationRecord
	Title        string
	Source       string
	ChunkContent string
}

// ChunkMatch is a chunk returned by a lexical match, with its memory context.
type ChunkMatch struct {
	MemoryID string
	Title    string
	Source   string
	ChunkID  string
	Content  string
	StartPos int
	EndPos   int
}
