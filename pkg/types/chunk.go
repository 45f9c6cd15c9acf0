package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
)

// SourceType represents the kind of source a chunk was produced from
type SourceType string

const (
	SourceMarkdown SourceType = "markdown"
	SourceText     SourceType = "text"
	SourceCode     SourceType = "code"
)

// chunkIDLen is the number of hex characters kept from the SHA-256 digest
const chunkIDLen = 32

// ChunkMetadata describes where a chunk came from
type ChunkMetadata struct {
	Collection  string
	SourcePath  string // Normalized, used as the dedup and caps grouping key
	SourceType  SourceType
	SectionPath string // Optional, finer-grained dedup key
	ContentHash string // Hex SHA-256 of Text
	Sequence    int    // Position of the chunk within its source
}

// Chunk is a unit of retrievable text with attached metadata.
// Chunks are immutable once produced.
type Chunk struct {
	ID       string
	Text     string
	Metadata ChunkMetadata
}

// NewChunk builds a chunk with normalized metadata, a computed content hash and
// a content-addressed ID.
func NewChunk(collection, sourcePath string, sourceType SourceType, sectionPath string, sequence int, text string) Chunk {
	c := Chunk{
		Text: text,
		Metadata: ChunkMetadata{
			Collection:  collection,
			SourcePath:  NormalizePath(sourcePath),
			SourceType:  sourceType,
			SectionPath: sectionPath,
			Sequence:    sequence,
		},
	}
	c.Metadata.ContentHash = ContentHash(text)
	c.ID = ComputeChunkID(c.Metadata)
	return c
}

// ContentHash computes the hex SHA-256 hash of chunk text
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ComputeChunkID derives the chunk identity from collection, path, section,
// sequence and content hash. Re-ingesting unchanged content yields the same ID.
func ComputeChunkID(m ChunkMetadata) string {
	h := sha256.New()
	for _, part := range []string{
		m.Collection,
		NormalizePath(m.SourcePath),
		m.SectionPath,
		strconv.Itoa(m.Sequence),
		m.ContentHash,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:chunkIDLen]
}

// ValidateSourceType checks if the source type is valid
func (c *Chunk) ValidateSourceType() error {
	switch c.Metadata.SourceType {
	case SourceMarkdown, SourceText, SourceCode:
		return nil
	default:
		return errors.New("invalid source type")
	}
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrEmptyChunkID
	}

	if c.Text == "" {
		return ErrEmptyContent
	}

	if c.Metadata.Collection == "" {
		return ErrMissingCollection
	}

	if c.Metadata.SourcePath == "" {
		return ErrMissingSourcePath
	}

	return c.ValidateSourceType()
}

// DedupKey is the (sourcePath, sectionPath) pair used for section-level dedup
type DedupKey struct {
	SourcePath  string
	SectionPath string
}

// Key returns the section-level dedup key for the chunk
func (c *Chunk) Key() DedupKey {
	return DedupKey{SourcePath: c.Metadata.SourcePath, SectionPath: c.Metadata.SectionPath}
}

// Citation returns "path" or "path#section" for display and evaluation matching
func (c *Chunk) Citation() string {
	if c.Metadata.SectionPath == "" {
		return c.Metadata.SourcePath
	}
	return c.Metadata.SourcePath + "#" + c.Metadata.SectionPath
}
