package model

import (
	"encoding/json"
	"time"
)

// DocumentChunk stores one text chunk of a processed document and its
// embedding. Embedding is stored as a JSON array of float32 for portability
// across database drivers.
type DocumentChunk struct {
	ID         uint      `gorm:"column:chunk_id;primaryKey" json:"chunk_id"`
	DocumentID uint      `gorm:"column:document_id;not null;index" json:"document_id"`
	Content    string    `gorm:"column:content;type:text;not null" json:"content"`
	Embedding  string    `gorm:"column:embedding;type:text" json:"-"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (DocumentChunk) TableName() string { return "document_chunks" }

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *DocumentChunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *DocumentChunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
