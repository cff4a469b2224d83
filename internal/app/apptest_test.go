package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/lucansdev/project-ai-document/internal/model"
	"github.com/lucansdev/project-ai-document/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_pragma=foreign_keys(1)"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test database failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Conversation{},
		&model.Message{},
		&model.DocumentChunk{},
	); err != nil {
		t.Fatalf("migrate test database failed: %v", err)
	}
	return db
}

// fakeEmbedder returns deterministic vectors so similarity ranking is
// predictable: each text embeds to a one-hot-ish vector keyed by a seed map,
// falling back to a constant vector.
type fakeEmbedder struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// syncPublisher persists published messages immediately, standing in for the
// rabbitmq publisher plus persist worker pair.
type syncPublisher struct {
	repo   *repository.MessageRepository
	failed bool
}

func (p *syncPublisher) Publish(ctx context.Context, msg model.Message) error {
	if p.failed {
		return fmt.Errorf("broker unavailable")
	}
	return p.repo.Create(&msg)
}
