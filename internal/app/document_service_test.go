package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/lucansdev/project-ai-document/internal/model"
	"github.com/lucansdev/project-ai-document/internal/repository"
	"github.com/lucansdev/project-ai-document/internal/storage"
)

func newDocumentService(t *testing.T) (*DocumentService, *gorm.DB, uint) {
	t.Helper()
	db := setupTestDB(t)

	user := &model.User{Username: "owner", Email: "owner@example.com", PasswordHash: "hashed"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	svc := NewDocumentService(
		repository.NewDocumentRepository(db),
		repository.NewChunkRepository(db),
		storage.NewLocalStore(t.TempDir()),
		&fakeEmbedder{},
		20, // small chunks keep fixtures short
		5,
	)
	return svc, db, user.ID
}

func TestUploadRegistersUnprocessedDocument(t *testing.T) {
	svc, db, userID := newDocumentService(t)

	doc, err := svc.Upload(UploadInput{
		UserID:   userID,
		FileName: "notes.txt",
		Reader:   strings.NewReader("hello world"),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if doc.Processed {
		t.Fatal("uploaded document must start unprocessed")
	}
	if doc.DocumentType != "txt" {
		t.Fatalf("document_type = %q, want txt", doc.DocumentType)
	}
	if doc.VectorStoreID != nil {
		t.Fatal("vector_store_id must be empty before processing")
	}
	if _, err := os.Stat(doc.FilePath); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	var stored model.Document
	if err := db.First(&stored, doc.ID).Error; err != nil {
		t.Fatalf("load stored document failed: %v", err)
	}
	if stored.Processed {
		t.Fatal("persisted document must start unprocessed")
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	svc, _, userID := newDocumentService(t)

	_, err := svc.Upload(UploadInput{
		UserID:   userID,
		FileName: "macro.xlsx",
		Reader:   strings.NewReader("binary"),
	})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestProcessFlipsProcessedExactlyOnce(t *testing.T) {
	svc, db, userID := newDocumentService(t)
	ctx := context.Background()

	doc, err := svc.Upload(UploadInput{
		UserID:   userID,
		FileName: "notes.txt",
		Reader:   strings.NewReader(strings.Repeat("all work and no play ", 10)),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	result, err := svc.Process(ctx, userID, doc.ID)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if !result.Document.Processed {
		t.Fatal("expected processed=true after processing")
	}
	wantStore := fmt.Sprintf("user_%d/doc_%d", userID, doc.ID)
	if result.Document.VectorStoreID == nil || *result.Document.VectorStoreID != wantStore {
		t.Fatalf("vector_store_id = %v, want %s", result.Document.VectorStoreID, wantStore)
	}
	if result.ChunkCount == 0 {
		t.Fatal("expected at least one chunk")
	}

	var chunkCount int64
	if err := db.Model(&model.DocumentChunk{}).Where("document_id = ?", doc.ID).Count(&chunkCount).Error; err != nil {
		t.Fatalf("count chunks failed: %v", err)
	}
	if int(chunkCount) != result.ChunkCount {
		t.Fatalf("persisted chunks = %d, want %d", chunkCount, result.ChunkCount)
	}

	// The false->true transition happens once; a second trigger is rejected.
	_, err = svc.Process(ctx, userID, doc.ID)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("err = %v, want ErrAlreadyProcessed", err)
	}
}

func TestProcessMissingDocument(t *testing.T) {
	svc, _, userID := newDocumentService(t)

	_, err := svc.Process(context.Background(), userID, 404)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestDeleteRemovesChunksAndFile(t *testing.T) {
	svc, db, userID := newDocumentService(t)
	ctx := context.Background()

	doc, err := svc.Upload(UploadInput{
		UserID:   userID,
		FileName: "notes.txt",
		Reader:   strings.NewReader(strings.Repeat("searchable text ", 8)),
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if _, err := svc.Process(ctx, userID, doc.ID); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if err := svc.Delete(userID, doc.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	var chunkCount int64
	if err := db.Model(&model.DocumentChunk{}).Where("document_id = ?", doc.ID).Count(&chunkCount).Error; err != nil {
		t.Fatalf("count chunks failed: %v", err)
	}
	if chunkCount != 0 {
		t.Fatalf("chunks remaining = %d, want 0", chunkCount)
	}
	if _, err := os.Stat(doc.FilePath); !os.IsNotExist(err) {
		t.Fatal("expected stored file to be removed")
	}
}

func TestChunkText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		b.WriteRune(rune('a' + i%26))
	}
	chunks := chunkText(b.String(), 50, 10)
	if len(chunks) != 3 {
		t.Fatalf("chunk count = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 50 {
		t.Fatalf("first chunk len = %d, want 50", len(chunks[0]))
	}
	// Consecutive chunks share the overlap region.
	if chunks[0][40:] != chunks[1][:10] {
		t.Fatal("expected 10-rune overlap between chunks")
	}

	if got := chunkText("   ", 50, 10); got != nil {
		t.Fatalf("blank text chunks = %v, want nil", got)
	}

	short := chunkText("tiny", 50, 10)
	if len(short) != 1 || short[0] != "tiny" {
		t.Fatalf("short text chunks = %v, want [tiny]", short)
	}
}
