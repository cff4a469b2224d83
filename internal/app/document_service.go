package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/lucansdev/project-ai-document/internal/ai"
	"github.com/lucansdev/project-ai-document/internal/model"
	"github.com/lucansdev/project-ai-document/internal/pkg/pdfextract"
	"github.com/lucansdev/project-ai-document/internal/repository"
)

const (
	defaultChunkSize    = 500
	defaultChunkOverlap = 50
	embeddingBatchSize  = 10 // most providers cap batch input size
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrUnsupportedType  = errors.New("unsupported document type")
	ErrAlreadyProcessed = errors.New("document already processed")
	ErrDocumentEmpty    = errors.New("document has no extractable text")
)

// FileStore abstracts where uploaded files live.
type FileStore interface {
	Save(userID uint, originalName string, r io.Reader) (string, error)
	Open(path string) (io.ReadCloser, error)
	Remove(path string) error
}

// Embedder turns text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// NewAIEmbedder binds the OpenAI-compatible client to a fixed embedding config.
func NewAIEmbedder(client *ai.Client, cfg ai.EmbeddingConfig) Embedder {
	return &aiEmbedder{client: client, cfg: cfg}
}

type aiEmbedder struct {
	client *ai.Client
	cfg    ai.EmbeddingConfig
}

func (e *aiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.cfg, text)
}

func (e *aiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.client.EmbedBatch(ctx, e.cfg, texts)
}

type DocumentService struct {
	docRepo      *repository.DocumentRepository
	chunkRepo    *repository.ChunkRepository
	store        FileStore
	embedder     Embedder
	chunkSize    int
	chunkOverlap int
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	store FileStore,
	embedder Embedder,
	chunkSize, chunkOverlap int,
) *DocumentService {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	return &DocumentService{
		docRepo:      docRepo,
		chunkRepo:    chunkRepo,
		store:        store,
		embedder:     embedder,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

type UploadInput struct {
	UserID   uint
	FileName string
	Reader   io.Reader
}

// Upload stores the file and registers the document as unprocessed.
func (s *DocumentService) Upload(input UploadInput) (*model.Document, error) {
	if input.UserID == 0 || input.Reader == nil {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(input.FileName)
	if name == "" {
		return nil, ErrInvalidInput
	}

	docType := documentTypeOf(name)
	if docType == "" {
		return nil, ErrUnsupportedType
	}

	path, err := s.store.Save(input.UserID, name, input.Reader)
	if err != nil {
		return nil, err
	}

	userID := input.UserID
	doc := &model.Document{
		UserID:       &userID,
		DocumentName: name,
		DocumentType: docType,
		FilePath:     path,
	}
	if err := s.docRepo.Create(doc); err != nil {
		_ = s.store.Remove(path)
		return nil, err
	}
	return doc, nil
}

type ProcessResult struct {
	Document   model.Document `json:"document"`
	ChunkCount int            `json:"chunk_count"`
}

// Process extracts the document's text, chunks and embeds it, and flips the
// processed flag. A document is processed at most once; a second call is
// rejected.
func (s *DocumentService) Process(ctx context.Context, userID, documentID uint) (*ProcessResult, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}

	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.Processed {
		return nil, ErrAlreadyProcessed
	}

	text, err := s.extractText(doc)
	if err != nil {
		return nil, err
	}
	chunks := chunkText(text, s.chunkSize, s.chunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrDocumentEmpty
	}

	// Call the embedding API in batches to stay under provider limits.
	var embeddings [][]float32
	for i := 0; i < len(chunks); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batched, err := s.embedder.EmbedBatch(ctx, chunks[i:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batched...)
	}
	if len(embeddings) != len(chunks) {
		return nil, errors.New("embedding count mismatch")
	}

	docChunks := make([]model.DocumentChunk, len(chunks))
	for i := range chunks {
		docChunks[i] = model.DocumentChunk{
			DocumentID: doc.ID,
			Content:    chunks[i],
		}
		docChunks[i].SetEmbedding(embeddings[i])
	}
	if err := s.chunkRepo.CreateBatch(docChunks); err != nil {
		return nil, err
	}

	vectorStoreID := fmt.Sprintf("user_%d/doc_%d", userID, doc.ID)
	if err := s.docRepo.MarkProcessed(doc.ID, vectorStoreID); err != nil {
		return nil, err
	}
	doc.Processed = true
	doc.VectorStoreID = &vectorStoreID

	logrus.Infof("document %d processed into %d chunks", doc.ID, len(docChunks))
	return &ProcessResult{
		Document:   *doc,
		ChunkCount: len(docChunks),
	}, nil
}

func (s *DocumentService) List(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(userID)
}

func (s *DocumentService) Get(userID, documentID uint) (*model.Document, error) {
	if userID == 0 || documentID == 0 {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes the document's chunks, stored file, and row, in that order.
func (s *DocumentService) Delete(userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.chunkRepo.DeleteByDocumentID(doc.ID); err != nil {
		return err
	}
	if err := s.store.Remove(doc.FilePath); err != nil {
		logrus.Warnf("remove stored file for document %d failed: %v", doc.ID, err)
	}
	return s.docRepo.DeleteByIDAndUserID(doc.ID, userID)
}

func (s *DocumentService) extractText(doc *model.Document) (string, error) {
	f, err := s.store.Open(doc.FilePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	switch doc.DocumentType {
	case "pdf":
		return pdfextract.ExtractText(f)
	case "txt":
		raw, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("read text file failed: %w", err)
		}
		return string(raw), nil
	default:
		return "", ErrUnsupportedType
	}
}

func documentTypeOf(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "pdf"
	case strings.HasSuffix(lower, ".txt"):
		return "txt"
	default:
		return ""
	}
}

// chunkText splits text into overlapping chunks by rune count.
func chunkText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		i += size - overlap
		if i >= len(runes) {
			break
		}
	}
	return chunks
}
