package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/lucansdev/project-ai-document/internal/ai"
	"github.com/lucansdev/project-ai-document/internal/model"
	"github.com/lucansdev/project-ai-document/internal/repository"
)

type chatFixture struct {
	svc       *ChatService
	db        *gorm.DB
	userID    uint
	publisher *syncPublisher
	embedder  *fakeEmbedder
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := setupTestDB(t)

	user := &model.User{Username: "chatter", Email: "chatter@example.com", PasswordHash: "hashed"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	messageRepo := repository.NewMessageRepository(db)
	publisher := &syncPublisher{repo: messageRepo}
	embedder := &fakeEmbedder{vectors: map[string][]float32{}}

	svc := NewChatService(
		repository.NewConversationRepository(db),
		messageRepo,
		repository.NewDocumentRepository(db),
		repository.NewChunkRepository(db),
		publisher,
		nil, // history cache is optional; redis is not part of these tests
		nil, // llm client untouched by the paths under test
		embedder,
		ai.ChatConfig{},
		2,
	)
	return &chatFixture{svc: svc, db: db, userID: user.ID, publisher: publisher, embedder: embedder}
}

func (f *chatFixture) conversation(t *testing.T) *model.Conversation {
	t.Helper()
	conversation, err := f.svc.CreateConversation(CreateConversationInput{UserID: f.userID})
	if err != nil {
		t.Fatalf("create conversation failed: %v", err)
	}
	return conversation
}

// processedDocument seeds a processed document with pre-embedded chunks.
func (f *chatFixture) processedDocument(t *testing.T, name string, chunks map[string][]float32) *model.Document {
	t.Helper()
	storeID := "user_test/doc_" + name
	doc := &model.Document{
		UserID:        &f.userID,
		DocumentName:  name,
		DocumentType:  "txt",
		FilePath:      "uploads/" + name,
		Processed:     true,
		VectorStoreID: &storeID,
	}
	if err := f.db.Create(doc).Error; err != nil {
		t.Fatalf("seed document failed: %v", err)
	}
	for content, vec := range chunks {
		chunk := model.DocumentChunk{DocumentID: doc.ID, Content: content}
		chunk.SetEmbedding(vec)
		if err := f.db.Create(&chunk).Error; err != nil {
			t.Fatalf("seed chunk failed: %v", err)
		}
	}
	return doc
}

func TestCreateConversationDefaultTitle(t *testing.T) {
	f := newChatFixture(t)

	conversation := f.conversation(t)
	if conversation.Title == nil || *conversation.Title != "New conversation" {
		t.Fatalf("title = %v, want default", conversation.Title)
	}

	named, err := f.svc.CreateConversation(CreateConversationInput{UserID: f.userID, Title: "  Project notes  "})
	if err != nil {
		t.Fatalf("create conversation failed: %v", err)
	}
	if named.Title == nil || *named.Title != "Project notes" {
		t.Fatalf("title = %v, want trimmed input", named.Title)
	}
}

func TestGetHistoryOrdersByTimestamp(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.conversation(t)

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, content := range []string{"q1", "a1", "q2"} {
		msg := &model.Message{
			ConversationID: &conversation.ID,
			IsUser:         i%2 == 0,
			Content:        content,
			Timestamp:      base.Add(time.Duration(i) * time.Second),
		}
		if err := f.db.Create(msg).Error; err != nil {
			t.Fatalf("seed message failed: %v", err)
		}
	}

	history, err := f.svc.GetHistory(f.userID, conversation.ID, 0)
	if err != nil {
		t.Fatalf("get history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history len = %d, want 3", len(history))
	}
	if history[0].Content != "q1" || history[2].Content != "q2" {
		t.Fatalf("history out of order: %q .. %q", history[0].Content, history[2].Content)
	}
}

func TestGetHistoryUnknownConversation(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.GetHistory(f.userID, 999, 0)
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("err = %v, want ErrConversationNotFound", err)
	}
}

func TestDeleteConversationRemovesMessages(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.conversation(t)

	msg := &model.Message{ConversationID: &conversation.ID, IsUser: true, Content: "bye"}
	if err := f.db.Create(msg).Error; err != nil {
		t.Fatalf("seed message failed: %v", err)
	}

	if err := f.svc.DeleteConversation(f.userID, conversation.ID); err != nil {
		t.Fatalf("delete conversation failed: %v", err)
	}

	var messageCount int64
	if err := f.db.Model(&model.Message{}).Where("conversation_id = ?", conversation.ID).Count(&messageCount).Error; err != nil {
		t.Fatalf("count messages failed: %v", err)
	}
	if messageCount != 0 {
		t.Fatalf("messages remaining = %d, want 0", messageCount)
	}
}

func TestRetrieveRanksByCosineSimilarity(t *testing.T) {
	f := newChatFixture(t)
	f.embedder.vectors["what is the capital?"] = []float32{1, 0, 0}

	f.processedDocument(t, "geo.txt", map[string][]float32{
		"the capital is Lisbon": {0.9, 0.1, 0},
		"rainfall statistics":   {0, 1, 0},
		"population figures":    {0, 0, 1},
	})

	sources, err := f.svc.retrieve(context.Background(), f.userID, "what is the capital?")
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("sources len = %d, want top_k=2", len(sources))
	}
	if sources[0].Content != "the capital is Lisbon" {
		t.Fatalf("top source = %q, want best match first", sources[0].Content)
	}
	if sources[0].Score <= sources[1].Score {
		t.Fatalf("scores not descending: %v then %v", sources[0].Score, sources[1].Score)
	}
}

func TestRetrieveWithoutProcessedDocuments(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.svc.retrieve(context.Background(), f.userID, "anything")
	if !errors.Is(err, ErrNoProcessedDocuments) {
		t.Fatalf("err = %v, want ErrNoProcessedDocuments", err)
	}
}

func TestPrepareTurnPersistsUserMessage(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.conversation(t)
	f.processedDocument(t, "doc.txt", map[string][]float32{
		"relevant passage": {1, 0, 0},
	})

	userMsg, prompt, sources, err := f.svc.prepareTurn(context.Background(), SendMessageInput{
		UserID:         f.userID,
		ConversationID: conversation.ID,
		Content:        "  tell me things  ",
	})
	if err != nil {
		t.Fatalf("prepare turn failed: %v", err)
	}
	if !userMsg.IsUser {
		t.Fatal("expected user turn to be flagged is_user")
	}
	if userMsg.Content != "tell me things" {
		t.Fatalf("content = %q, want trimmed", userMsg.Content)
	}
	if len(sources) == 0 {
		t.Fatal("expected at least one retrieved source")
	}
	if prompt[0].Role != "system" {
		t.Fatalf("prompt[0].Role = %q, want system", prompt[0].Role)
	}
	last := prompt[len(prompt)-1]
	if last.Role != "user" {
		t.Fatalf("last prompt role = %q, want user", last.Role)
	}

	var persisted int64
	if err := f.db.Model(&model.Message{}).Where("conversation_id = ?", conversation.ID).Count(&persisted).Error; err != nil {
		t.Fatalf("count messages failed: %v", err)
	}
	if persisted != 1 {
		t.Fatalf("persisted messages = %d, want 1", persisted)
	}
}

func TestPrepareTurnPublishFailure(t *testing.T) {
	f := newChatFixture(t)
	conversation := f.conversation(t)
	f.processedDocument(t, "doc.txt", map[string][]float32{
		"relevant passage": {1, 0, 0},
	})
	f.publisher.failed = true

	_, _, _, err := f.svc.prepareTurn(context.Background(), SendMessageInput{
		UserID:         f.userID,
		ConversationID: conversation.ID,
		Content:        "hello",
	})
	if !errors.Is(err, ErrMessageEnqueue) {
		t.Fatalf("err = %v, want ErrMessageEnqueue", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors similarity = %v, want ~1", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors similarity = %v, want 0", got)
	}
	if got := cosineSimilarity(nil, []float32{1}); got != 0 {
		t.Fatalf("mismatched vectors similarity = %v, want 0", got)
	}
}
