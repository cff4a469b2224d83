package app

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lucansdev/project-ai-document/internal/ai"
	"github.com/lucansdev/project-ai-document/internal/model"
	"github.com/lucansdev/project-ai-document/internal/repository"
)

const (
	defaultTopK       = 5
	defaultMaxContext = 20
	defaultTitle      = "New conversation"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageEmpty         = errors.New("message content is empty")
	ErrNoProcessedDocuments = errors.New("no processed documents to search")
	ErrMessageEnqueue       = errors.New("message enqueue failed")
)

// AsyncMessagePublisher hands chat turns to the persist worker.
type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

// HistoryCache keeps recent transcripts close to the handler.
type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, conversationID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, conversationID uint) error
	MarkDirty(ctx context.Context, conversationID uint) error
	IsDirty(ctx context.Context, conversationID uint) (bool, error)
}

type ChatService struct {
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	docRepo          *repository.DocumentRepository
	chunkRepo        *repository.ChunkRepository
	publisher        AsyncMessagePublisher
	historyCache     HistoryCache
	llmClient        *ai.Client
	embedder         Embedder
	chatConfig       ai.ChatConfig
	topK             int
	maxContext       int
}

func NewChatService(
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	llmClient *ai.Client,
	embedder Embedder,
	chatConfig ai.ChatConfig,
	topK int,
) *ChatService {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &ChatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		docRepo:          docRepo,
		chunkRepo:        chunkRepo,
		publisher:        publisher,
		historyCache:     historyCache,
		llmClient:        llmClient,
		embedder:         embedder,
		chatConfig:       chatConfig,
		topK:             topK,
		maxContext:       defaultMaxContext,
	}
}

type CreateConversationInput struct {
	UserID uint
	Title  string
}

func (s *ChatService) CreateConversation(input CreateConversationInput) (*model.Conversation, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultTitle
	}

	userID := input.UserID
	conversation := &model.Conversation{
		UserID: &userID,
		Title:  &title,
	}
	if err := s.conversationRepo.Create(conversation); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *ChatService) ListConversations(userID uint) ([]model.Conversation, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.conversationRepo.ListByUserID(userID)
}

func (s *ChatService) DeleteConversation(userID, conversationID uint) error {
	if userID == 0 || conversationID == 0 {
		return ErrInvalidInput
	}
	conversation, err := s.conversationRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return err
	}
	if conversation == nil {
		return ErrConversationNotFound
	}
	if err := s.messageRepo.DeleteByConversationID(conversationID); err != nil {
		return err
	}
	if err := s.conversationRepo.DeleteByIDAndUserID(conversationID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(context.Background(), conversationID)
	}
	return nil
}

func (s *ChatService) GetHistory(userID, conversationID uint, limit int) ([]model.Message, error) {
	if userID == 0 || conversationID == 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByIDAndUserID(conversationID, userID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, ErrConversationNotFound
	}

	ctx := context.Background()
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, conversationID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, conversationID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListByConversationID(conversationID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, conversationID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, conversationID, messages)
		}
	}
	return messages, nil
}

type SendMessageInput struct {
	UserID         uint
	ConversationID uint
	Content        string
}

type RetrievedChunk struct {
	DocumentID uint    `json:"document_id"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

type SendMessageResult struct {
	Messages []model.Message  `json:"messages"`
	Sources  []RetrievedChunk `json:"sources"`
}

// SendMessage answers a question against the user's processed documents. Both
// the user turn and the assistant turn are enqueued for async persistence.
func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	userMessage, promptMessages, sources, err := s.prepareTurn(ctx, input)
	if err != nil {
		return nil, err
	}

	answer, err := s.llmClient.Complete(ctx, s.chatConfig, promptMessages)
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}

	assistantMessage, err := s.finishTurn(ctx, input, answer)
	if err != nil {
		return nil, err
	}

	return &SendMessageResult{
		Messages: []model.Message{*userMessage, *assistantMessage},
		Sources:  sources,
	}, nil
}

// StreamMessage is SendMessage with SSE chunk delivery.
func (s *ChatService) StreamMessage(
	ctx context.Context,
	input SendMessageInput,
	onChunk func(string) error,
) (string, error) {
	_, promptMessages, _, err := s.prepareTurn(ctx, input)
	if err != nil {
		return "", err
	}

	full, err := s.llmClient.StreamComplete(ctx, s.chatConfig, promptMessages, onChunk)
	if err != nil {
		return "", err
	}
	full = strings.TrimSpace(full)
	if full == "" {
		full = "The model returned an empty response."
	}

	if _, err := s.finishTurn(ctx, input, full); err != nil {
		return "", err
	}
	return full, nil
}

// prepareTurn validates the conversation, enqueues the user message, and
// builds the grounded prompt.
func (s *ChatService) prepareTurn(ctx context.Context, input SendMessageInput) (*model.Message, []ai.ChatMessage, []RetrievedChunk, error) {
	if input.UserID == 0 || input.ConversationID == 0 {
		return nil, nil, nil, ErrInvalidInput
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, nil, nil, ErrMessageEmpty
	}

	conversation, err := s.conversationRepo.GetByIDAndUserID(input.ConversationID, input.UserID)
	if err != nil {
		return nil, nil, nil, err
	}
	if conversation == nil {
		return nil, nil, nil, ErrConversationNotFound
	}

	sources, err := s.retrieve(ctx, input.UserID, content)
	if err != nil {
		return nil, nil, nil, err
	}

	promptMessages, err := s.buildPromptMessages(input.ConversationID, content, sources)
	if err != nil {
		return nil, nil, nil, err
	}

	conversationID := input.ConversationID
	userMessage := &model.Message{
		ConversationID: &conversationID,
		IsUser:         true,
		Content:        content,
		Timestamp:      time.Now(),
	}
	if s.publisher == nil {
		return nil, nil, nil, ErrMessageEnqueue
	}
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, input.ConversationID)
		_ = s.historyCache.DeleteHistory(ctx, input.ConversationID)
	}
	if err := s.publisher.Publish(ctx, *userMessage); err != nil {
		return nil, nil, nil, ErrMessageEnqueue
	}

	return userMessage, promptMessages, sources, nil
}

func (s *ChatService) finishTurn(ctx context.Context, input SendMessageInput, answer string) (*model.Message, error) {
	conversationID := input.ConversationID
	assistantMessage := &model.Message{
		ConversationID: &conversationID,
		IsUser:         false,
		Content:        answer,
		Timestamp:      time.Now(),
	}
	if err := s.publisher.Publish(ctx, *assistantMessage); err != nil {
		return nil, ErrMessageEnqueue
	}
	return assistantMessage, nil
}

// retrieve embeds the question and ranks chunks from the user's processed
// documents by cosine similarity. Documents whose chunk store turns out empty
// are skipped, matching the original's lenient retriever loading.
func (s *ChatService) retrieve(ctx context.Context, userID uint, question string) ([]RetrievedChunk, error) {
	docs, err := s.docRepo.ListProcessedByUserID(userID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoProcessedDocuments
	}

	docIDs := make([]uint, 0, len(docs))
	for _, d := range docs {
		if d.VectorStoreID == nil {
			logrus.Warnf("document %d marked processed but has no vector store, skipping", d.ID)
			continue
		}
		docIDs = append(docIDs, d.ID)
	}
	if len(docIDs) == 0 {
		return nil, ErrNoProcessedDocuments
	}

	chunks, err := s.chunkRepo.ListByDocumentIDs(docIDs)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrNoProcessedDocuments
	}

	queryEmb, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	scored := make([]RetrievedChunk, len(chunks))
	for i := range chunks {
		scored[i] = RetrievedChunk{
			DocumentID: chunks[i].DocumentID,
			Content:    chunks[i].Content,
			Score:      cosineSimilarity(queryEmb, chunks[i].EmbeddingVector()),
		}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > s.topK {
		scored = scored[:s.topK]
	}
	return scored, nil
}

func (s *ChatService) buildPromptMessages(conversationID uint, question string, sources []RetrievedChunk) ([]ai.ChatMessage, error) {
	recent, err := s.messageRepo.ListRecentByConversationID(conversationID, s.maxContext)
	if err != nil {
		return nil, err
	}

	var contextBlock strings.Builder
	for _, c := range sources {
		contextBlock.WriteString("\n---\n")
		contextBlock.WriteString(c.Content)
	}
	if len(sources) > 0 {
		contextBlock.WriteString("\n---")
	}

	messages := make([]ai.ChatMessage, 0, len(recent)+2)
	messages = append(messages, ai.ChatMessage{
		Role: "system",
		Content: "You are a helpful assistant. Answer the user's question based only on the " +
			"provided document context. If the context does not contain enough information, say so. " +
			"Do not make up facts.",
	})
	for _, item := range recent {
		role := "assistant"
		if item.IsUser {
			role = "user"
		}
		messages = append(messages, ai.ChatMessage{
			Role:    role,
			Content: item.Content,
		})
	}
	messages = append(messages, ai.ChatMessage{
		Role:    "user",
		Content: "Context:" + contextBlock.String() + "\n\nQuestion: " + question + "\n\nAnswer:",
	})
	return messages, nil
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
