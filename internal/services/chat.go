package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"chatbridge/internal/logger"
	"chatbridge/internal/models"
	"chatbridge/internal/render"
	"chatbridge/internal/repository"
)

const (
	DefaultChatTitle = "New Chat"
	maxTitleLength   = 80

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type chatStore interface {
	Create(ctx context.Context, chat *models.Chat) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Chat, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Chat, error)
	UpdateVisibility(ctx context.Context, id uuid.UUID, visibility string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type messageStore interface {
	Save(ctx context.Context, messages ...*models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]*models.Message, error)
	DeleteFrom(ctx context.Context, chatID uuid.UUID, ts time.Time) (int64, error)
}

type voteStore interface {
	ListByChat(ctx context.Context, chatID uuid.UUID) ([]*models.Vote, error)
	Upsert(ctx context.Context, v *models.Vote) error
}

// Replier produces the assistant text for a conversation. It does not fail;
// upstream problems come back as an apology message.
type Replier interface {
	Reply(ctx context.Context, selectedModel string, history []models.IncomingMessage) string
}

type updatePublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

type ChatService struct {
	chats     chatStore
	messages  messageStore
	votes     voteStore
	replier   Replier
	publisher updatePublisher
	now       func() time.Time
	log       *logger.Logger
}

func NewChatService(chats chatStore, messages messageStore, votes voteStore, replier Replier, publisher updatePublisher) *ChatService {
	return &ChatService{
		chats:     chats,
		messages:  messages,
		votes:     votes,
		replier:   replier,
		publisher: publisher,
		now:       time.Now,
		log:       logger.Get("chat-api"),
	}
}

// MessageView is a stored message plus its display form.
type MessageView struct {
	*models.Message
	Rendered render.Rendered `json:"rendered"`
}

// MostRecentUserMessage returns the last message with role "user", or nil.
func MostRecentUserMessage(messages []models.IncomingMessage) *models.IncomingMessage {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == models.RoleUser {
			return &messages[i]
		}
	}
	return nil
}

// TitleFromMessage uses the first part of the message, cut to 80 characters.
func TitleFromMessage(msg models.IncomingMessage) string {
	parts := msg.ContentParts()
	title := ""
	if len(parts) > 0 {
		title = parts[0].Text
	}
	if title == "" {
		return DefaultChatTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength])
	}
	return title
}

// Send runs one chat turn: store the user's message, ask the completion
// service, store and return the assistant's reply.
func (s *ChatService) Send(ctx context.Context, userID uuid.UUID, req models.SendChatRequest) (*models.SendChatResponse, error) {
	log := s.log.Group(req.ID.String())
	defer log.End()

	log.Info("Received request", "chat_id", req.ID, "model", req.SelectedChatModel, "messages", len(req.Messages))

	if req.ID == uuid.Nil {
		return nil, validationMessage("id", "Chat id is required")
	}

	userMsg := MostRecentUserMessage(req.Messages)
	if userMsg == nil {
		log.Warn("No user message found in request", "chat_id", req.ID)
		return nil, validationMessage("messages", "No user message found")
	}

	userMsgID, err := uuid.Parse(userMsg.ID)
	if err != nil {
		return nil, validationMessage("messages", "User message id must be a UUID")
	}

	chat, err := s.ensureChat(ctx, userID, req.ID, *userMsg)
	if err != nil {
		return nil, err
	}

	log.Debug("Saving user message to database", "chat_id", chat.ID, "message_id", userMsgID)
	if err := s.messages.Save(ctx, &models.Message{
		ID:          userMsgID,
		ChatID:      chat.ID,
		Role:        models.RoleUser,
		Parts:       userMsg.ContentParts(),
		Attachments: userMsg.Attachments,
		CreatedAt:   s.now(),
	}); err != nil {
		if errors.Is(err, repository.ErrMessageIDConflict) {
			log.Warn("Message id already used by another chat", "chat_id", chat.ID, "message_id", userMsgID)
			return nil, &ConflictError{Message: "Message id already belongs to another chat"}
		}
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	log.Info("Getting response from external API", "chat_id", chat.ID)
	reply := s.replier.Reply(ctx, req.SelectedChatModel, req.Messages)

	assistant := &models.Message{
		ID:        uuid.New(),
		ChatID:    chat.ID,
		Role:      models.RoleAssistant,
		Parts:     []models.Part{{Text: reply}},
		CreatedAt: s.now(),
	}

	log.Debug("Saving assistant response to database", "chat_id", chat.ID, "message_id", assistant.ID)
	if err := s.messages.Save(ctx, assistant); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	s.notifyHistory(ctx, userID, chat.ID)

	return &models.SendChatResponse{
		Messages: []models.ReplyMessage{{
			ID:        assistant.ID,
			Role:      assistant.Role,
			Parts:     assistant.Parts,
			CreatedAt: assistant.CreatedAt,
		}},
		ID: assistant.ID,
	}, nil
}

// ensureChat loads the chat or creates it on the first turn.
func (s *ChatService) ensureChat(ctx context.Context, userID, chatID uuid.UUID, first models.IncomingMessage) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err == nil {
		if chat.UserID != userID {
			s.log.Warn("Unauthorized access attempt for chat", "chat_id", chatID, "user_id", userID)
			return nil, &ForbiddenError{Message: "You do not have access to this chat"}
		}
		return chat, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}

	s.log.Info("Creating new chat", "chat_id", chatID)
	chat = &models.Chat{
		ID:         chatID,
		UserID:     userID,
		Title:      TitleFromMessage(first),
		Visibility: models.VisibilityPrivate,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// A concurrent first turn created it; use that row.
			return s.ensureChat(ctx, userID, chatID, first)
		}
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

// ownedChat loads a chat the user must own.
func (s *ChatService) ownedChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Chat not found"}
		}
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if chat.UserID != userID {
		s.log.Warn("Unauthorized access attempt for chat", "chat_id", chatID, "user_id", userID)
		return nil, &ForbiddenError{Message: "You do not have access to this chat"}
	}
	return chat, nil
}

// readableChat loads a chat the user owns or that is public.
func (s *ChatService) readableChat(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Chat not found"}
		}
		return nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if chat.UserID != userID && chat.Visibility != models.VisibilityPublic {
		return nil, &ForbiddenError{Message: "You do not have access to this chat"}
	}
	return chat, nil
}

func (s *ChatService) Delete(ctx context.Context, userID, chatID uuid.UUID) error {
	log := s.log.Group(chatID.String())
	defer log.End()

	log.Info("Processing delete request", "chat_id", chatID)
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}

	if err := s.chats.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	log.Info("Chat deleted", "chat_id", chatID)

	s.publish(ctx, userID, models.WSMessage{
		Type:    models.WSChatDeleted,
		Payload: models.HistoryUpdate{ChatID: chatID},
	})
	return nil
}

func (s *ChatService) History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Chat, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	chats, err := s.chats.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	if chats == nil {
		chats = []*models.Chat{}
	}
	return chats, nil
}

func (s *ChatService) Messages(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, []MessageView, error) {
	chat, err := s.readableChat(ctx, userID, chatID)
	if err != nil {
		return nil, nil, err
	}

	msgs, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list messages: %w", err)
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		rendered, err := render.Message(m.Text())
		if err != nil {
			s.log.Warn("Failed to render message", "message_id", m.ID, "error", err)
			rendered = render.Rendered{}
		}
		views = append(views, MessageView{Message: m, Rendered: rendered})
	}
	return chat, views, nil
}

// DeleteTrailingMessages drops the given message and everything after it in
// its chat. Editing a message resends the conversation from that point.
func (s *ChatService) DeleteTrailingMessages(ctx context.Context, userID, messageID uuid.UUID) (int64, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.log.Error("Message not found", "message_id", messageID)
			return 0, &NotFoundError{Message: "Message not found"}
		}
		return 0, fmt.Errorf("failed to load message: %w", err)
	}

	if _, err := s.ownedChat(ctx, userID, msg.ChatID); err != nil {
		return 0, err
	}

	s.log.Debug("Deleting trailing messages", "message_id", messageID, "chat_id", msg.ChatID)
	n, err := s.messages.DeleteFrom(ctx, msg.ChatID, msg.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trailing messages: %w", err)
	}

	s.notifyHistory(ctx, userID, msg.ChatID)
	return n, nil
}

func (s *ChatService) UpdateVisibility(ctx context.Context, userID, chatID uuid.UUID, visibility string) error {
	if visibility != models.VisibilityPrivate && visibility != models.VisibilityPublic {
		return validationMessage("visibility", "Visibility must be private or public")
	}

	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}

	s.log.Debug("Updating chat visibility", "chat_id", chatID, "visibility", visibility)
	if err := s.chats.UpdateVisibility(ctx, chatID, visibility); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Chat not found"}
		}
		return fmt.Errorf("failed to update visibility: %w", err)
	}
	return nil
}

func (s *ChatService) Votes(ctx context.Context, userID, chatID uuid.UUID) ([]*models.Vote, error) {
	if _, err := s.readableChat(ctx, userID, chatID); err != nil {
		return nil, err
	}
	votes, err := s.votes.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	return votes, nil
}

func (s *ChatService) Vote(ctx context.Context, userID uuid.UUID, req models.VoteRequest) error {
	if req.Type != "up" && req.Type != "down" {
		return validationMessage("type", "Vote type must be up or down")
	}

	if _, err := s.ownedChat(ctx, userID, req.ChatID); err != nil {
		return err
	}

	msg, err := s.messages.GetByID(ctx, req.MessageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &NotFoundError{Message: "Message not found"}
		}
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg.ChatID != req.ChatID {
		return &NotFoundError{Message: "Message not found"}
	}

	return s.votes.Upsert(ctx, &models.Vote{
		ChatID:    req.ChatID,
		MessageID: req.MessageID,
		IsUpvoted: req.Type == "up",
	})
}

func (s *ChatService) notifyHistory(ctx context.Context, userID, chatID uuid.UUID) {
	s.publish(ctx, userID, models.WSMessage{
		Type:    models.WSHistoryUpdated,
		Payload: models.HistoryUpdate{ChatID: chatID},
	})
}

// publish is best effort.
func (s *ChatService) publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, userID, msg); err != nil {
		s.log.Warn("Failed to publish update", "type", msg.Type, "error", err)
	}
}
