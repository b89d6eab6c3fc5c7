package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chatbridge/internal/logger"
	"chatbridge/internal/middleware"
	"chatbridge/internal/models"
	"chatbridge/internal/services"
)

var log = logger.Get("chat-api")

type chatService interface {
	Send(ctx context.Context, userID uuid.UUID, req models.SendChatRequest) (*models.SendChatResponse, error)
	Delete(ctx context.Context, userID, chatID uuid.UUID) error
	History(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Chat, error)
	Messages(ctx context.Context, userID, chatID uuid.UUID) (*models.Chat, []services.MessageView, error)
	DeleteTrailingMessages(ctx context.Context, userID, messageID uuid.UUID) (int64, error)
	UpdateVisibility(ctx context.Context, userID, chatID uuid.UUID, visibility string) error
	Votes(ctx context.Context, userID, chatID uuid.UUID) ([]*models.Vote, error)
	Vote(ctx context.Context, userID uuid.UUID, req models.VoteRequest) error
}

type ChatHandler struct {
	chatService chatService
}

func NewChatHandler(chatService chatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SendChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("Invalid chat request body", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	resp, err := h.chatService.Send(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// RequireChatID answers 404 for a missing or malformed ?id= before the
// session is checked.
func RequireChatID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := uuid.Parse(r.URL.Query().Get("id")); err != nil {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat not found", r))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	chatID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Chat not found", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.chatService.Delete(r.Context(), userID, chatID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat deleted"})
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	userID := middleware.GetUserID(r.Context())
	chats, err := h.chatService.History(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	chatID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid chat ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	chat, msgs, err := h.chatService.Messages(r.Context(), userID, chatID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"chat":     chat,
		"messages": msgs,
	})
}

func (h *ChatHandler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	chatID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid chat ID", r))
		return
	}

	var req models.VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.chatService.UpdateVisibility(r.Context(), userID, chatID, req.Visibility); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Visibility updated"})
}

// DeleteTrailing removes a message and everything after it, used when the
// user edits an earlier turn.
func (h *ChatHandler) DeleteTrailing(w http.ResponseWriter, r *http.Request) {
	messageID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid message ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	n, err := h.chatService.DeleteTrailingMessages(r.Context(), userID, messageID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

func (h *ChatHandler) Votes(w http.ResponseWriter, r *http.Request) {
	chatID, err := uuid.Parse(r.URL.Query().Get("chatId"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "chatId is required", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	votes, err := h.chatService.Votes(r.Context(), userID, chatID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, votes)
}

func (h *ChatHandler) Vote(w http.ResponseWriter, r *http.Request) {
	var req models.VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.ChatID == uuid.Nil || req.MessageID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "chatId and messageId are required", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.chatService.Vote(r.Context(), userID, req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Message voted"})
}
