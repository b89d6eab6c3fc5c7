package models

import "github.com/google/uuid"

// WebSocket message types
const (
	WSHistoryUpdated = "history_updated"
	WSChatDeleted    = "chat_deleted"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type HistoryUpdate struct {
	ChatID uuid.UUID `json:"chat_id"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
