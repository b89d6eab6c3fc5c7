package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

type Chat struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"userId"`
	Title      string    `json:"title"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Part is one piece of message content. Clients send either a bare string
// or an object with a text field; both decode to a Part.
type Part struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

func (p *Part) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Part{Text: s}
		return nil
	}
	type plain Part
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Part(v)
	return nil
}

// Message is a stored chat row.
type Message struct {
	ID          uuid.UUID       `json:"id"`
	ChatID      uuid.UUID       `json:"chatId"`
	Role        string          `json:"role"`
	Parts       []Part          `json:"parts"`
	Attachments json.RawMessage `json:"attachments"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Text joins the text of every part with a single space.
func (m *Message) Text() string {
	return JoinParts(m.Parts)
}

func JoinParts(parts []Part) string {
	texts := make([]string, len(parts))
	for i, p := range parts {
		texts[i] = p.Text
	}
	return strings.Join(texts, " ")
}

// IncomingMessage is a message as the browser sends it in the chat history.
type IncomingMessage struct {
	ID          string          `json:"id"`
	Role        string          `json:"role"`
	Content     string          `json:"content,omitempty"`
	Parts       []Part          `json:"parts"`
	Attachments json.RawMessage `json:"experimental_attachments,omitempty"`
	CreatedAt   *time.Time      `json:"createdAt,omitempty"`
}

// ContentParts falls back to the plain content field when parts are absent.
func (m IncomingMessage) ContentParts() []Part {
	if len(m.Parts) > 0 {
		return m.Parts
	}
	if m.Content != "" {
		return []Part{{Text: m.Content}}
	}
	return nil
}

type SendChatRequest struct {
	ID                uuid.UUID         `json:"id"`
	Messages          []IncomingMessage `json:"messages"`
	SelectedChatModel string            `json:"selectedChatModel"`
}

// ReplyMessage is the assistant message returned to the browser.
type ReplyMessage struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"createdAt"`
}

type SendChatResponse struct {
	Messages []ReplyMessage `json:"messages"`
	ID       uuid.UUID      `json:"id"`
}

type Vote struct {
	ChatID    uuid.UUID `json:"chatId"`
	MessageID uuid.UUID `json:"messageId"`
	IsUpvoted bool      `json:"isUpvoted"`
}

type VoteRequest struct {
	ChatID    uuid.UUID `json:"chatId"`
	MessageID uuid.UUID `json:"messageId"`
	Type      string    `json:"type"` // "up" | "down"
}

type VisibilityRequest struct {
	Visibility string `json:"visibility"`
}
