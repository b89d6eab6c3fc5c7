package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chatbridge/internal/models"
)

// UserChannel is the pub/sub channel the websocket hub subscribes to.
func UserChannel(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}

// UpdatePublisher sends websocket updates to a user's open tabs via Redis
// pub/sub, so every server instance holding one of their sockets sees them.
type UpdatePublisher struct {
	redis *redis.Client
}

func NewUpdatePublisher(client *redis.Client) *UpdatePublisher {
	return &UpdatePublisher{redis: client}
}

func (p *UpdatePublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}
	return p.redis.Publish(ctx, UserChannel(userID), data).Err()
}
