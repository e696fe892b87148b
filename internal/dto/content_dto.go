package dto

import (
	"github.com/google/uuid"
)

type CreateTopicRequest struct {
	Name      string     `json:"name" validate:"required"`
	Content   string     `json:"content" validate:"required"`
	Subject   string     `json:"subject" validate:"required"`
	Class     string     `json:"class" validate:"required"`
	Board     string     `json:"board" validate:"required"`
	TeacherId *uuid.UUID `json:"teacher_id,omitempty"`
}

type CreateTopicResponse struct {
	Id uuid.UUID `json:"id"`
}

// PublishEmbedContentMessage is the wakeup telling the embedding
// consumer to (re)index one piece of content.
type PublishEmbedContentMessage struct {
	OwnerId   uuid.UUID `json:"owner_id"`
	OwnerType string    `json:"owner_type"`
}
