package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-coursegen-be/internal/dto"
	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/pkg/logger"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/pkg/apperrors"

	"github.com/google/uuid"
)

type IContentService interface {
	CreateTopic(ctx context.Context, req *dto.CreateTopicRequest) (*dto.CreateTopicResponse, error)
	RequestEmbedding(ctx context.Context, ownerId uuid.UUID, ownerType entity.OwnerType) error
}

type contentService struct {
	topicRepo        contract.TopicRepository
	publisherService IPublisherService
	log              logger.ILogger
}

func NewContentService(
	topicRepo contract.TopicRepository,
	publisherService IPublisherService,
	log logger.ILogger,
) IContentService {
	return &contentService{
		topicRepo:        topicRepo,
		publisherService: publisherService,
		log:              log,
	}
}

func (s *contentService) CreateTopic(ctx context.Context, req *dto.CreateTopicRequest) (*dto.CreateTopicResponse, error) {
	topic := entity.Topic{
		Id:               uuid.New(),
		Name:             req.Name,
		Content:          req.Content,
		Subject:          req.Subject,
		Class:            req.Class,
		Board:            req.Board,
		TeacherId:        req.TeacherId,
		EmbeddingPending: true,
		CreatedAt:        time.Now(),
	}

	if err := s.topicRepo.Create(ctx, &topic); err != nil {
		return nil, apperrors.NewInternal("failed to create topic", err)
	}

	// The row is committed before the wakeup, so a lost message leaves
	// embedding_pending set. Retryable sync failures are redelivered by
	// the broker, and a repeat RequestEmbedding re-drives the rest.
	if err := s.RequestEmbedding(ctx, topic.Id, entity.OwnerTypeTopic); err != nil {
		s.log.Warn("content", "embed dispatch failed, topic stays pending", map[string]interface{}{
			"topic_id": topic.Id.String(),
			"error":    err.Error(),
		})
	}

	return &dto.CreateTopicResponse{Id: topic.Id}, nil
}

func (s *contentService) RequestEmbedding(ctx context.Context, ownerId uuid.UUID, ownerType entity.OwnerType) error {
	msgPayload := dto.PublishEmbedContentMessage{
		OwnerId:   ownerId,
		OwnerType: string(ownerType),
	}
	msgJson, err := json.Marshal(msgPayload)
	if err != nil {
		return err
	}
	return s.publisherService.Publish(ctx, msgJson)
}
