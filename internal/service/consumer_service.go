package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"ai-coursegen-be/internal/dto"
	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/pkg/logger"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/pkg/apperrors"
	"ai-coursegen-be/pkg/embedding"
	"ai-coursegen-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const (
	embedChunkSize    = 1500
	embedChunkOverlap = 200
	embedMaxAttempts  = 3
)

type IConsumerService interface {
	Consume(ctx context.Context) error
	ProcessMessage(ctx context.Context, msg *message.Message)
}

// consumerService keeps the vector index in sync with the relational
// store. It is the only writer of content_embeddings: every (re)index
// request flows through the EMBED_CONTENT topic.
type consumerService struct {
	subscriber        message.Subscriber
	topicName         string
	topicRepo         contract.TopicRepository
	questionRepo      contract.QuestionRepository
	embeddingRepo     contract.ContentEmbeddingRepository
	embeddingProvider embedding.EmbeddingProvider
	log               logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	topicRepo contract.TopicRepository,
	questionRepo contract.QuestionRepository,
	embeddingRepo contract.ContentEmbeddingRepository,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		subscriber:        subscriber,
		topicName:         topicName,
		topicRepo:         topicRepo,
		questionRepo:      questionRepo,
		embeddingRepo:     embeddingRepo,
		embeddingProvider: embeddingProvider,
		log:               log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.ProcessMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) ProcessMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedContentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("consumer", "unmarshal failed, discarding message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack()
		return
	}

	ownerType := entity.OwnerType(payload.OwnerType)
	if !ownerType.Valid() {
		cs.log.Error("consumer", "unknown owner type, discarding message", map[string]interface{}{
			"owner_type": payload.OwnerType,
		})
		msg.Ack()
		return
	}

	if err := cs.syncOwner(ctx, payload.OwnerId, ownerType); err != nil {
		// The owner keeps embedding_pending=true, so it stays out of
		// retrieval and a later RequestEmbedding can re-drive the sync.
		cs.log.Error("consumer", "embedding sync failed", map[string]interface{}{
			"owner_id":   payload.OwnerId.String(),
			"owner_type": payload.OwnerType,
			"error":      err.Error(),
		})
		if apperrors.IsRetryable(err) {
			msg.Nack()
			return
		}
	}
	msg.Ack()
}

func (cs *consumerService) syncOwner(ctx context.Context, ownerId uuid.UUID, ownerType entity.OwnerType) error {
	row, err := cs.loadOwner(ctx, ownerId, ownerType)
	if err != nil {
		return err
	}
	if row == nil {
		// Owner deleted between dispatch and delivery. Drop any stale row.
		return cs.embeddingRepo.DeleteByOwner(ctx, ownerId, ownerType)
	}

	vector, err := cs.embedDocument(ctx, row.Document)
	if err != nil {
		return err
	}
	row.EmbeddingValue = vector

	if err := cs.embeddingRepo.Upsert(ctx, row); err != nil {
		return err
	}

	return cs.saveRef(ctx, ownerId, ownerType, vector)
}

// loadOwner resolves the owning entity into an index row with the
// denormalized filter columns filled in.
func (cs *consumerService) loadOwner(ctx context.Context, ownerId uuid.UUID, ownerType entity.OwnerType) (*entity.ContentEmbedding, error) {
	switch ownerType {
	case entity.OwnerTypeTopic:
		topic, err := cs.topicRepo.FindOne(ctx, ownerId)
		if err != nil {
			return nil, err
		}
		if topic == nil {
			return nil, nil
		}
		return &entity.ContentEmbedding{
			Id:        uuid.New(),
			OwnerId:   topic.Id,
			OwnerType: entity.OwnerTypeTopic,
			Document:  fmt.Sprintf("Topic: %s\n\n%s", topic.Name, topic.Content),
			Subject:   topic.Subject,
			Class:     topic.Class,
			Board:     topic.Board,
			TeacherId: topic.TeacherId,
			CreatedAt: time.Now(),
		}, nil

	case entity.OwnerTypeQuestion:
		question, err := cs.questionRepo.FindOne(ctx, ownerId)
		if err != nil {
			return nil, err
		}
		if question == nil {
			return nil, nil
		}
		topicId := question.TopicId
		return &entity.ContentEmbedding{
			Id:        uuid.New(),
			OwnerId:   question.Id,
			OwnerType: entity.OwnerTypeQuestion,
			Document:  question.Text,
			Subject:   question.Subject,
			Class:     question.Class,
			Board:     question.Board,
			TeacherId: question.TeacherId,
			TopicId:   &topicId,
			CreatedAt: time.Now(),
		}, nil
	}
	return nil, nil
}

// embedDocument embeds the document with bounded retries. Long content
// is chunked and the chunk vectors are averaged back to unit length so
// one owner always maps to one index row.
func (cs *consumerService) embedDocument(ctx context.Context, document string) ([]float32, error) {
	chunks := utils.SplitText(document, embedChunkSize, embedChunkOverlap)

	var sum []float64
	for _, chunk := range chunks {
		res, err := cs.generateWithRetry(ctx, chunk)
		if err != nil {
			return nil, err
		}
		values := res.Embedding.Values
		if sum == nil {
			sum = make([]float64, len(values))
		}
		if len(values) != len(sum) {
			return nil, apperrors.NewEmbeddingDimension(len(values), len(sum))
		}
		for i, v := range values {
			sum[i] += float64(v)
		}
	}

	var norm float64
	for _, v := range sum {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vector := make([]float32, len(sum))
	for i, v := range sum {
		if norm > 0 {
			vector[i] = float32(v / norm)
		}
	}
	return vector, nil
}

func (cs *consumerService) generateWithRetry(ctx context.Context, chunk string) (*embedding.EmbeddingResponse, error) {
	delay := 250 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= embedMaxAttempts; attempt++ {
		res, err := cs.embeddingProvider.Generate(ctx, chunk, "RETRIEVAL_DOCUMENT")
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !apperrors.IsRetryable(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}

func (cs *consumerService) saveRef(ctx context.Context, ownerId uuid.UUID, ownerType entity.OwnerType, vector []float32) error {
	switch ownerType {
	case entity.OwnerTypeTopic:
		return cs.topicRepo.SaveEmbeddingRef(ctx, ownerId, vector, false)
	case entity.OwnerTypeQuestion:
		return cs.questionRepo.SaveEmbeddingRef(ctx, ownerId, vector, false)
	}
	return nil
}
