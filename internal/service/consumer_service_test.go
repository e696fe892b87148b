package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ai-coursegen-be/internal/dto"
	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/internal/repository/memory"
	"ai-coursegen-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Generate(ctx context.Context, text string, taskType string) (*embedding.EmbeddingResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: s.vector},
	}, nil
}

type consumerFixture struct {
	topicRepo     contract.TopicRepository
	questionRepo  contract.QuestionRepository
	embeddingRepo contract.ContentEmbeddingRepository
	consumer      IConsumerService
}

func newConsumerFixture(embedder embedding.EmbeddingProvider) *consumerFixture {
	topicRepo := memory.NewTopicRepository()
	questionRepo := memory.NewQuestionRepository()
	embeddingRepo := memory.NewContentEmbeddingRepository(3)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	return &consumerFixture{
		topicRepo:     topicRepo,
		questionRepo:  questionRepo,
		embeddingRepo: embeddingRepo,
		consumer: NewConsumerService(
			pubSub, "EMBED_CONTENT",
			topicRepo, questionRepo, embeddingRepo,
			embedder, nopLogger{},
		),
	}
}

func embedMessage(t *testing.T, ownerId uuid.UUID, ownerType entity.OwnerType) *message.Message {
	t.Helper()
	payload, err := json.Marshal(dto.PublishEmbedContentMessage{
		OwnerId:   ownerId,
		OwnerType: string(ownerType),
	})
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), payload)
}

func TestProcessMessageIndexesTopicAndClearsPending(t *testing.T) {
	f := newConsumerFixture(&stubEmbedder{vector: []float32{1, 0, 0}})

	topic := &entity.Topic{
		Name: "Photosynthesis", Content: "Plants convert light into energy.",
		Subject: "biology", Class: "10", Board: "CBSE",
		EmbeddingPending: true, CreatedAt: time.Now(),
	}
	require.NoError(t, f.topicRepo.Create(context.Background(), topic))

	f.consumer.ProcessMessage(context.Background(), embedMessage(t, topic.Id, entity.OwnerTypeTopic))

	got, err := f.topicRepo.FindOne(context.Background(), topic.Id)
	require.NoError(t, err)
	assert.False(t, got.EmbeddingPending)
	assert.NotEmpty(t, got.EmbeddingRef)

	scored, err := f.embeddingRepo.SearchSimilarWithScore(
		context.Background(), []float32{1, 0, 0}, 5,
		contract.EmbeddingFilters{Subject: "biology"}, 0.9,
	)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, topic.Id, scored[0].Embedding.OwnerId)
	assert.Contains(t, scored[0].Embedding.Document, "Photosynthesis")
}

func TestProcessMessageDeletedOwnerDropsStaleRow(t *testing.T) {
	f := newConsumerFixture(&stubEmbedder{vector: []float32{1, 0, 0}})

	ownerId := uuid.New()
	require.NoError(t, f.embeddingRepo.Upsert(context.Background(), &entity.ContentEmbedding{
		OwnerId: ownerId, OwnerType: entity.OwnerTypeTopic,
		Document: "stale", EmbeddingValue: []float32{0, 1, 0},
		Subject: "biology",
	}))

	f.consumer.ProcessMessage(context.Background(), embedMessage(t, ownerId, entity.OwnerTypeTopic))

	scored, err := f.embeddingRepo.SearchSimilarWithScore(
		context.Background(), []float32{0, 1, 0}, 5,
		contract.EmbeddingFilters{Subject: "biology"}, 0.0,
	)
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestProcessMessageDimensionMismatchLeavesOwnerPending(t *testing.T) {
	// Provider emits 4-dim vectors against a 3-dim index.
	f := newConsumerFixture(&stubEmbedder{vector: []float32{1, 0, 0, 0}})

	topic := &entity.Topic{
		Name: "Tides", Content: "Lunar gravity.",
		Subject: "physics", Class: "9", Board: "CBSE",
		EmbeddingPending: true, CreatedAt: time.Now(),
	}
	require.NoError(t, f.topicRepo.Create(context.Background(), topic))

	f.consumer.ProcessMessage(context.Background(), embedMessage(t, topic.Id, entity.OwnerTypeTopic))

	got, err := f.topicRepo.FindOne(context.Background(), topic.Id)
	require.NoError(t, err)
	assert.True(t, got.EmbeddingPending, "a rejected vector must not clear the pending flag")

	scored, err := f.embeddingRepo.SearchSimilarWithScore(
		context.Background(), []float32{1, 0, 0}, 5,
		contract.EmbeddingFilters{Subject: "physics"}, 0.0,
	)
	require.NoError(t, err)
	assert.Empty(t, scored, "the index must stay unchanged")
}

func TestProcessMessageDiscardsGarbage(t *testing.T) {
	f := newConsumerFixture(&stubEmbedder{err: errors.New("should never be called")})

	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	f.consumer.ProcessMessage(context.Background(), msg)

	unknown := message.NewMessage(watermill.NewUUID(), []byte(`{"owner_id":"`+uuid.NewString()+`","owner_type":"recipe"}`))
	f.consumer.ProcessMessage(context.Background(), unknown)
}
