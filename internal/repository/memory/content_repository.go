package memory

import (
	"context"
	"sync"
	"time"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/repository/contract"

	"github.com/google/uuid"
)

type TopicRepository struct {
	mu     sync.Mutex
	topics map[uuid.UUID]*entity.Topic
}

func NewTopicRepository() contract.TopicRepository {
	return &TopicRepository{topics: make(map[uuid.UUID]*entity.Topic)}
}

func (r *TopicRepository) Create(ctx context.Context, topic *entity.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if topic.Id == uuid.Nil {
		topic.Id = uuid.New()
	}
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = time.Now()
	}
	clone := *topic
	r.topics[topic.Id] = &clone
	return nil
}

func (r *TopicRepository) FindOne(ctx context.Context, id uuid.UUID) (*entity.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.topics[id]
	if !ok {
		return nil, nil
	}
	clone := *topic
	return &clone, nil
}

func (r *TopicRepository) SaveEmbeddingRef(ctx context.Context, id uuid.UUID, vector []float32, pending bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	topic, ok := r.topics[id]
	if !ok {
		return nil
	}
	if len(vector) > 0 {
		topic.EmbeddingRef = append([]float32(nil), vector...)
	}
	topic.EmbeddingPending = pending
	return nil
}

type QuestionRepository struct {
	mu        sync.Mutex
	questions map[uuid.UUID]*entity.Question
}

func NewQuestionRepository() contract.QuestionRepository {
	return &QuestionRepository{questions: make(map[uuid.UUID]*entity.Question)}
}

func (r *QuestionRepository) Create(ctx context.Context, question *entity.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.createLocked(question)
	return nil
}

func (r *QuestionRepository) CreateBulk(ctx context.Context, questions []*entity.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, q := range questions {
		r.createLocked(q)
	}
	return nil
}

func (r *QuestionRepository) createLocked(question *entity.Question) {
	if question.Id == uuid.Nil {
		question.Id = uuid.New()
	}
	if question.CreatedAt.IsZero() {
		question.CreatedAt = time.Now()
	}
	clone := *question
	r.questions[question.Id] = &clone
}

func (r *QuestionRepository) FindOne(ctx context.Context, id uuid.UUID) (*entity.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	question, ok := r.questions[id]
	if !ok {
		return nil, nil
	}
	clone := *question
	return &clone, nil
}

func (r *QuestionRepository) SaveEmbeddingRef(ctx context.Context, id uuid.UUID, vector []float32, pending bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	question, ok := r.questions[id]
	if !ok {
		return nil
	}
	if len(vector) > 0 {
		question.EmbeddingRef = append([]float32(nil), vector...)
	}
	question.EmbeddingPending = pending
	return nil
}
