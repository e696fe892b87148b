package implementation

import (
	"context"
	"encoding/json"
	"errors"

	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/mapper"
	"ai-coursegen-be/internal/model"
	"ai-coursegen-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TopicRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.TopicMapper
}

func NewTopicRepository(db *gorm.DB) contract.TopicRepository {
	return &TopicRepositoryImpl{
		db:     db,
		mapper: mapper.NewTopicMapper(),
	}
}

func (r *TopicRepositoryImpl) Create(ctx context.Context, topic *entity.Topic) error {
	m := r.mapper.ToModel(topic)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*topic = *r.mapper.ToEntity(m)
	return nil
}

func (r *TopicRepositoryImpl) FindOne(ctx context.Context, id uuid.UUID) (*entity.Topic, error) {
	var m model.Topic
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *TopicRepositoryImpl) SaveEmbeddingRef(ctx context.Context, id uuid.UUID, vector []float32, pending bool) error {
	updates := map[string]interface{}{
		"embedding_pending": pending,
	}
	if len(vector) > 0 {
		raw, err := json.Marshal(vector)
		if err != nil {
			return err
		}
		updates["embedding_ref"] = datatypes.JSON(raw)
	}
	return r.db.WithContext(ctx).
		Model(&model.Topic{}).
		Where("id = ?", id).
		Updates(updates).Error
}
