package service

import (
	"context"
	"encoding/json"
	"testing"

	"ai-coursegen-be/internal/dto"
	"ai-coursegen-be/internal/repository/memory"
	"ai-coursegen-be/pkg/apperrors"
	"ai-coursegen-be/pkg/jobs"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerationService() IGenerationService {
	repo := memory.NewGenerationJobRepository()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	return NewGenerationService(jobs.NewQueue(repo, pubSub, nopLogger{}))
}

func TestSubmitValidatesKindSpecificPayload(t *testing.T) {
	svc := newGenerationService()

	_, err := svc.Submit(context.Background(), &dto.SubmitGenerationRequest{
		Kind:    "syllabus_generation",
		Payload: json.RawMessage(`{"subject":"biology"}`),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestSubmitRejectsUnknownPayloadFields(t *testing.T) {
	svc := newGenerationService()

	_, err := svc.Submit(context.Background(), &dto.SubmitGenerationRequest{
		Kind:    "content_enhancement",
		Payload: json.RawMessage(`{"topic_id":"` + uuid.NewString() + `","instruction":"x","surprise":true}`),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestSubmitAndStatusRoundTrip(t *testing.T) {
	svc := newGenerationService()

	res, err := svc.Submit(context.Background(), &dto.SubmitGenerationRequest{
		Kind:    "syllabus_generation",
		Payload: json.RawMessage(`{"subject":"biology","class":"10","board":"CBSE"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "queued", res.Status)

	status, err := svc.Status(context.Background(), res.Id)
	require.NoError(t, err)
	assert.Equal(t, "syllabus_generation", status.Kind)
	assert.Equal(t, 0, status.Progress)
}

func TestStatusUnknownJob(t *testing.T) {
	svc := newGenerationService()

	_, err := svc.Status(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
