package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-coursegen-be/internal/dto"
	"ai-coursegen-be/internal/entity"
	"ai-coursegen-be/internal/pkg/logger"
	"ai-coursegen-be/internal/pkg/serverutils"
	"ai-coursegen-be/internal/repository/contract"
	"ai-coursegen-be/pkg/apperrors"
	"ai-coursegen-be/pkg/jobs"
	"ai-coursegen-be/pkg/llm"
	"ai-coursegen-be/pkg/ragengine"

	"github.com/google/uuid"
)

// GenerationHandlerDeps bundles what the job handlers share.
type GenerationHandlerDeps struct {
	Engine       *ragengine.Engine
	LLMProvider  llm.LLMProvider
	GenOpts      []llm.Option
	TopicRepo    contract.TopicRepository
	QuestionRepo contract.QuestionRepository
	ContentSvc   IContentService
	ModelVersion string
	Log          logger.ILogger
}

// decodePayload decodes strictly and re-runs tag validation: a payload
// that passed Submit may still be replayed from an older row.
func decodePayload(payload []byte, target interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return apperrors.NewValidation(fmt.Sprintf("malformed payload: %v", err))
	}
	return serverutils.ValidateRequest(target)
}

// --- syllabus_generation ---

type syllabusGenerationHandler struct {
	deps GenerationHandlerDeps
}

func NewSyllabusGenerationHandler(deps GenerationHandlerDeps) jobs.Handler {
	return &syllabusGenerationHandler{deps: deps}
}

func (h *syllabusGenerationHandler) Kind() entity.JobKind {
	return entity.JobKindSyllabusGeneration
}

func (h *syllabusGenerationHandler) Execute(ctx context.Context, job *entity.GenerationJob, report jobs.ProgressFunc) (json.RawMessage, error) {
	var p dto.SyllabusGenerationPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return nil, err
	}
	report(25)

	unitCount := p.UnitCount
	if unitCount <= 0 {
		unitCount = 5
	}

	query := fmt.Sprintf(
		"Create a complete %d-unit syllabus for %s, class %s, board %s. For each unit list its topics in teaching order.",
		unitCount, p.Subject, p.Class, p.Board,
	)

	answer, err := h.deps.Engine.Query(ctx, ragengine.QueryRequest{
		Query: query,
		Filters: contract.EmbeddingFilters{
			Subject:   p.Subject,
			Class:     p.Class,
			Board:     p.Board,
			TeacherId: p.TeacherId,
		},
		ModelVersion: h.deps.ModelVersion,
	})
	if err != nil {
		return nil, err
	}
	report(75)

	result := map[string]interface{}{
		"syllabus":      answer.Answer,
		"grounded":      len(answer.Context.Chunks) > 0,
		"source_count":  len(answer.Context.Chunks),
		"from_cache":    answer.FromCache,
		"model_version": h.deps.ModelVersion,
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, apperrors.NewInternal("failed to encode syllabus result", err)
	}
	return raw, nil
}

// --- questions_batch ---

type questionsBatchHandler struct {
	deps GenerationHandlerDeps
}

func NewQuestionsBatchHandler(deps GenerationHandlerDeps) jobs.Handler {
	return &questionsBatchHandler{deps: deps}
}

func (h *questionsBatchHandler) Kind() entity.JobKind {
	return entity.JobKindQuestionsBatch
}

func (h *questionsBatchHandler) Execute(ctx context.Context, job *entity.GenerationJob, report jobs.ProgressFunc) (json.RawMessage, error) {
	var p dto.QuestionsBatchPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return nil, err
	}
	report(25)

	topic, err := h.deps.TopicRepo.FindOne(ctx, p.TopicId)
	if err != nil {
		return nil, apperrors.NewInternal("failed to load topic", err)
	}
	if topic == nil {
		return nil, apperrors.NewNotFound(fmt.Sprintf("topic %s", p.TopicId))
	}

	difficulty := p.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}

	query := fmt.Sprintf(
		"Write exactly %d %s-difficulty exam questions about %q. Return ONLY a JSON array of strings, one question per element.",
		p.Count, difficulty, topic.Name,
	)

	topicId := topic.Id
	answer, err := h.deps.Engine.Query(ctx, ragengine.QueryRequest{
		Query: query,
		Filters: contract.EmbeddingFilters{
			Subject: topic.Subject,
			Class:   topic.Class,
			Board:   topic.Board,
			TopicId: &topicId,
		},
		ModelVersion: h.deps.ModelVersion,
	})
	if err != nil {
		return nil, err
	}
	report(50)

	texts, err := parseQuestionList(answer.Answer)
	if err != nil {
		return nil, err
	}
	report(75)

	questions := make([]*entity.Question, 0, len(texts))
	for _, text := range texts {
		questions = append(questions, &entity.Question{
			Id:               uuid.New(),
			TopicId:          topic.Id,
			Text:             text,
			Difficulty:       difficulty,
			Subject:          topic.Subject,
			Class:            topic.Class,
			Board:            topic.Board,
			TeacherId:        topic.TeacherId,
			EmbeddingPending: true,
			CreatedAt:        time.Now(),
		})
	}
	if err := h.deps.QuestionRepo.CreateBulk(ctx, questions); err != nil {
		return nil, apperrors.NewInternal("failed to persist questions", err)
	}

	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.Id.String())
		if err := h.deps.ContentSvc.RequestEmbedding(ctx, q.Id, entity.OwnerTypeQuestion); err != nil {
			h.deps.Log.Warn("generation", "embed dispatch failed, question stays pending", map[string]interface{}{
				"question_id": q.Id.String(),
				"error":       err.Error(),
			})
		}
	}

	raw, err := json.Marshal(map[string]interface{}{
		"topic_id":     topic.Id,
		"question_ids": ids,
		"count":        len(ids),
		"difficulty":   difficulty,
	})
	if err != nil {
		return nil, apperrors.NewInternal("failed to encode questions result", err)
	}
	return raw, nil
}

// parseQuestionList extracts the JSON array a model was instructed to
// return, tolerating surrounding prose and code fences.
func parseQuestionList(answer string) ([]string, error) {
	start := strings.Index(answer, "[")
	end := strings.LastIndex(answer, "]")
	if start < 0 || end <= start {
		return nil, apperrors.NewInternal("model did not return a question list", llm.ErrMalformed)
	}

	var texts []string
	if err := json.Unmarshal([]byte(answer[start:end+1]), &texts); err != nil {
		return nil, apperrors.NewInternal("model returned a malformed question list", llm.ErrMalformed)
	}

	cleaned := make([]string, 0, len(texts))
	for _, t := range texts {
		if s := strings.TrimSpace(t); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, apperrors.NewInternal("model returned an empty question list", llm.ErrMalformed)
	}
	return cleaned, nil
}

// --- content_enhancement ---

type contentEnhancementHandler struct {
	deps GenerationHandlerDeps
}

func NewContentEnhancementHandler(deps GenerationHandlerDeps) jobs.Handler {
	return &contentEnhancementHandler{deps: deps}
}

func (h *contentEnhancementHandler) Kind() entity.JobKind {
	return entity.JobKindContentEnhancement
}

// Execute rewrites existing topic content under an instruction. This
// kind goes straight to the model: the topic itself is the context, so
// retrieval would only echo it back.
func (h *contentEnhancementHandler) Execute(ctx context.Context, job *entity.GenerationJob, report jobs.ProgressFunc) (json.RawMessage, error) {
	var p dto.ContentEnhancementPayload
	if err := decodePayload(job.Payload, &p); err != nil {
		return nil, err
	}
	report(25)

	topic, err := h.deps.TopicRepo.FindOne(ctx, p.TopicId)
	if err != nil {
		return nil, apperrors.NewInternal("failed to load topic", err)
	}
	if topic == nil {
		return nil, apperrors.NewNotFound(fmt.Sprintf("topic %s", p.TopicId))
	}
	report(50)

	var prompt strings.Builder
	prompt.WriteString("<current_content>\n")
	prompt.WriteString(topic.Content)
	prompt.WriteString("\n</current_content>\n\n")
	prompt.WriteString("<instruction>\n")
	prompt.WriteString(p.Instruction)
	prompt.WriteString("\n</instruction>\n\n")
	prompt.WriteString(fmt.Sprintf(
		"Rewrite the content above for %s, class %s, following the instruction. Return only the rewritten content.",
		topic.Subject, topic.Class,
	))

	// Detached: an in-flight model call is never interrupted, the
	// provider's own timeout bounds it.
	enhanced, err := h.deps.LLMProvider.Generate(context.WithoutCancel(ctx), prompt.String(), h.deps.GenOpts...)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(75)

	raw, err := json.Marshal(map[string]interface{}{
		"topic_id":         topic.Id,
		"enhanced_content": enhanced,
	})
	if err != nil {
		return nil, apperrors.NewInternal("failed to encode enhancement result", err)
	}
	return raw, nil
}
