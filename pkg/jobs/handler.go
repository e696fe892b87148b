package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-coursegen-be/internal/entity"
)

// ProgressFunc reports a 0-100 milestone. Implementations are free to
// drop regressions; workers persist only forward movement.
type ProgressFunc func(progress int)

// Handler executes one job kind. Execute must honor ctx cancellation
// between expensive stages and return the result payload on success.
type Handler interface {
	Kind() entity.JobKind
	Execute(ctx context.Context, job *entity.GenerationJob, report ProgressFunc) (json.RawMessage, error)
}

// Registry maps job kinds to their handlers.
type Registry struct {
	handlers map[entity.JobKind]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[entity.JobKind]Handler)}
	for _, h := range handlers {
		r.handlers[h.Kind()] = h
	}
	return r
}

func (r *Registry) Register(h Handler) {
	r.handlers[h.Kind()] = h
}

func (r *Registry) Get(kind entity.JobKind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

func (r *Registry) Kinds() []entity.JobKind {
	kinds := make([]entity.JobKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// TopicForKind maps a job kind to its dispatch topic, one topic per
// kind so worker pools are sized independently.
func TopicForKind(kind entity.JobKind) string {
	return fmt.Sprintf("JOBS_%s", strings.ToUpper(string(kind)))
}
