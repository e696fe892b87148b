package ragengine

import (
	"fmt"
	"strings"
)

// PromptBuilder assembles the generation prompt from retrieved context.
type PromptBuilder struct {
	query   string
	context RetrievalContext
}

func NewPromptBuilder(query string, context RetrievalContext) *PromptBuilder {
	return &PromptBuilder{
		query:   query,
		context: context,
	}
}

func (b *PromptBuilder) Build() string {
	var prompt strings.Builder

	b.writeReferenceMaterial(&prompt)
	b.writeTask(&prompt)
	b.writeGuidelines(&prompt)
	b.writeUserQuery(&prompt)

	return prompt.String()
}

func (b *PromptBuilder) writeReferenceMaterial(prompt *strings.Builder) {
	if len(b.context.Chunks) == 0 {
		return
	}

	prompt.WriteString("<reference_material>\n")
	for i, chunk := range b.context.Chunks {
		prompt.WriteString(fmt.Sprintf("[source %d | %s]\n", i+1, chunk.OwnerType))
		prompt.WriteString(chunk.Text)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("</reference_material>\n\n")
}

func (b *PromptBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("You are an experienced curriculum author generating educational content for teachers.\n")
	if len(b.context.Chunks) > 0 {
		prompt.WriteString("Ground your output in the reference material above whenever it is relevant.\n")
	} else {
		prompt.WriteString("No reference material matched this request. Generate from your general knowledge of the subject and state any assumptions you make.\n")
	}
	prompt.WriteString("</task>\n\n")
}

func (b *PromptBuilder) writeGuidelines(prompt *strings.Builder) {
	prompt.WriteString("<guidelines>\n")
	prompt.WriteString("1. Match the academic level implied by the request (class and board)\n")
	prompt.WriteString("2. Be complete but avoid padding; every item should teach something\n")
	prompt.WriteString("3. Prefer terminology used in the reference material when it exists\n")
	prompt.WriteString("4. If the request asks for structured output, return well-formed JSON only\n")
	prompt.WriteString("</guidelines>\n\n")
}

func (b *PromptBuilder) writeUserQuery(prompt *strings.Builder) {
	prompt.WriteString("<request>\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n</request>\n\n")
	prompt.WriteString("Now produce the requested content:")
}
