package docqa

import (
	"context"
	"fmt"
	"strings"

	"PocketChat/internal/llm"
)

// DefaultSystemInstruction keeps answers inside the supplied document.
const DefaultSystemInstruction = `Use the provided context to answer the question. If you cannot find the answer from the provided context, say "I cannot find the answer in the provided context."`

// Agent answers questions about a document. The document text rides in
// the question prompt; the instruction frames how to use it.
type Agent struct {
	// SystemInstruction frames every request. Defaults to
	// DefaultSystemInstruction.
	SystemInstruction string

	asker  *llm.Asker
	reader *Reader
}

// NewAgent creates an agent over the given asker.
func NewAgent(asker *llm.Asker) *Agent {
	return &Agent{
		SystemInstruction: DefaultSystemInstruction,
		asker:             asker,
		reader:            NewReader(),
	}
}

// Reader exposes the document reader, for listing supported formats.
func (a *Agent) Reader() *Reader {
	return a.reader
}

// Ask reads the document at documentPath and answers the question from
// its content.
func (a *Agent) Ask(ctx context.Context, documentPath, question string) (string, error) {
	content, err := a.reader.Read(documentPath)
	if err != nil {
		return "", llm.NewInvalidRequestError("docqa.Ask",
			fmt.Errorf("failed to read document: %w", err))
	}
	return a.AskContent(ctx, content, question)
}

// AskContent answers the question from already-loaded document text.
func (a *Agent) AskContent(ctx context.Context, content, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", llm.NewInvalidRequestError("docqa.Ask", llm.ErrEmptyQuestion)
	}
	if strings.TrimSpace(content) == "" {
		return "", llm.NewInvalidRequestError("docqa.Ask", fmt.Errorf("document is empty"))
	}

	prompt := fmt.Sprintf("Context: %s\nQuestion: %s", content, question)
	return a.asker.AskWithSystemInstruction(ctx, prompt, a.SystemInstruction)
}
