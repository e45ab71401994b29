package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/noticeboard/internal/models"
)

// Fixed chat replies.
const (
	ChatNoResults   = "No relevant info found."
	ChatUnavailable = "AI service error"
)

// Chat answers question from the retrieved chunks. It returns ChatNoResults when
// nothing was retrieved and ChatUnavailable when the language model fails.
func (e *Extractor) Chat(ctx context.Context, question string, results []models.QueryResult) models.ChatResponse {
	if len(results) == 0 {
		return models.ChatResponse{Answer: ChatNoResults, Sources: []models.Metadata{}}
	}
	sources := make([]models.Metadata, len(results))
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = "Source: " + r.Document
		sources[i] = r.Metadata
	}
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(parts, "\n\n"), question)
	out, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("chat generation failed", zap.Error(err))
		return models.ChatResponse{Answer: ChatUnavailable, Sources: sources}
	}
	return models.ChatResponse{Answer: strings.TrimSpace(out), Sources: sources}
}
