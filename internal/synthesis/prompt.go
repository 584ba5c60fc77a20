// Package synthesis composes answers from retrieved contract excerpts.
package synthesis

import (
	"fmt"
	"path/filepath"
	"strings"

	"contractqa/internal/domain"
)

// UnknownAnswer is returned when the excerpts do not contain the answer.
const UnknownAnswer = "I don't know based on the provided contract excerpts."

// SystemPrompt instructs a model to answer only from the supplied excerpts.
const SystemPrompt = "You answer questions about sports sponsorship contracts. " +
	"Use only the numbered contract excerpts provided by the user. " +
	"Do not rely on outside knowledge and do not guess. " +
	"Cite the excerpt numbers you used in square brackets. " +
	"If the answer is not present in the excerpts, reply exactly: \"" + UnknownAnswer + "\""

// UserPrompt lays out the numbered excerpts followed by the question. Each
// excerpt is labelled with its file name and one-based page.
func UserPrompt(question string, evidence []domain.SearchResult) string {
	var b strings.Builder
	b.WriteString("Contract excerpts:\n\n")
	for i, ev := range evidence {
		fmt.Fprintf(&b, "[%d] %s", i+1, label(ev.Chunk))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(ev.Chunk.Text))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(strings.TrimSpace(question))
	return b.String()
}

func label(ch domain.Chunk) string {
	name := filepath.Base(ch.SourcePath)
	if ch.SourcePath == "" {
		name = "contract"
	}
	if ch.PageIndex < 0 {
		return "(" + name + ")"
	}
	return fmt.Sprintf("(%s, p. %d)", name, ch.PageIndex+1)
}

func failure(provider string, err error) error {
	return domain.Classify(domain.ErrSynthesisFailure, fmt.Errorf("%s: %w", provider, err))
}
