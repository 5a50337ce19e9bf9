// Package buffer implements the Short-Term Buffer: a bounded per-
// conversation recency window with a rolling-summary hook. The buffer
// itself never calls the LLM; it only signals that summarization is due,
// leaving the actual summarization call to the orchestrator.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"clone-llm/internal/domain"
	"clone-llm/internal/repository"
)

var ErrNotConfigured = errors.New("short-term buffer not configured")

// Window is the recency window returned for one conversation.
type Window struct {
	Messages         []domain.Message
	FormattedLines   string
	SummarizeNeeded  bool
}

// Buffer reads the bounded recency window for a conversation. Thread
// safety across concurrent callers on the same conversation is the
// caller's responsibility via internal/lease, not this type's.
type Buffer struct {
	messages repository.MessageRepository
	cap      int
}

func New(messages repository.MessageRepository, capN int) *Buffer {
	if capN <= 0 {
		capN = 20
	}
	return &Buffer{messages: messages, cap: capN}
}

// Load returns the last Cap messages formatted as role-prefixed lines,
// plus whether the conversation has more messages than the cap (in which
// case the orchestrator should fold the overflow into the conversation's
// last_summary via its LLM-driven summarizer).
func (b *Buffer) Load(ctx context.Context, conversationID string) (Window, error) {
	if b == nil || b.messages == nil {
		return Window{}, ErrNotConfigured
	}

	total, err := b.messages.CountByConversation(ctx, conversationID)
	if err != nil {
		return Window{}, fmt.Errorf("count messages: %w", err)
	}

	recent, err := b.messages.ListRecent(ctx, conversationID, b.cap)
	if err != nil {
		return Window{}, fmt.Errorf("list recent messages: %w", err)
	}

	return Window{
		Messages:        recent,
		FormattedLines:  formatLines(recent),
		SummarizeNeeded: total > b.cap,
	}, nil
}

func formatLines(messages []domain.Message) string {
	if len(messages) == 0 {
		return ""
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		role := "User"
		if m.Role == domain.RoleAssistant {
			role = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, content))
	}
	return strings.Join(lines, "\n")
}
